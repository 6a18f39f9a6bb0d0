package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/amishk599/personiojobs/internal/filter"
	"github.com/amishk599/personiojobs/internal/model"
)

// Ensure SQLStore implements model.JobRepository.
var _ model.JobRepository = (*SQLStore)(nil)

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStore persists jobs and their descriptions in SQLite or PostgreSQL.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and ensures the schema exists.
// driver is DriverSQLite (dsn is a file path) or DriverPostgres (dsn is a
// connection URL).
func Open(driver, dsn string) (*SQLStore, error) {
	var sqlDriver string
	switch driver {
	case DriverSQLite, "":
		driver, sqlDriver = DriverSQLite, "sqlite"
	case DriverPostgres:
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s db: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer; also keeps ":memory:" databases on a single connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s db: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	return Open(DriverSQLite, dbPath)
}

func (s *SQLStore) migrate() error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		pk = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id                  ` + pk + `,
			storage_pid         INTEGER NOT NULL DEFAULT 0,
			language_id         INTEGER NOT NULL DEFAULT -1,
			personio_id         BIGINT NOT NULL,
			subcompany          TEXT NOT NULL DEFAULT '',
			office              TEXT NOT NULL DEFAULT '',
			department          TEXT NOT NULL DEFAULT '',
			recruiting_category TEXT NOT NULL DEFAULT '',
			name                TEXT NOT NULL DEFAULT '',
			employment_type     TEXT NOT NULL DEFAULT '',
			seniority           TEXT NOT NULL DEFAULT '',
			schedule            TEXT NOT NULL DEFAULT '',
			years_of_experience TEXT NOT NULL DEFAULT '',
			keywords            TEXT NOT NULL DEFAULT '',
			occupation          TEXT NOT NULL DEFAULT '',
			occupation_category TEXT NOT NULL DEFAULT '',
			create_date         BIGINT,
			slug                TEXT NOT NULL DEFAULT '',
			content_hash        TEXT NOT NULL DEFAULT '',
			updated_at          BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS jobs_scope_personio_id ON jobs (storage_pid, language_id, personio_id)`,
		`CREATE INDEX IF NOT EXISTS jobs_slug ON jobs (slug)`,
		`CREATE TABLE IF NOT EXISTS job_descriptions (
			id       ` + pk + `,
			job_id   BIGINT NOT NULL,
			sorting  INTEGER NOT NULL DEFAULT 0,
			header   TEXT NOT NULL DEFAULT '',
			bodytext TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS job_descriptions_job_id ON job_descriptions (job_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const jobColumns = `id, storage_pid, language_id, personio_id, subcompany, office, department,
	recruiting_category, name, employment_type, seniority, schedule, years_of_experience,
	keywords, occupation, occupation_category, create_date, slug, content_hash`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (model.Job, error) {
	var (
		j          model.Job
		createDate sql.NullInt64
	)
	err := row.Scan(&j.ID, &j.StoragePID, &j.LanguageID, &j.PersonioID, &j.Subcompany, &j.Office,
		&j.Department, &j.RecruitingCategory, &j.Name, &j.EmploymentType, &j.Seniority, &j.Schedule,
		&j.YearsOfExperience, &j.Keywords, &j.Occupation, &j.OccupationCategory, &createDate,
		&j.Slug, &j.ContentHash)
	if err != nil {
		return model.Job{}, err
	}
	if createDate.Valid {
		t := time.Unix(createDate.Int64, 0).UTC()
		j.CreatedAt = &t
	}
	return j, nil
}

func (s *SQLStore) queryJobs(ctx context.Context, query string, args ...any) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the connection before loading descriptions.
	rows.Close()

	for i := range jobs {
		if jobs[i].Descriptions, err = s.descriptions(ctx, jobs[i].ID); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func (s *SQLStore) descriptions(ctx context.Context, jobID int64) ([]model.JobDescription, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT id, job_id, sorting, header, bodytext FROM job_descriptions WHERE job_id = ? ORDER BY sorting, id"),
		jobID)
	if err != nil {
		return nil, fmt.Errorf("loading descriptions of job %d: %w", jobID, err)
	}
	defer rows.Close()

	var out []model.JobDescription
	for rows.Next() {
		var d model.JobDescription
		if err := rows.Scan(&d.ID, &d.JobID, &d.Sorting, &d.Header, &d.Bodytext); err != nil {
			return nil, fmt.Errorf("scanning description of job %d: %w", jobID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// scope builds the storage/language condition shared by the finders.
// A language matches its own id and the "all languages" id.
func scope(storagePID int, languageID *int) (string, []any) {
	where := "storage_pid = ?"
	args := []any{storagePID}
	if languageID != nil {
		where += " AND language_id IN (?, ?)"
		args = append(args, *languageID, model.AllLanguages)
	}
	return where, args
}

// FindByPersonioID returns the job with the given external id, or nil.
// Rows are preferred in this order: the requested language, the "all
// languages" row, then any other language by lowest id. Without a language
// the "all languages" row comes first.
func (s *SQLStore) FindByPersonioID(ctx context.Context, personioID int64, storagePID int, languageID *int) (*model.Job, error) {
	where, args := scope(storagePID, languageID)
	preferred := model.AllLanguages
	if languageID != nil {
		preferred = *languageID
	}
	args = append([]any{personioID}, args...)
	args = append(args, preferred, model.AllLanguages)
	jobs, err := s.queryJobs(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE personio_id = ? AND "+where+
			" ORDER BY CASE WHEN language_id = ? THEN 0 WHEN language_id = ? THEN 1 ELSE 2 END, id LIMIT 1",
		args...)
	if err != nil {
		return nil, fmt.Errorf("finding job %d: %w", personioID, err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// FindOrphans returns jobs in scope whose external id is not in currentIDs.
// With no current ids every job in scope is returned.
func (s *SQLStore) FindOrphans(ctx context.Context, currentIDs []int64, storagePID int, languageID *int) ([]model.Job, error) {
	where, args := scope(storagePID, languageID)
	query := "SELECT " + jobColumns + " FROM jobs WHERE " + where
	if len(currentIDs) > 0 {
		query += " AND personio_id NOT IN (" + placeholders(len(currentIDs)) + ")"
		for _, id := range currentIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY personio_id"

	jobs, err := s.queryJobs(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding orphaned jobs: %w", err)
	}
	return jobs, nil
}

// FindByID returns the job with store identity id, or nil.
func (s *SQLStore) FindByID(ctx context.Context, id int64) (*model.Job, error) {
	jobs, err := s.queryJobs(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("finding job #%d: %w", id, err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// FindByDemand lists jobs of a storage scope in demand order, filtered and
// paginated by the demand.
func (s *SQLStore) FindByDemand(ctx context.Context, d filter.Demand) ([]model.Job, error) {
	col, err := d.SortColumn()
	if err != nil {
		return nil, err
	}
	where, args := scope(d.StoragePID, d.LanguageID)
	query := "SELECT " + jobColumns + " FROM jobs WHERE " + where
	if col != "" {
		dir := "ASC"
		if d.Descending {
			dir = "DESC"
		}
		query += " ORDER BY " + col + " " + dir + ", id"
	} else {
		query += " ORDER BY id"
	}

	jobs, err := s.queryJobs(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return d.Apply(jobs), nil
}

// SlugExists reports whether another job than excludeID uses slug.
func (s *SQLStore) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT 1 FROM jobs WHERE slug = ? AND id <> ? LIMIT 1"), slug, excludeID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking slug %q: %w", slug, err)
	}
	return true, nil
}

// UpdateSlug stores slug on job id.
func (s *SQLStore) UpdateSlug(ctx context.Context, id int64, slug string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind("UPDATE jobs SET slug = ? WHERE id = ?"), slug, id); err != nil {
		return fmt.Errorf("updating slug of job #%d: %w", id, err)
	}
	return nil
}

// Rehash recomputes the content hash of job id from its stored fields and
// saves it when it changed. It returns nil when the job does not exist.
func (s *SQLStore) Rehash(ctx context.Context, id int64) (*model.Job, bool, error) {
	job, err := s.FindByID(ctx, id)
	if err != nil || job == nil {
		return nil, false, err
	}
	if !job.RecalculateContentHash() {
		return job, false, nil
	}
	if _, err := s.db.ExecContext(ctx, s.rebind("UPDATE jobs SET content_hash = ?, updated_at = ? WHERE id = ?"),
		job.ContentHash, time.Now().Unix(), id); err != nil {
		return nil, false, fmt.Errorf("saving content hash of job #%d: %w", id, err)
	}
	return job, true, nil
}

// Persist applies the change set in one transaction: description removals,
// job removals, updates, then additions. Store identities of added jobs and
// of all written descriptions are set on the change set's jobs.
func (s *SQLStore) Persist(ctx context.Context, cs *model.ChangeSet) error {
	if cs == nil || cs.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range cs.RemoveDescriptions {
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM job_descriptions WHERE id = ?"), id); err != nil {
			return fmt.Errorf("removing description #%d: %w", id, err)
		}
	}
	for _, j := range cs.Removed {
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM jobs WHERE id = ?"), j.ID); err != nil {
			return fmt.Errorf("removing job %d: %w", j.PersonioID, err)
		}
	}
	for _, j := range cs.Updated {
		if err := s.updateJob(ctx, tx, j); err != nil {
			return fmt.Errorf("updating job %d: %w", j.PersonioID, err)
		}
	}
	for _, j := range cs.Added {
		if err := s.insertJob(ctx, tx, j); err != nil {
			return fmt.Errorf("adding job %d: %w", j.PersonioID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func createDate(j *model.Job) sql.NullInt64 {
	if j.CreatedAt == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: j.CreatedAt.Unix(), Valid: true}
}

func (s *SQLStore) insertJob(ctx context.Context, q querier, j *model.Job) error {
	err := q.QueryRowContext(ctx, s.rebind(`INSERT INTO jobs (storage_pid, language_id, personio_id, subcompany,
		office, department, recruiting_category, name, employment_type, seniority, schedule,
		years_of_experience, keywords, occupation, occupation_category, create_date, slug, content_hash, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		j.StoragePID, j.LanguageID, j.PersonioID, j.Subcompany, j.Office, j.Department,
		j.RecruitingCategory, j.Name, j.EmploymentType, j.Seniority, j.Schedule, j.YearsOfExperience,
		j.Keywords, j.Occupation, j.OccupationCategory, createDate(j), j.Slug, j.ContentHash,
		time.Now().Unix(),
	).Scan(&j.ID)
	if err != nil {
		return err
	}
	return s.insertDescriptions(ctx, q, j)
}

func (s *SQLStore) updateJob(ctx context.Context, q querier, j *model.Job) error {
	res, err := q.ExecContext(ctx, s.rebind(`UPDATE jobs SET storage_pid = ?, language_id = ?, personio_id = ?,
		subcompany = ?, office = ?, department = ?, recruiting_category = ?, name = ?, employment_type = ?,
		seniority = ?, schedule = ?, years_of_experience = ?, keywords = ?, occupation = ?,
		occupation_category = ?, create_date = ?, content_hash = ?, updated_at = ? WHERE id = ?`),
		j.StoragePID, j.LanguageID, j.PersonioID, j.Subcompany, j.Office, j.Department,
		j.RecruitingCategory, j.Name, j.EmploymentType, j.Seniority, j.Schedule, j.YearsOfExperience,
		j.Keywords, j.Occupation, j.OccupationCategory, createDate(j), j.ContentHash,
		time.Now().Unix(), j.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job #%d does not exist", j.ID)
	}
	return s.insertDescriptions(ctx, q, j)
}

func (s *SQLStore) insertDescriptions(ctx context.Context, q querier, j *model.Job) error {
	for i := range j.Descriptions {
		d := &j.Descriptions[i]
		d.JobID = j.ID
		err := q.QueryRowContext(ctx, s.rebind(
			"INSERT INTO job_descriptions (job_id, sorting, header, bodytext) VALUES (?, ?, ?, ?) RETURNING id"),
			d.JobID, d.Sorting, d.Header, d.Bodytext,
		).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("adding description %d: %w", i, err)
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
