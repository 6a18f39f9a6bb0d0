package model

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"
)

// AllLanguages is the language id of a job that is shown in every site language.
const AllLanguages = -1

// Job is one posting from the Personio feed, optionally persisted.
type Job struct {
	ID                 int64 // store identity, zero until persisted
	PersonioID         int64 // external id from the feed
	StoragePID         int   // storage scope the job belongs to
	LanguageID         int   // site language, AllLanguages for "all"
	Subcompany         string
	Office             string
	Department         string
	RecruitingCategory string
	Name               string
	Descriptions       []JobDescription
	EmploymentType     string
	Seniority          string
	Schedule           string
	YearsOfExperience  string // empty when the feed omits it
	Keywords           string
	Occupation         string
	OccupationCategory string
	CreatedAt          *time.Time
	Slug               string
	ContentHash        string
}

// JobDescription is one header/body section of a job.
type JobDescription struct {
	ID       int64
	JobID    int64
	Sorting  int
	Header   string
	Bodytext string
}

// NewJob returns j with its content hash computed.
func NewJob(j Job) Job {
	j.ContentHash = j.CalculateContentHash()
	return j
}

// RecalculateContentHash refreshes ContentHash after an in-place edit and
// reports whether it changed.
func (j *Job) RecalculateContentHash() bool {
	hash := j.CalculateContentHash()
	changed := hash != j.ContentHash
	j.ContentHash = hash
	return changed
}

type hashedDescription struct {
	Header   string `json:"header"`
	Bodytext string `json:"bodytext"`
}

type hashedJob struct {
	PersonioID         int64               `json:"personioId"`
	Subcompany         string              `json:"subcompany"`
	Office             string              `json:"office"`
	Department         string              `json:"department"`
	RecruitingCategory string              `json:"recruitingCategory"`
	Name               string              `json:"name"`
	JobDescriptions    []hashedDescription `json:"jobDescriptions"`
	EmploymentType     string              `json:"employmentType"`
	Seniority          string              `json:"seniority"`
	Schedule           string              `json:"schedule"`
	YearsOfExperience  string              `json:"yearsOfExperience"`
	Keywords           string              `json:"keywords"`
	Occupation         string              `json:"occupation"`
	OccupationCategory string              `json:"occupationCategory"`
	CreateDate         *int64              `json:"createDate"`
}

// CalculateContentHash returns the hex SHA-1 of the job's content fields.
// Store identity, scope, language, slug and the hash itself are excluded.
func (j Job) CalculateContentHash() string {
	h := hashedJob{
		PersonioID:         j.PersonioID,
		Subcompany:         j.Subcompany,
		Office:             j.Office,
		Department:         j.Department,
		RecruitingCategory: j.RecruitingCategory,
		Name:               j.Name,
		JobDescriptions:    make([]hashedDescription, 0, len(j.Descriptions)),
		EmploymentType:     j.EmploymentType,
		Seniority:          j.Seniority,
		Schedule:           j.Schedule,
		YearsOfExperience:  j.YearsOfExperience,
		Keywords:           j.Keywords,
		Occupation:         j.Occupation,
		OccupationCategory: j.OccupationCategory,
	}
	for _, d := range j.Descriptions {
		h.JobDescriptions = append(h.JobDescriptions, hashedDescription{Header: d.Header, Bodytext: d.Bodytext})
	}
	if j.CreatedAt != nil {
		ts := j.CreatedAt.Unix()
		h.CreateDate = &ts
	}

	// Marshal cannot fail for this shape.
	data, _ := json.Marshal(h)
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Allowed enumeration values of the feed.
var (
	EmploymentTypes    = []string{"permanent", "intern", "trainee", "freelance", "temporary", "working_student"}
	Seniorities        = []string{"entry-level", "experienced", "executive", "student"}
	Schedules          = []string{"full-time", "part-time", "full-or-part-time"}
	YearsOfExperiences = []string{"lt-1", "1-2", "2-5", "5-7", "7-10", "10-15", "gt-15"}
)

// FeedFetcher fetches and maps the current job feed.
type FeedFetcher interface {
	FetchJobs(ctx context.Context, language string) ([]Job, error)
}

// JobRepository is the persistence boundary of the import.
type JobRepository interface {
	// FindByPersonioID returns the job with the given external id in scope, or nil.
	// A nil languageID disables language filtering.
	FindByPersonioID(ctx context.Context, personioID int64, storagePID int, languageID *int) (*Job, error)
	// FindOrphans returns jobs in scope whose external id is not in currentIDs.
	// An empty currentIDs returns every job in scope.
	FindOrphans(ctx context.Context, currentIDs []int64, storagePID int, languageID *int) ([]Job, error)
	// Persist applies the change set atomically.
	Persist(ctx context.Context, cs *ChangeSet) error
}

// SlugRegenerator rebuilds the slug of a persisted job.
type SlugRegenerator interface {
	Regenerate(ctx context.Context, jobID int64) error
}

// CacheInvalidator drops cached renderings that depend on the given jobs.
type CacheInvalidator interface {
	InvalidateJobs(ctx context.Context, jobIDs []int64) error
}

// EventPublisher delivers the import-finished event.
type EventPublisher interface {
	Publish(ctx context.Context, event ImportedEvent) error
}

// JobFilter decides whether a persisted job is part of a listing.
type JobFilter interface {
	Match(job Job) bool
}
