package model

import "time"

// ImportOperation classifies what an import run did with one job.
type ImportOperation int

const (
	OperationAdded ImportOperation = iota
	OperationUpdated
	OperationRemoved
	OperationSkipped
)

// Operations lists every operation in report order.
var Operations = []ImportOperation{OperationAdded, OperationUpdated, OperationRemoved, OperationSkipped}

func (o ImportOperation) String() string {
	switch o {
	case OperationAdded:
		return "added"
	case OperationUpdated:
		return "updated"
	case OperationRemoved:
		return "removed"
	case OperationSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Label is the human readable result column text.
func (o ImportOperation) Label() string {
	switch o {
	case OperationAdded:
		return "✅ Added"
	case OperationUpdated:
		return "🔁 Updated"
	case OperationRemoved:
		return "🚨 Removed"
	case OperationSkipped:
		return "⏩ Skipped"
	default:
		return o.String()
	}
}

// RequiresVerbose reports whether rows of this operation are hidden at normal verbosity.
func (o ImportOperation) RequiresVerbose() bool {
	return o == OperationSkipped
}

// ImportResult is the classification of one import run.
type ImportResult struct {
	DryRun bool
	jobs   map[ImportOperation][]Job
}

func NewImportResult(dryRun bool) *ImportResult {
	return &ImportResult{DryRun: dryRun, jobs: make(map[ImportOperation][]Job)}
}

// Add records job under op.
func (r *ImportResult) Add(job Job, op ImportOperation) {
	r.jobs[op] = append(r.jobs[op], job)
}

// Jobs returns the jobs classified as op, in classification order.
func (r *ImportResult) Jobs(op ImportOperation) []Job {
	return r.jobs[op]
}

func (r *ImportResult) Added() []Job   { return r.jobs[OperationAdded] }
func (r *ImportResult) Updated() []Job { return r.jobs[OperationUpdated] }
func (r *ImportResult) Removed() []Job { return r.jobs[OperationRemoved] }
func (r *ImportResult) Skipped() []Job { return r.jobs[OperationSkipped] }

// Modified returns added, updated and removed jobs.
func (r *ImportResult) Modified() []Job {
	var out []Job
	out = append(out, r.Added()...)
	out = append(out, r.Updated()...)
	out = append(out, r.Removed()...)
	return out
}

// Count returns the number of jobs classified as op.
func (r *ImportResult) Count(op ImportOperation) int {
	return len(r.jobs[op])
}

// Total returns the number of classified jobs across all operations.
func (r *ImportResult) Total() int {
	n := 0
	for _, jobs := range r.jobs {
		n += len(jobs)
	}
	return n
}

// ChangeSet is the unit of work handed to JobRepository.Persist.
type ChangeSet struct {
	Added              []*Job
	Updated            []*Job
	Removed            []*Job
	RemoveDescriptions []int64 // description ids
}

// Add schedules a new job for insertion.
func (c *ChangeSet) Add(j *Job) { c.Added = append(c.Added, j) }

// Update schedules an existing job (ID set) for replacement of its row.
func (c *ChangeSet) Update(j *Job) { c.Updated = append(c.Updated, j) }

// Remove schedules a persisted job for deletion.
func (c *ChangeSet) Remove(j *Job) { c.Removed = append(c.Removed, j) }

// RemoveDescription schedules a persisted description for deletion.
func (c *ChangeSet) RemoveDescription(id int64) {
	c.RemoveDescriptions = append(c.RemoveDescriptions, id)
}

// Empty reports whether the change set has nothing to apply.
func (c *ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0 && len(c.RemoveDescriptions) == 0
}

// ImportedEvent is published once after a successful non dry-run import.
type ImportedEvent struct {
	RunID      string
	StoragePID int
	Language   string
	FinishedAt time.Time
	Result     *ImportResult
}
