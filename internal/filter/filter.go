package filter

import (
	"fmt"
	"strings"

	"github.com/amishk599/personiojobs/internal/model"
)

// Ensure SubcompanyFilter implements model.JobFilter.
var _ model.JobFilter = (*SubcompanyFilter)(nil)

// SubcompanyFilter keeps jobs whose subcompany is in the include list (when
// one is given) and not in the exclude list. Matching is case-insensitive.
type SubcompanyFilter struct {
	include []string
	exclude []string
}

// NewSubcompanyFilter builds a filter from include and exclude lists.
// Blank entries are dropped.
func NewSubcompanyFilter(include, exclude []string) *SubcompanyFilter {
	return &SubcompanyFilter{
		include: normalize(include),
		exclude: normalize(exclude),
	}
}

// ParseSubcompanyFilter builds a filter from comma-separated lists such as
// "Acme GmbH, Acme Inc".
func ParseSubcompanyFilter(include, exclude string) *SubcompanyFilter {
	return NewSubcompanyFilter(strings.Split(include, ","), strings.Split(exclude, ","))
}

// Match reports whether job passes the include and exclude lists. A nil
// filter matches every job.
func (f *SubcompanyFilter) Match(job model.Job) bool {
	if f == nil {
		return true
	}
	subcompany := strings.ToLower(strings.TrimSpace(job.Subcompany))

	if len(f.include) > 0 && !contains(f.include, subcompany) {
		return false
	}
	return !contains(f.exclude, subcompany)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func normalize(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// sortColumns maps the sortable job fields to their column names.
var sortColumns = map[string]string{
	"":                   "",
	"name":               "name",
	"personioId":         "personio_id",
	"subcompany":         "subcompany",
	"office":             "office",
	"department":         "department",
	"recruitingCategory": "recruiting_category",
	"createDate":         "create_date",
}

// Demand describes a listing of persisted jobs.
type Demand struct {
	StoragePID int
	LanguageID *int // nil lists every language
	Sorting    string
	Descending bool
	Filter     *SubcompanyFilter
	Limit      int // 0 means no limit
	Offset     int
}

// SortColumn returns the column to order by, or "" for store order.
func (d Demand) SortColumn() (string, error) {
	col, ok := sortColumns[d.Sorting]
	if !ok {
		return "", fmt.Errorf("unsupported sorting %q", d.Sorting)
	}
	return col, nil
}

// Apply filters and paginates jobs that are already in demand order.
func (d Demand) Apply(jobs []model.Job) []model.Job {
	out := jobs[:0:0]
	for _, j := range jobs {
		if d.Filter == nil || d.Filter.Match(j) {
			out = append(out, j)
		}
	}

	if d.Offset > 0 {
		if d.Offset >= len(out) {
			return nil
		}
		out = out[d.Offset:]
	}
	if d.Limit > 0 && d.Limit < len(out) {
		out = out[:d.Limit]
	}
	return out
}
