// Package report renders import results and job listings as terminal tables.
package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/amishk599/personiojobs/internal/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// ResultRows returns the table rows of result: groups in operation order,
// each sorted by personio id, separated by an empty row. Skipped jobs are
// only included when verbose.
func ResultRows(result *model.ImportResult, verbose bool) [][]string {
	var rows [][]string
	for _, op := range model.Operations {
		if op.RequiresVerbose() && !verbose {
			continue
		}
		jobs := slices.Clone(result.Jobs(op))
		if len(jobs) == 0 {
			continue
		}
		slices.SortStableFunc(jobs, func(a, b model.Job) int {
			switch {
			case a.PersonioID < b.PersonioID:
				return -1
			case a.PersonioID > b.PersonioID:
				return 1
			}
			return 0
		})

		if len(rows) > 0 {
			rows = append(rows, []string{"", "", ""})
		}
		for _, j := range jobs {
			rows = append(rows, []string{strconv.FormatInt(j.PersonioID, 10), j.Name, op.Label()})
		}
	}
	return rows
}

// Render writes the result table to w. Nothing is written when there are no
// rows to show.
func Render(w io.Writer, result *model.ImportResult, verbose bool) error {
	rows := ResultRows(result, verbose)
	if len(rows) == 0 {
		return nil
	}
	t := newTable("Job ID", "Job title", "Result").Rows(rows...)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// StatusLine is the closing line of an import run.
func StatusLine(result *model.ImportResult) string {
	if result.DryRun {
		return warningStyle.Render("No jobs were imported (dry-run mode).") + "\n" +
			hintStyle.Render("💡 Omit the --dry-run option to perform database operations.")
	}
	return successStyle.Render("Job import successful.")
}

// PartialStatusLine closes a run whose changes were saved but whose
// follow-up steps failed.
func PartialStatusLine(failures []error) string {
	var b strings.Builder
	b.WriteString(errorStyle.Render(fmt.Sprintf("Jobs were imported, but %d follow-up step(s) failed:", len(failures))))
	for _, err := range failures {
		b.WriteString("\n  - " + err.Error())
	}
	return b.String()
}

// Listing renders persisted jobs, one row each.
func Listing(jobs []model.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		created := ""
		if j.CreatedAt != nil {
			created = j.CreatedAt.Format("2006-01-02")
		}
		rows = append(rows, []string{
			strconv.FormatInt(j.PersonioID, 10),
			j.Name,
			j.Subcompany,
			j.Office,
			j.Department,
			created,
		})
	}
	return newTable("Job ID", "Job title", "Subcompany", "Office", "Department", "Created").
		Rows(rows...).
		Render()
}
