package browse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/personiojobs/internal/model"
)

// ErrLoadCancelled is returned by RunLoader when the user aborts the load.
var ErrLoadCancelled = errors.New("loading jobs cancelled")

const loadTimeout = time.Minute

var (
	loaderSpinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	loaderDoneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	loaderErrStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// LoadFunc reads the stored jobs of one storage scope.
type LoadFunc func(ctx context.Context) ([]model.Job, error)

type jobsLoadedMsg struct {
	jobs []model.Job
	err  error
}

// loaderModel runs one store query for a storage pid and language.
type loaderModel struct {
	storagePID int
	language   LanguageChoice
	load       LoadFunc
	ctx        context.Context
	cancel     context.CancelFunc

	spinner spinner.Model
	jobs    []model.Job
	err     error
	done    bool
}

func newLoaderModel(ctx context.Context, storagePID int, language LanguageChoice, load LoadFunc) loaderModel {
	ctx, cancel := context.WithCancel(ctx)
	return loaderModel{
		storagePID: storagePID,
		language:   language,
		load:       load,
		ctx:        ctx,
		cancel:     cancel,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(loaderSpinnerStyle)),
	}
}

func (m loaderModel) scope() string {
	return fmt.Sprintf("storage %d, %s", m.storagePID, m.language.label())
}

func (m loaderModel) Init() tea.Cmd {
	ctx, load := m.ctx, m.load
	query := func() tea.Msg {
		jobs, err := load(ctx)
		return jobsLoadedMsg{jobs: jobs, err: err}
	}
	return tea.Batch(query, m.spinner.Tick)
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case jobsLoadedMsg:
		m.cancel()
		m.done = true
		m.jobs = msg.jobs
		if msg.err != nil {
			m.err = fmt.Errorf("loading jobs (%s): %w", m.scope(), msg.err)
		}
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "esc" {
			m.cancel()
			m.done = true
			m.err = ErrLoadCancelled
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View leaves a one-line summary behind once the query finished.
func (m loaderModel) View() string {
	switch {
	case !m.done:
		return fmt.Sprintf("%s Loading stored jobs (%s)...\n", m.spinner.View(), m.scope())
	case errors.Is(m.err, ErrLoadCancelled):
		return ""
	case m.err != nil:
		return loaderErrStyle.Render("✗ "+m.err.Error()) + "\n"
	default:
		return loaderDoneStyle.Render(fmt.Sprintf("✓ %d jobs stored (%s)", len(m.jobs), m.scope())) + "\n"
	}
}

// RunLoader shows a spinner while load queries the store for storagePID in
// the chosen language. It renders inline (no alt screen). Esc or ctrl+c
// cancels the query and returns ErrLoadCancelled.
func RunLoader(storagePID int, language LanguageChoice, load LoadFunc) ([]model.Job, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	p := tea.NewProgram(newLoaderModel(ctx, storagePID, language, load))
	result, err := p.Run()
	if err != nil {
		return nil, err
	}
	final := result.(loaderModel)
	return final.jobs, final.err
}
