package browse

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

// LanguageChoice is one entry of the language picker.
type LanguageChoice struct {
	Code string // empty for all languages
	ID   int
}

func (c LanguageChoice) label() string {
	if c.Code == "" {
		return "All languages"
	}
	return fmt.Sprintf("%s (id %d)", c.Code, c.ID)
}

type pickerModel struct {
	choices []LanguageChoice
	cursor  int
	chosen  int // -1 = no choice yet, -2 = quit
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.chosen = -2
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}
		case "enter":
			m.chosen = m.cursor
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	s := pickerTitleStyle.Render("Browse jobs: select a language")
	s += "\n"

	for i, c := range m.choices {
		if i == m.cursor {
			s += pickerSelectedStyle.Render("> "+c.label()) + "\n"
		} else {
			s += pickerItemStyle.Render(c.label()) + "\n"
		}
	}

	s += pickerHintStyle.Render("↑/↓/j/k navigate  enter select  q quit")
	return s
}

// RunLanguagePicker shows an interactive language selector. An "All
// languages" entry is offered first. Returns the chosen entry, or ok=false
// if the user quit.
func RunLanguagePicker(languages []LanguageChoice) (choice LanguageChoice, ok bool, err error) {
	m := pickerModel{
		choices: append([]LanguageChoice{{}}, languages...),
		chosen:  -1,
	}

	p := tea.NewProgram(m)
	result, err := p.Run()
	if err != nil {
		return LanguageChoice{}, false, err
	}

	final := result.(pickerModel)
	if final.chosen < 0 {
		return LanguageChoice{}, false, nil
	}
	return final.choices[final.chosen], true, nil
}
