package search

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vesperhq/vesper/internal/tui/common"
	"github.com/vesperhq/vesper/internal/tui/styles"
)

type Model struct {
	textInput textinput.Model
	width     int
	height    int
}

func New() Model {
	ti := textinput.New()
	ti.Placeholder = ""
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 80

	ti.PromptStyle = lipgloss.NewStyle().Foreground(styles.OxocarbonPurple)
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.OxocarbonBase05)
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(styles.OxocarbonPurple)

	return Model{
		textInput: ti,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.width > 20 {
			m.textInput.Width = m.width - 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			query := m.textInput.Value()
			return m, func() tea.Msg {
				return common.PerformSearchMsg{Query: query}
			}
		case "esc":
			return m, func() tea.Msg {
				return common.GoBackMsg{}
			}
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var output string
	output += "\n"

	header := styles.TitleStyle.Render("  SEARCH  ")
	output += header + "\n"

	subtitle := styles.SubtitleStyle.Render("  Find something to watch")
	output += subtitle + "\n\n"

	searchBox := styles.ItemBorderSelectedStyle.Render(m.textInput.View())
	output += searchBox + "\n"

	helpText := "  enter search • esc back"
	output += "\n" + styles.HelpStyle.Render(helpText)

	return output
}

// SetValue sets the value of the search input
func (m *Model) SetValue(value string) {
	m.textInput.SetValue(value)
}

// Value returns the value of the search input
func (m Model) Value() string {
	return m.textInput.Value()
}
