package results

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vesperhq/vesper/internal/library"
	"github.com/vesperhq/vesper/internal/tui/common"
	"github.com/vesperhq/vesper/internal/tui/styles"
	"github.com/vesperhq/vesper/internal/tui/utils"
)

const visibleItems = 10

type Model struct {
	items    []library.Item
	filtered []library.Item
	cursor   int
	offset   int
	width    int

	filtering   bool
	filterInput textinput.Model
}

func New() Model {
	fi := textinput.New()
	fi.Prompt = "/"
	fi.CharLimit = 100

	return Model{
		filterInput: fi,
		width:       80,
	}
}

// SetItems replaces the result set and resets the cursor
func (m *Model) SetItems(items []library.Item) {
	m.items = items
	m.filtered = items
	m.cursor = 0
	m.offset = 0
	m.filtering = false
	m.filterInput.SetValue("")
}

// Selected returns the item under the cursor
func (m Model) Selected() (library.Item, bool) {
	if len(m.filtered) == 0 || m.cursor >= len(m.filtered) {
		return library.Item{}, false
	}
	return m.filtered[m.cursor], true
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			switch msg.String() {
			case "enter", "esc":
				m.filtering = false
				m.filterInput.Blur()
				return m, nil
			default:
				var cmd tea.Cmd
				m.filterInput, cmd = m.filterInput.Update(msg)
				m.applyFilter()
				return m, cmd
			}
		}

		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
				if m.cursor >= m.offset+visibleItems {
					m.offset = m.cursor - visibleItems + 1
				}
			}
		case "/":
			m.filtering = true
			m.filterInput.Focus()
			return m, textinput.Blink
		case "enter":
			if item, ok := m.Selected(); ok {
				return m, func() tea.Msg {
					return common.PlayItemMsg{Item: item, Season: firstSeason(item), Episode: firstEpisode(item)}
				}
			}
		case "esc":
			if m.filterInput.Value() != "" {
				m.filterInput.SetValue("")
				m.applyFilter()
				return m, nil
			}
			return m, func() tea.Msg { return common.GoBackMsg{} }
		}
	}

	return m, nil
}

func (m *Model) applyFilter() {
	m.filtered = library.FilterItems(m.items, m.filterInput.Value())
	m.cursor = 0
	m.offset = 0
}

func (m Model) View() string {
	var output string
	output += "\n"

	header := styles.TitleStyle.Render("  RESULTS  ")
	count := styles.MetadataStyle.Render(fmt.Sprintf("  %d items", len(m.filtered)))
	output += header + count + "\n\n"

	if m.filtering || m.filterInput.Value() != "" {
		output += "  " + m.filterInput.View() + "\n\n"
	}

	if len(m.filtered) == 0 {
		output += styles.MetadataStyle.Render("  Nothing found") + "\n"
	}

	end := m.offset + visibleItems
	if end > len(m.filtered) {
		end = len(m.filtered)
	}

	for i := m.offset; i < end; i++ {
		item := m.filtered[i]
		line := item.Title
		if item.Year > 0 {
			line = fmt.Sprintf("%s (%d)", item.Title, item.Year)
		}
		line = utils.TruncateWithWidth(line, m.width-10)
		meta := styles.MetadataStyle.Render(" " + item.MediaType)

		if i == m.cursor {
			output += styles.ItemBorderSelectedStyle.Render(styles.SelectedItemStyle.Render(line)+meta) + "\n"
		} else {
			output += styles.ItemBorderStyle.Render(styles.NormalItemStyle.Render(line)+meta) + "\n"
		}
	}

	helpText := "  ↑/↓ move • enter play • / filter • esc back"
	output += styles.HelpStyle.Render(helpText)

	return output
}

// firstSeason returns the starting season for a fresh series session
func firstSeason(item library.Item) int {
	if item.MediaType == "series" {
		return 1
	}
	return 0
}

func firstEpisode(item library.Item) int {
	if item.MediaType == "series" {
		return 1
	}
	return 0
}
