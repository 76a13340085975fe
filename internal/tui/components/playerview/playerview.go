package playerview

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vesperhq/vesper/internal/audiobook"
	"github.com/vesperhq/vesper/internal/clipboard"
	"github.com/vesperhq/vesper/internal/playback"
	"github.com/vesperhq/vesper/internal/player"
	"github.com/vesperhq/vesper/internal/providers"
	"github.com/vesperhq/vesper/internal/session"
	"github.com/vesperhq/vesper/internal/tui/common"
	"github.com/vesperhq/vesper/internal/tui/styles"
	"github.com/vesperhq/vesper/internal/tui/utils"
)

type menu int

const (
	menuNone menu = iota
	menuProvider
	menuLanguage
	menuSleep
)

var sleepChoices = []struct {
	label    string
	duration time.Duration
	chapter  bool
	cancel   bool
}{
	{label: "15 minutes", duration: 15 * time.Minute},
	{label: "30 minutes", duration: 30 * time.Minute},
	{label: "45 minutes", duration: 45 * time.Minute},
	{label: "1 hour", duration: time.Hour},
	{label: "End of chapter", chapter: true},
	{label: "Off", cancel: true},
}

type Model struct {
	registry *providers.Registry
	clip     *clipboard.Service
	sleep    *audiobook.SleepTimer

	snapshot  session.Snapshot
	hasStream bool
	state     playback.State
	progress  player.Progress
	failure   *session.Failure

	controlsVisible bool
	activeMenu      menu
	menuCursor      int
	languages       []providers.Language

	width  int
	height int
}

func New(registry *providers.Registry, clip *clipboard.Service, sleep *audiobook.SleepTimer) Model {
	return Model{
		registry:        registry,
		clip:            clip,
		sleep:           sleep,
		controlsVisible: true,
		languages:       providers.Languages(),
		width:           80,
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case common.StreamChangedMsg:
		m.snapshot = msg.Snapshot
		m.hasStream = true
		m.failure = nil
		return m, nil

	case common.PlaybackStateMsg:
		m.state = msg.To
		return m, nil

	case common.ProgressMsg:
		m.progress = msg.Progress
		return m, nil

	case common.PlaybackFailedMsg:
		failure := msg.Failure
		m.failure = &failure
		m.controlsVisible = true
		return m, nil

	case common.ControlsIdleMsg:
		if m.activeMenu == menuNone && m.failure == nil {
			m.controlsVisible = false
		}
		return m, nil

	case tea.KeyMsg:
		m.controlsVisible = true
		if m.failure != nil {
			return m.updateFailure(msg)
		}
		if m.activeMenu != menuNone {
			return m.updateMenu(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case " ":
		return m, send(common.TogglePauseMsg{})
	case "left":
		return m, send(common.SeekMsg{By: -10 * time.Second})
	case "right":
		return m, send(common.SeekMsg{By: 10 * time.Second})
	case "n":
		return m, send(common.EpisodeNavMsg{Direction: 1})
	case "p":
		return m, send(common.EpisodeNavMsg{Direction: -1})
	case "P":
		m.activeMenu = menuProvider
		m.menuCursor = 0
		return m, nil
	case "l":
		m.activeMenu = menuLanguage
		m.menuCursor = 0
		return m, nil
	case "s":
		if m.snapshot.MediaType == providers.MediaTypeAudiobook {
			m.activeMenu = menuSleep
			m.menuCursor = 0
		}
		return m, nil
	case "b":
		if m.snapshot.MediaType == providers.MediaTypeAudiobook {
			return m, send(common.AddBookmarkMsg{})
		}
		return m, nil
	case "f":
		return m, send(common.ToggleFullscreenMsg{})
	case "y":
		if m.hasStream && m.clip != nil {
			return m, tea.Batch(
				m.clip.Write(m.snapshot.StreamURL),
				send(common.StatusMsg{Text: "Stream URL copied"}),
			)
		}
		return m, nil
	case "o":
		if m.hasStream {
			return m, send(common.OpenStreamMsg{})
		}
		return m, nil
	case "esc", "q":
		return m, send(common.StopPlaybackMsg{})
	}
	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (Model, tea.Cmd) {
	size := m.menuSize()
	switch msg.String() {
	case "up", "k":
		if m.menuCursor > 0 {
			m.menuCursor--
		}
	case "down", "j":
		if m.menuCursor < size-1 {
			m.menuCursor++
		}
	case "enter":
		cmd := m.menuSelect()
		m.activeMenu = menuNone
		return m, cmd
	case "esc":
		m.activeMenu = menuNone
	}
	return m, nil
}

func (m Model) menuSize() int {
	switch m.activeMenu {
	case menuProvider:
		return m.registry.Count()
	case menuLanguage:
		return len(m.languages)
	case menuSleep:
		return len(sleepChoices)
	}
	return 0
}

func (m Model) menuSelect() tea.Cmd {
	switch m.activeMenu {
	case menuProvider:
		ids := m.registry.List()
		if m.menuCursor < len(ids) {
			return send(common.SwitchProviderMsg{ProviderID: ids[m.menuCursor]})
		}
	case menuLanguage:
		if m.menuCursor < len(m.languages) {
			return send(common.SwitchLanguageMsg{Code: m.languages[m.menuCursor].Code})
		}
	case menuSleep:
		choice := sleepChoices[m.menuCursor]
		return send(common.SleepTimerMsg{
			Duration:     choice.duration,
			EndOfChapter: choice.chapter,
			Cancel:       choice.cancel,
		})
	}
	return nil
}

func (m Model) updateFailure(msg tea.KeyMsg) (Model, tea.Cmd) {
	actions := m.failure.Actions
	switch msg.String() {
	case "1", "2", "3":
		idx := int(msg.String()[0] - '1')
		if idx < len(actions) {
			action := actions[idx]
			m.failure = nil
			switch action {
			case session.ActionSwitchProvider:
				m.activeMenu = menuProvider
				m.menuCursor = 0
				return m, nil
			case session.ActionSwitchLanguage:
				m.activeMenu = menuLanguage
				m.menuCursor = 0
				return m, nil
			default:
				return m, send(common.SessionActionMsg{Action: action})
			}
		}
	case "esc", "q":
		m.failure = nil
		return m, send(common.StopPlaybackMsg{})
	}
	return m, nil
}

func (m Model) View() string {
	var output string
	output += "\n"

	title := m.snapshot.Title
	if m.snapshot.MediaType == providers.MediaTypeSeries && m.snapshot.Season > 0 {
		title = fmt.Sprintf("%s S%02dE%02d", title, m.snapshot.Season, m.snapshot.Episode)
	}
	output += styles.TitleStyle.Render("  NOW PLAYING  ") + "\n\n"
	output += "  " + styles.SubtitleStyle.Render(utils.TruncateWithWidth(title, m.width-4)) + "\n"

	meta := fmt.Sprintf("  %s • %s", m.snapshot.ProviderID, m.snapshot.Language)
	if m.snapshot.QualityLabel != "" {
		meta += " • " + m.snapshot.QualityLabel
	}
	if m.snapshot.SizeLabel != "" {
		meta += " • " + m.snapshot.SizeLabel
	}
	if m.snapshot.External {
		meta += " • playing in browser"
	}
	output += styles.MetadataStyle.Render(meta) + "\n\n"

	if m.failure != nil {
		output += m.renderFailure()
		return output
	}

	if m.activeMenu != menuNone {
		output += m.renderMenu()
		return output
	}

	output += m.renderProgress() + "\n"
	output += "  " + styles.MetadataStyle.Render(m.stateLine()) + "\n"

	if m.sleep != nil {
		if line := m.sleepLine(); line != "" {
			output += "  " + styles.SuccessStyle.Render(line) + "\n"
		}
	}

	if m.controlsVisible {
		output += styles.HelpStyle.Render("  " + m.helpLine())
	}

	return output
}

func (m Model) renderProgress() string {
	barWidth := m.width - 24
	if barWidth < 10 {
		barWidth = 10
	}

	filled := 0
	if m.progress.Duration > 0 {
		filled = int(float64(barWidth) * m.progress.Percent / 100)
		if filled > barWidth {
			filled = barWidth
		}
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	times := fmt.Sprintf("%s / %s", formatDuration(m.progress.Position), formatDuration(m.progress.Duration))

	return "  " + styles.ProgressStyle.Render(bar) + " " + styles.MetadataStyle.Render(times)
}

func (m Model) renderMenu() string {
	var title string
	var lines []string

	switch m.activeMenu {
	case menuProvider:
		title = "SWITCH PROVIDER"
		for _, st := range m.registry.Statuses() {
			label := st.ProviderID
			if st.ProviderID == m.snapshot.ProviderID {
				label += " (current)"
			}
			label += "  " + st.Status
			lines = append(lines, label)
		}
	case menuLanguage:
		title = "SWITCH LANGUAGE"
		for _, l := range m.languages {
			label := fmt.Sprintf("%s %s", l.Flag, l.Name)
			if l.Code == m.snapshot.Language {
				label += " (current)"
			}
			lines = append(lines, label)
		}
	case menuSleep:
		title = "SLEEP TIMER"
		for _, c := range sleepChoices {
			lines = append(lines, c.label)
		}
	}

	var body strings.Builder
	body.WriteString(styles.SubtitleStyle.Render(title) + "\n\n")
	for i, line := range lines {
		if i == m.menuCursor {
			body.WriteString(styles.SelectedItemStyle.Render("> "+line) + "\n")
		} else {
			body.WriteString(styles.NormalItemStyle.Render(line) + "\n")
		}
	}
	body.WriteString("\n" + styles.HelpStyle.Render("↑/↓ move • enter select • esc close"))

	return styles.PopupStyle.Render(body.String()) + "\n"
}

func (m Model) renderFailure() string {
	var body strings.Builder
	body.WriteString(styles.ErrorStyle.Render("Playback failed") + "\n\n")

	for _, line := range utils.WrapText(m.failure.Err.Error(), m.width-12) {
		body.WriteString(line + "\n")
	}
	body.WriteString("\n")

	for i, action := range m.failure.Actions {
		body.WriteString(fmt.Sprintf("%d. %s\n", i+1, actionLabel(action)))
	}
	body.WriteString("\n" + styles.HelpStyle.Render("1-3 choose • esc stop"))

	return styles.PopupStyle.Render(body.String()) + "\n"
}

func (m Model) stateLine() string {
	switch m.state {
	case playback.StateAttaching:
		return "Connecting..."
	case playback.StateReady:
		return "Ready"
	case playback.StatePlaying:
		return "Playing"
	case playback.StatePaused:
		return "Paused"
	case playback.StateEnded:
		return "Ended"
	case playback.StateError:
		return "Error"
	}
	return "Idle"
}

func (m Model) sleepLine() string {
	switch m.sleep.Mode() {
	case audiobook.SleepCountdown:
		if remaining, ok := m.sleep.Remaining(); ok {
			return fmt.Sprintf("Sleep in %s", formatDuration(remaining))
		}
	case audiobook.SleepEndOfChapter:
		return "Sleeping at end of chapter"
	}
	return ""
}

func (m Model) helpLine() string {
	base := "space pause • ←/→ seek • P provider • l language • f fullscreen • y copy url • o browser"
	if m.snapshot.MediaType == providers.MediaTypeSeries {
		base = "n/p episode • " + base
	}
	if m.snapshot.MediaType == providers.MediaTypeAudiobook {
		base = "s sleep • b bookmark • " + base
	}
	return base + " • esc stop"
}

func actionLabel(action session.Action) string {
	switch action {
	case session.ActionRetry:
		return "Retry this provider"
	case session.ActionSwitchProvider:
		return "Try another provider"
	case session.ActionSwitchLanguage:
		return "Change language"
	}
	return string(action)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

func send(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
