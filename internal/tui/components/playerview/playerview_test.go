package playerview

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesperhq/vesper/internal/providers"
	"github.com/vesperhq/vesper/internal/session"
	"github.com/vesperhq/vesper/internal/tui/common"
)

func testRegistry(t *testing.T) *providers.Registry {
	t.Helper()
	reg := providers.NewRegistry()
	for _, id := range []string{"vidora", "nimbus"} {
		err := reg.Register(providers.NewEmbedProvider(providers.EmbedConfig{
			ID:          id,
			DisplayName: id,
			BaseURL:     "https://" + id + ".example",
			Languages:   []string{"en"},
		}))
		require.NoError(t, err)
	}
	return reg
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestPlayerView_FailureRetryAction(t *testing.T) {
	m := New(testRegistry(t), nil, nil)

	m, _ = m.Update(common.PlaybackFailedMsg{Failure: session.Failure{
		Err:     errors.New("stream stalled"),
		Actions: []session.Action{session.ActionRetry, session.ActionSwitchProvider},
	}})

	_, cmd := m.Update(keyRune('1'))
	require.NotNil(t, cmd)

	msg, ok := cmd().(common.SessionActionMsg)
	require.True(t, ok)
	assert.Equal(t, session.ActionRetry, msg.Action)
}

func TestPlayerView_FailureSwitchOpensProviderMenu(t *testing.T) {
	m := New(testRegistry(t), nil, nil)

	m, _ = m.Update(common.PlaybackFailedMsg{Failure: session.Failure{
		Err:     errors.New("all providers failed"),
		Actions: []session.Action{session.ActionRetry, session.ActionSwitchProvider},
	}})

	m, cmd := m.Update(keyRune('2'))
	assert.Nil(t, cmd)
	assert.Equal(t, menuProvider, m.activeMenu)

	// Selecting the second provider emits the switch
	m, _ = m.Update(keyRune('j'))
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg, ok := cmd().(common.SwitchProviderMsg)
	require.True(t, ok)
	assert.Equal(t, "nimbus", msg.ProviderID)
}

func TestPlayerView_TransportKeys(t *testing.T) {
	m := New(testRegistry(t), nil, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	require.NotNil(t, cmd)
	_, ok := cmd().(common.TogglePauseMsg)
	assert.True(t, ok)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	require.NotNil(t, cmd)
	seek, ok := cmd().(common.SeekMsg)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, seek.By)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	require.NotNil(t, cmd)
	_, ok = cmd().(common.StopPlaybackMsg)
	assert.True(t, ok)
}

func TestPlayerView_ControlsHideOnIdle(t *testing.T) {
	m := New(testRegistry(t), nil, nil)
	require.True(t, m.controlsVisible)

	m, _ = m.Update(common.ControlsIdleMsg{})
	assert.False(t, m.controlsVisible)

	// Any key brings them back
	m, _ = m.Update(keyRune('x'))
	assert.True(t, m.controlsVisible)
}

func TestPlayerView_AudiobookKeysGated(t *testing.T) {
	m := New(testRegistry(t), nil, nil)
	m.snapshot = session.Snapshot{MediaType: providers.MediaTypeMovie}

	m, cmd := m.Update(keyRune('b'))
	assert.Nil(t, cmd)

	m.snapshot = session.Snapshot{MediaType: providers.MediaTypeAudiobook}
	_, cmd = m.Update(keyRune('b'))
	require.NotNil(t, cmd)
	_, ok := cmd().(common.AddBookmarkMsg)
	assert.True(t, ok)
}
