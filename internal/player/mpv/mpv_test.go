package mpv

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesperhq/vesper/internal/player"
)

func TestGenerateIPCConfig(t *testing.T) {
	config1, err := GetIPCConfig(PlatformLinux)
	require.NoError(t, err)
	assert.Equal(t, IPCUnixSocket, config1.Type)
	assert.True(t, config1.IsSocket)
	assert.Contains(t, config1.Address, "vesper-mpv-")
	assert.Contains(t, config1.Address, ".sock")
	assert.Contains(t, config1.Address, os.TempDir())

	// Endpoints must be unique per launch
	config2, err := GetIPCConfig(PlatformLinux)
	require.NoError(t, err)
	assert.NotEqual(t, config1.Address, config2.Address)

	winConfig, err := GetIPCConfig(PlatformWindows)
	require.NoError(t, err)
	assert.Equal(t, IPCNamedPipe, winConfig.Type)
	assert.False(t, winConfig.IsSocket)
	assert.Contains(t, winConfig.Address, `\\.\pipe\vesper-mpv-`)
}

func TestBuildArgs(t *testing.T) {
	newHandle := func() *Handle {
		h := &Handle{platform: PlatformLinux, pollInterval: time.Second}
		cfg, err := GetIPCConfig(PlatformLinux)
		require.NoError(t, err)
		h.ipcConfig = cfg
		return h
	}

	t.Run("basic playback", func(t *testing.T) {
		h := newHandle()
		args := h.buildArgs("https://example.com/video.mp4", player.LoadOptions{})

		assert.Contains(t, args, "--idle=yes")
		assert.Contains(t, args, "--no-config")
		assert.Equal(t, "https://example.com/video.mp4", args[len(args)-1])
	})

	t.Run("start offset and rate", func(t *testing.T) {
		h := newHandle()
		args := h.buildArgs("https://example.com/video.mp4", player.LoadOptions{
			StartAt: 754 * time.Second,
			Volume:  75,
			Rate:    1.5,
		})

		joined := strings.Join(args, " ")
		assert.Contains(t, joined, "--start=754")
		assert.Contains(t, joined, "--volume=75")
		assert.Contains(t, joined, "--speed=1.5")
	})

	t.Run("fullscreen and title", func(t *testing.T) {
		h := newHandle()
		args := h.buildArgs("https://example.com/video.mp4", player.LoadOptions{
			Fullscreen: true,
			Title:      "The Matrix",
		})

		assert.Contains(t, args, "--fullscreen")
		assert.Contains(t, args, "--force-media-title=The Matrix")
	})

	t.Run("http context", func(t *testing.T) {
		h := newHandle()
		args := h.buildArgs("https://cdn.example.com/master.m3u8", player.LoadOptions{
			Referer:   "https://vidora.stream",
			UserAgent: "vesper/1.0",
			Headers: map[string]string{
				"Origin":  "https://vidora.stream",
				"Referer": "ignored, handled separately",
			},
		})

		joined := strings.Join(args, " ")
		assert.Contains(t, joined, "--referrer=https://vidora.stream")
		assert.Contains(t, joined, "--user-agent=vesper/1.0")
		assert.Contains(t, joined, "--http-header-fields=Origin: https://vidora.stream")
		assert.NotContains(t, joined, "ignored, handled separately")
	})

	t.Run("user config respected", func(t *testing.T) {
		h := newHandle()
		h.loadUserConfig = true
		args := h.buildArgs("https://example.com/video.mp4", player.LoadOptions{})
		assert.NotContains(t, args, "--no-config")
	})

	t.Run("extra args pass through before url", func(t *testing.T) {
		h := newHandle()
		args := h.buildArgs("https://example.com/video.mp4", player.LoadOptions{
			ExtraArgs: []string{"--hwdec=auto"},
		})
		assert.Contains(t, args, "--hwdec=auto")
		assert.Equal(t, "https://example.com/video.mp4", args[len(args)-1])
	})
}

func TestHandleStateBeforeLoad(t *testing.T) {
	h := &Handle{state: player.StateIdle}

	assert.Equal(t, player.StateIdle, h.State())

	_, err := h.Progress(context.Background())
	assert.Error(t, err)

	assert.Error(t, h.Pause(context.Background()))
	assert.Error(t, h.Seek(context.Background(), time.Minute))
}

func TestReleaseIdempotent(t *testing.T) {
	h := &Handle{state: player.StateIdle}
	require.NoError(t, h.Release(context.Background()))
	require.NoError(t, h.Release(context.Background()))
	assert.Equal(t, player.StateIdle, h.State())
}
