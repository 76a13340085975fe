// Package clipboard copies stream URLs and titles to the system
// clipboard across Linux, macOS, Windows, and WSL.
package clipboard

import (
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// Service copies text to the system clipboard
type Service struct {
	logger *slog.Logger
	// customCommand overrides the platform default tool
	customCommand string
}

// NewService creates a clipboard service. customCommand may be empty.
func NewService(logger *slog.Logger, customCommand string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, customCommand: customCommand}
}

// Write copies text to the clipboard, returning a tea.Cmd so fallback
// tools run off the update loop
func (s *Service) Write(text string) tea.Cmd {
	if err := clipboard.WriteAll(text); err == nil {
		s.logger.Debug("copied to clipboard", "length", len(text))
		return func() tea.Msg { return nil }
	}

	if s.customCommand != "" {
		return s.copyWithCommand(text, s.customCommand)
	}
	if isWSL() {
		// WSL reaches the Windows clipboard through clip.exe
		return s.copyWithCommand(text, "clip.exe")
	}
	return s.copyWithDefault(text)
}

// copyWithDefault pipes text into the platform clipboard tool
func (s *Service) copyWithDefault(text string) tea.Cmd {
	return func() tea.Msg {
		var cmd *exec.Cmd

		switch runtime.GOOS {
		case "windows":
			cmd = exec.Command("clip.exe")
		case "darwin":
			cmd = exec.Command("pbcopy")
		case "linux":
			switch {
			case commandExists("wl-copy"):
				cmd = exec.Command("wl-copy")
			case commandExists("xclip"):
				cmd = exec.Command("xclip", "-selection", "clipboard")
			case commandExists("xsel"):
				cmd = exec.Command("xsel", "--clipboard", "--input")
			default:
				s.logger.Warn("no clipboard tool found (install xclip, xsel, or wl-clipboard)")
				return nil
			}
		default:
			s.logger.Warn("clipboard not supported", "os", runtime.GOOS)
			return nil
		}

		cmd.Stdin = strings.NewReader(text)
		if err := cmd.Run(); err != nil {
			s.logger.Error("clipboard copy failed", "command", cmd.Path, "error", err)
		}
		return nil
	}
}

// copyWithCommand pipes text into a user-configured command
func (s *Service) copyWithCommand(text, command string) tea.Cmd {
	return func() tea.Msg {
		parts := parseCommand(command)
		if len(parts) == 0 {
			s.logger.Error("empty clipboard command configured")
			return nil
		}

		cmd := exec.Command(parts[0], parts[1:]...)
		cmd.Stdin = strings.NewReader(text)
		if err := cmd.Run(); err != nil {
			s.logger.Error("clipboard copy failed", "command", command, "error", err)
		}
		return nil
	}
}

// parseCommand splits a command string into parts, respecting quotes
func parseCommand(command string) []string {
	var parts []string
	var currentPart strings.Builder
	var inQuotes bool
	var quoteChar rune

	for _, char := range command {
		switch {
		case char == '\'' || char == '"':
			if !inQuotes {
				inQuotes = true
				quoteChar = char
			} else if char == quoteChar {
				inQuotes = false
			} else {
				currentPart.WriteRune(char)
			}
		case char == ' ' && !inQuotes:
			if currentPart.Len() > 0 {
				parts = append(parts, currentPart.String())
				currentPart.Reset()
			}
		default:
			currentPart.WriteRune(char)
		}
	}

	if currentPart.Len() > 0 {
		parts = append(parts, currentPart.String())
	}
	return parts
}

func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}

func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
