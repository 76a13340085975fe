package mpv

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform represents the operating system platform
type Platform int

const (
	PlatformLinux Platform = iota
	PlatformWindows
	PlatformWSL
	PlatformMac
)

// IPCConfig holds IPC connection configuration
type IPCConfig struct {
	Type     IPCType
	Address  string
	IsSocket bool // true for Unix sockets, false for named pipes
}

// IPCType represents the IPC connection type
type IPCType int

const (
	IPCUnixSocket IPCType = iota
	IPCNamedPipe
)

// DetectPlatform detects the current platform
func DetectPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMac
	case "linux":
		if isWSL() {
			return PlatformWSL
		}
		return PlatformLinux
	default:
		return PlatformLinux
	}
}

// isWSL checks if running under Windows Subsystem for Linux
func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}

// GetMPVExecutable returns the mpv executable name for the platform.
// WSL uses the Linux mpv: gopv cannot reach Windows named pipes from
// inside WSL, and Unix sockets work.
func GetMPVExecutable(platform Platform) string {
	if platform == PlatformWindows {
		return "mpv.exe"
	}
	return "mpv"
}

// FindMPVExecutable attempts to find the mpv executable path
func FindMPVExecutable(platform Platform) (string, error) {
	executable := GetMPVExecutable(platform)

	path, err := exec.LookPath(executable)
	if err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%s not found in PATH. Please install mpv", executable)
}

// GetIPCConfig generates a fresh IPC endpoint for the platform
func GetIPCConfig(platform Platform) (*IPCConfig, error) {
	switch platform {
	case PlatformLinux, PlatformMac, PlatformWSL:
		socketPath, err := generateUnixSocketPath()
		if err != nil {
			return nil, err
		}
		return &IPCConfig{
			Type:     IPCUnixSocket,
			Address:  socketPath,
			IsSocket: true,
		}, nil

	case PlatformWindows:
		pipeName, err := generateNamedPipePath()
		if err != nil {
			return nil, err
		}
		return &IPCConfig{
			Type:     IPCNamedPipe,
			Address:  pipeName,
			IsSocket: false,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported platform")
	}
}

func generateUnixSocketPath() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	suffix := hex.EncodeToString(b)

	return filepath.Join(os.TempDir(), fmt.Sprintf("vesper-mpv-%s.sock", suffix)), nil
}

func generateNamedPipePath() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	suffix := hex.EncodeToString(b)

	return fmt.Sprintf(`\\.\pipe\vesper-mpv-%s`, suffix), nil
}

// GetMPVIPCArgument returns the mpv command-line argument for IPC
func GetMPVIPCArgument(config *IPCConfig) string {
	return fmt.Sprintf("--input-ipc-server=%s", config.Address)
}

// GetGopvConnectionString returns the connection string for gopv.
// Both socket paths and pipe names are used directly.
func GetGopvConnectionString(config *IPCConfig) string {
	return config.Address
}
