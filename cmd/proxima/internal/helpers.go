package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/oauth2"

	"github.com/tinyland-inc/proxima/pkg/bus"
	"github.com/tinyland-inc/proxima/pkg/config"
	"github.com/tinyland-inc/proxima/pkg/logger"
	"github.com/tinyland-inc/proxima/pkg/realtime"
	"github.com/tinyland-inc/proxima/pkg/session"
)

const Logo = "📡"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

// GetConfigPath honours PROXIMA_CONFIG, falling back to ~/.proxima/config.json.
func GetConfigPath() string {
	if p := os.Getenv("PROXIMA_CONFIG"); p != "" {
		return config.ExpandPath(p)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".proxima", "config.json")
}

func LoadConfig() (*config.Config, error) {
	return config.LoadConfig(GetConfigPath())
}

// SetupLogging applies the configured level; debug forces DEBUG.
func SetupLogging(cfg *config.Config, debug bool) {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
		return
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
}

// Session picks the identity source. An access token, when configured,
// authenticates the socket and REST calls and supplies the user id unless
// userOverride is set.
func Session(cfg *config.Config, userOverride string) (session.Provider, oauth2.TokenSource, error) {
	if cfg.Session.AccessToken != "" {
		tp, err := session.NewTokenProvider(cfg.Session.AccessToken)
		if err != nil {
			return nil, nil, fmt.Errorf("access token: %w", err)
		}
		if userOverride != "" {
			return session.Static(userOverride), tp, nil
		}
		return tp, tp, nil
	}
	user := userOverride
	if user == "" {
		user = cfg.Session.UserID
	}
	return session.Static(user), nil, nil
}

// NewRealtime wires a channel manager for cfg onto b.
func NewRealtime(cfg *config.Config, tokens oauth2.TokenSource, b *bus.EventBus) *realtime.Manager {
	dialer := &realtime.WebSocketDialer{
		URL:              cfg.Server.SocketURL,
		Tokens:           tokens,
		HandshakeTimeout: cfg.HandshakeTimeout(),
	}
	return realtime.NewManager(dialer, b, realtime.Options{
		ReconnectAttempts: cfg.Realtime.ReconnectAttempts,
		BaseDelay:         cfg.ReconnectBaseDelay(),
		MaxDelay:          cfg.ReconnectMaxDelay(),
	})
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

func GetVersion() string {
	return version
}
