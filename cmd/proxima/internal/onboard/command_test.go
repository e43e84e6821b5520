package onboard

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/proxima/pkg/config"
)

func TestNewOnboardCommand(t *testing.T) {
	cmd := NewOnboardCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "onboard", cmd.Use)
	assert.Nil(t, cmd.Run)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("force"))
	assert.NotNil(t, cmd.Flags().Lookup("user"))
}

func TestOnboard_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	t.Setenv("PROXIMA_CONFIG", path)

	cmd := NewOnboardCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--user", "alice"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), path)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Session.UserID)
	assert.Equal(t, config.DefaultConfig().Server.SocketURL, cfg.Server.SocketURL)

	again := NewOnboardCommand()
	again.SetOut(&out)
	again.SetErr(&out)
	again.SetArgs([]string{})
	assert.Error(t, again.Execute(), "existing config needs --force")

	forced := NewOnboardCommand()
	forced.SetOut(&out)
	forced.SetArgs([]string{"--force"})
	assert.NoError(t, forced.Execute())
}
