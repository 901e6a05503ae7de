package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/milosgajdos/go-tftp/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerRequiresRootDir(t *testing.T) {
	_, err := config.LoadServer([]string{"--port", "6969"})
	require.Error(t, err)
}

func TestLoadServerParsesFlags(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tftp")

	cfg, err := config.LoadServer([]string{"--port", "6969", "--log-level", "warn", root})
	require.NoError(t, err)

	assert.EqualValues(t, 6969, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, root, cfg.RootDir)
}

func TestLoadServerRejectsInvalidPort(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tftp")

	_, err := config.LoadServer([]string{"--port", "99999", root})
	require.Error(t, err)
}

func TestLoadServerAuditFlagEnablesAudit(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tftp")

	cfg, err := config.LoadServer([]string{"--audit", root})
	require.NoError(t, err)

	assert.True(t, cfg.AuditEnabled)
}

func TestLoadServerCreatesMissingRootDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does", "not", "exist", "yet")

	cfg, err := config.LoadServer([]string{root})
	require.NoError(t, err)

	info, err := os.Stat(cfg.RootDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoadClientDefaultsToInteractive(t *testing.T) {
	cfg, err := config.LoadClient(nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.Dest)
}

func TestLoadClientParsesGetFlags(t *testing.T) {
	cfg, err := config.LoadClient([]string{"--hostname", "10.0.0.1", "--file", "boot.img", "--dest", "boot.local.img"})
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1", cfg.Hostname)
	assert.Equal(t, "boot.img", cfg.File)
	assert.Equal(t, "boot.local.img", cfg.Dest)
}

func TestLoadClientParsesPutFlags(t *testing.T) {
	cfg, err := config.LoadClient([]string{"--hostname", "10.0.0.1", "--dest", "incoming.img"})
	require.NoError(t, err)

	assert.Empty(t, cfg.File)
	assert.Equal(t, "incoming.img", cfg.Dest)
}
