package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LEDGERVIEW_CONFIG", "")
	t.Setenv("LEDGERVIEW_API_VARIANT", "")
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/api/v1", c.API.BaseURL)
	require.Equal(t, "b", c.API.Variant)
	require.Equal(t, 10*time.Second, c.API.Timeout)
	require.Equal(t, SessionFile, c.Session.Backend)
	require.Equal(t, filepath.Join(home, ".local", "share", "ledgerview", "session.json"), c.Session.Path)
	require.Equal(t, 5*time.Second, c.Notify.DefaultTTL)
	require.Equal(t, 5, c.Notify.MaxQueue)
	require.Equal(t, 10, c.UI.PageSize)
	require.Equal(t, 24*time.Hour, c.Mock.TokenTTL)
	require.Zero(t, c.Mock.LatencyMax)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[api]
variant = "A"
timeout = "3s"

[session]
backend = "sqlite"

[mock]
latency_min = "200ms"
latency_max = "500ms"
`), 0o600))
	t.Setenv("LEDGERVIEW_CONFIG", path)
	t.Setenv("LEDGERVIEW_UI_PAGE_SIZE", "25")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, "a", c.API.Variant)
	require.Equal(t, 3*time.Second, c.API.Timeout)
	require.Equal(t, SessionSQLite, c.Session.Backend)
	require.Equal(t, "session.db", filepath.Base(c.Session.Path))
	require.Equal(t, 25, c.UI.PageSize)
	require.Equal(t, 200*time.Millisecond, c.Mock.LatencyMin)
	require.Equal(t, 500*time.Millisecond, c.Mock.LatencyMax)
}

func TestSaveThenLoad(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "cfg", "config.toml")
	t.Setenv("LEDGERVIEW_CONFIG", path)

	c, err := Load()
	require.NoError(t, err)
	c.UI.PageSize = 50
	c.API.Variant = "a"
	require.NoError(t, Save(c))

	got, err := Load()
	require.NoError(t, err)
	require.Equal(t, 50, got.UI.PageSize)
	require.Equal(t, "a", got.API.Variant)
	require.Equal(t, c.API.Timeout, got.API.Timeout)
}
