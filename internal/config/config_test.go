package config

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.NotEmpty(t, cfg.UserID)
	assert.Equal(t, filepath.Join(cfg.DataDir, "usage.db"), cfg.DBPath)
}

func TestLoadMinimalLayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := map[string]any{
		"port":       9000,
		"api_key":    "from-file",
		"server_url": "http://file.example:9000",
	}
	data, err := json.Marshal(file)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "config.json"), data, 0o600,
	))

	t.Setenv("USAGEVIEW_DATA_DIR", dir)
	t.Setenv("USAGEVIEW_API_KEY", "from-env")
	t.Setenv("USAGEVIEW_USER_ID", "envuser")

	cfg, err := LoadMinimal()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 9000, cfg.Port, "file sets port")
	assert.Equal(t, "from-env", cfg.APIKey, "env wins over file")
	assert.Equal(t, "http://file.example:9000", cfg.ServerURL)
	assert.Equal(t, "envuser", cfg.UserID)
	assert.Equal(t, filepath.Join(dir, "usage.db"), cfg.DBPath)
}

func TestLoadMinimalRejectsBadConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "config.json"), []byte("{nope"), 0o600,
	))
	t.Setenv("USAGEVIEW_DATA_DIR", dir)

	_, err := LoadMinimal()
	require.Error(t, err)
}

func TestLoadAppliesOnlyExplicitFlags(t *testing.T) {
	t.Setenv("USAGEVIEW_DATA_DIR", t.TempDir())

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	RegisterServeFlags(fs)
	require.NoError(t, fs.Parse([]string{"-port", "8123"}))

	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, 8123, cfg.Port)
	// The host flag was not set, so its default must not
	// override the config layer value.
	assert.Equal(t, "127.0.0.1", cfg.Host)
}

func TestTrackFlags(t *testing.T) {
	t.Setenv("USAGEVIEW_DATA_DIR", t.TempDir())

	fs := flag.NewFlagSet("track", flag.ContinueOnError)
	RegisterTrackFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"-server", "http://10.0.0.5:8000",
		"-user", "alice",
		"-interval", "5s",
	}))

	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8000", cfg.ServerURL)
	assert.Equal(t, "alice", cfg.UserID)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
}

func TestSaveAPIKey(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{DataDir: dir}

	require.NoError(t, cfg.SaveAPIKey("secret-1"))
	assert.Equal(t, "secret-1", cfg.APIKey)

	info, err := os.Stat(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Saving again must preserve unrelated keys.
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	got["server_url"] = "http://keep.example"
	out, err := json.Marshal(got)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "config.json"), out, 0o600,
	))

	require.NoError(t, cfg.SaveAPIKey("secret-2"))

	data, err = os.ReadFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	got = map[string]any{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "secret-2", got["api_key"])
	assert.Equal(t, "http://keep.example", got["server_url"])
}
