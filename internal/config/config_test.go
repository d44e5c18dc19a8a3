package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_DerivedPaths(t *testing.T) {
	cm := NewConfigManager()
	cfg := cm.GetConfig()

	assert.Equal(t, filepath.Join("./mediatags-data", "tag_index.json"), cfg.Storage.TagIndexPath)
	assert.Equal(t, filepath.Join("./mediatags-data", "scan_profiles.json"), cfg.Storage.ProfilesPath)
	assert.Equal(t, filepath.Join("./mediatags-data", "catalog.db"), cfg.Catalog.Path)
	assert.Equal(t, "ai_quick", cfg.Classifier.CompanionLayer)
	assert.Equal(t, 2*time.Second, cfg.Scanner.FFProbeTimeout)
}

func TestLoadConfig_YAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mediatags.yaml")
	yamlDoc := `
storage:
  data_dir: ` + dir + `
scanner:
  worker_count: 3
  ffprobe_timeout: 5s
classifier:
  model_path: /models/deep.json
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0644))
	t.Setenv("MEDIATAGS_WORKER_COUNT", "4")
	t.Setenv("MEDIATAGS_LOG_LEVEL", "debug")

	cm := NewConfigManager()
	require.NoError(t, cm.LoadConfig(path))
	cfg := cm.GetConfig()

	assert.Equal(t, 4, cfg.Scanner.WorkerCount)
	assert.Equal(t, 5*time.Second, cfg.Scanner.FFProbeTimeout)
	assert.Equal(t, "/models/deep.json", cfg.Classifier.ModelPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, filepath.Join(dir, "tag_index.json"), cfg.Storage.TagIndexPath)
	// untouched by file or env
	assert.Equal(t, "ffprobe", cfg.Scanner.FFProbeBinary)
}

func TestLoadConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mediatags.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server": {"addr": ":9999"}}`), 0644))

	cm := NewConfigManager()
	require.NoError(t, cm.LoadConfig(path))
	assert.Equal(t, ":9999", cm.GetConfig().Server.Addr)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown catalog", "catalog:\n  type: mongo\n"},
		{"postgres without dsn", "catalog:\n  type: postgres\n"},
		{"negative workers", "scanner:\n  worker_count: -1\n"},
		{"cpu threshold", "scanner:\n  cpu_threshold: 120\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yml")
			require.NoError(t, os.WriteFile(path, []byte(tt.doc), 0644))
			assert.Error(t, NewConfigManager().LoadConfig(path))
		})
	}
}

func TestLoadConfig_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0644))
	assert.Error(t, NewConfigManager().LoadConfig(path))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "mediatags.yaml")

	cm := NewConfigManager()
	assert.Error(t, cm.SaveConfig())

	require.NoError(t, cm.LoadConfig(path))
	require.NoError(t, cm.SaveConfig())
	assert.FileExists(t, path)

	reloaded := NewConfigManager()
	require.NoError(t, reloaded.LoadConfig(path))
	assert.Equal(t, cm.GetConfig().Server.Addr, reloaded.GetConfig().Server.Addr)
}

func TestAddWatcher_NotifiedOnLoad(t *testing.T) {
	cm := NewConfigManager()
	done := make(chan *Config, 1)
	cm.AddWatcher(func(_, newConfig *Config) { done <- newConfig })

	require.NoError(t, cm.LoadConfig(""))

	select {
	case cfg := <-done:
		assert.Equal(t, "sqlite", cfg.Catalog.Type)
	case <-time.After(time.Second):
		t.Fatal("watcher not called")
	}
}
