package projectconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestNew_ReturnsAllDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, "copilot", cfg.Provider)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, ".council-cache", cfg.Cache.Dir)
	assert.Equal(t, "council-cache", cfg.Cache.Container)
	require.NotNil(t, cfg.Events.Enabled)
	assert.False(t, *cfg.Events.Enabled)
	assert.Equal(t, "consensus-council", cfg.Telemetry.ServiceName)
	assert.Empty(t, cfg.Orchestrator)
	assert.Empty(t, cfg.Dir)
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
provider: scripted
templates: council-templates.yaml
cache:
  backend: blob
  blob_url: https://acct.blob.core.windows.net
  container: audits
  prefix: team-a
events:
  enabled: true
  path: logs/events.jsonl
telemetry:
  endpoint: localhost:4318
  service_name: council-ci
orchestrator:
  maxParallel: 2
  roleModels:
    security: gpt-5
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "scripted", cfg.Provider)
	assert.Equal(t, filepath.Join(dir, "council-templates.yaml"), cfg.Resolve(cfg.Templates))
	assert.Equal(t, CacheConfig{
		Backend:   "blob",
		Dir:       DefaultCacheDir,
		BlobURL:   "https://acct.blob.core.windows.net",
		Container: "audits",
		Prefix:    "team-a",
	}, cfg.Cache)
	assert.True(t, *cfg.Events.Enabled)
	assert.Equal(t, "logs/events.jsonl", cfg.Events.Path)
	assert.Equal(t, "localhost:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, "council-ci", cfg.Telemetry.ServiceName)
	assert.Equal(t, 2, cfg.Orchestrator["maxParallel"])
	assert.Equal(t, map[string]any{"security": "gpt-5"}, cfg.Orchestrator["roleModels"])
	assert.Equal(t, dir, cfg.Dir)
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "cache:\n  dir: /tmp/c\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/c", cfg.Cache.Dir)
	assert.Equal(t, "/tmp/c", cfg.Resolve(cfg.Cache.Dir))
	assert.Equal(t, DefaultCacheBackend, cfg.Cache.Backend)
	assert.Equal(t, DefaultProvider, cfg.Provider)
}

func TestLoad_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, FileName, "provider: scripted\n")
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := Load(nested)
	require.NoError(t, err)
	assert.Equal(t, "scripted", cfg.Provider)
	assert.Equal(t, root, cfg.Dir)
}

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, New(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"invalid yaml":     "cache: [unclosed\n",
		"unknown backend":  "cache:\n  backend: redis\n",
		"blob without url": "cache:\n  backend: blob\n",
		"unknown provider": "provider: openai\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, FileName, body)
			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}
