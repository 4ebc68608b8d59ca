package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/projectconfig"
)

func mustLoadProject(t *testing.T, dir string) *projectconfig.ProjectConfig {
	t.Helper()
	pc, err := projectconfig.Load(dir)
	require.NoError(t, err)
	return pc
}

func TestCacheClear(t *testing.T) {
	dir, doc, replies := newProject(t, allPRDRoles(4))
	require.NoError(t, runAudit(context.Background(), &bytes.Buffer{}, &auditFlags{projectDir: dir, repliesDir: replies, format: "text"}, "prd", doc))

	entries, err := os.ReadDir(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"cache", "clear", "--project-dir", dir})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Cache cleared: "+filepath.Join(dir, "cache"))

	entries, err = os.ReadDir(filepath.Join(dir, "cache"))
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestCacheClearWithoutCache(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, projectconfig.FileName), []byte("cache:\n  backend: none\n"), 0644))

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"cache", "clear", "--project-dir", dir})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Nothing to clear: cache backend is none")
}

func TestOpenCacheBackends(t *testing.T) {
	pc := projectconfig.New()
	pc.Dir = t.TempDir()

	pc.Cache.Backend = projectconfig.CacheBackendNone
	store, err := openCache(pc)
	require.NoError(t, err)
	assert.Nil(t, store)

	pc.Cache.Backend = projectconfig.CacheBackendMemory
	store, err = openCache(pc)
	require.NoError(t, err)
	assert.NotNil(t, store)

	pc.Cache.Backend = "tape"
	_, err = openCache(pc)
	assert.Error(t, err)
}
