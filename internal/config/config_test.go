package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFilename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOptionalMissing(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), DefaultFilename))
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), DefaultFilename))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInvalid(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "modules: [\n")
	_, err := LoadOptional(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
modules:
  root: app
  redirects:
    old/form.mjson: ui/form.mjson
  labels:
    owner: vendor
catalog: modules.db
html: index.html
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	r, err := cfg.Resolve(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "app"), r.ModuleRoot)
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(dir, "app"))+"/", r.Location)
	assert.Equal(t, filepath.Join(dir, "modules.db"), r.Catalog)
	assert.Equal(t, filepath.Join(dir, "index.html"), r.HTML)
	assert.Equal(t, map[string]string{"old/form.mjson": "ui/form.mjson"}, r.Redirects)
	assert.Equal(t, map[string]string{"owner": filepath.Join(dir, "vendor")}, r.LabelRoots)
	assert.Equal(t, slog.LevelDebug, r.LogLevel)
}

func TestResolveDefaults(t *testing.T) {
	dir := t.TempDir()
	r, err := (&Config{Catalog: ":memory:", Modules: ModulesConfig{Location: "app://"}}).Resolve(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, r.ModuleRoot)
	assert.Equal(t, "app://", r.Location)
	assert.Equal(t, ":memory:", r.Catalog)
	assert.Empty(t, r.HTML)
	assert.Equal(t, slog.LevelWarn, r.LogLevel)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelWarn},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
