package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ralph", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.DefaultTool)
	assert.Equal(t, DefaultMaxIterations, cfg.MaxIterations)
	assert.True(t, cfg.AutoArchive)
	assert.Empty(t, cfg.ExtraArgs)
}

func TestLoad_ReadsTOML(t *testing.T) {
	path := writeConfig(t, `default_tool = "claude"
max_iterations = 3
auto_archive = false
extra_args = ["--model", "opus"]
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "claude", cfg.DefaultTool)
	assert.Equal(t, 3, cfg.MaxIterations)
	assert.False(t, cfg.AutoArchive)
	assert.Equal(t, []string{"--model", "opus"}, cfg.ExtraArgs)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "max_iterations = 3\n")
	t.Setenv("RALPH_MAX_ITERATIONS", "7")
	t.Setenv("RALPH_DEFAULT_TOOL", "amp")
	t.Setenv("RALPH_EXTRA_ARGS", "--fast,--quiet")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxIterations)
	assert.Equal(t, "amp", cfg.DefaultTool)
	assert.Equal(t, []string{"--fast", "--quiet"}, cfg.ExtraArgs)

	fileOnly, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, fileOnly.MaxIterations)
	assert.Empty(t, fileOnly.DefaultTool)
}

func TestLoad_RejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "unknown key", content: "colour = \"red\"\n", want: "colour"},
		{name: "zero iterations", content: "max_iterations = 0\n", want: "max_iterations"},
		{name: "wrong type", content: "auto_archive = \"yes\"\n", want: "auto_archive"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config schema validation failed")
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestSetAndGet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set(KeyDefaultTool, " codebuddy "))
	require.NoError(t, cfg.Set(KeyMaxIterations, "25"))
	require.NoError(t, cfg.Set(KeyAutoArchive, "false"))
	require.NoError(t, cfg.Set(KeyExtraArgs, "--a  --b"))

	got, err := cfg.Get(KeyDefaultTool)
	require.NoError(t, err)
	assert.Equal(t, "codebuddy", got)
	got, err = cfg.Get(KeyMaxIterations)
	require.NoError(t, err)
	assert.Equal(t, "25", got)
	got, err = cfg.Get(KeyAutoArchive)
	require.NoError(t, err)
	assert.Equal(t, "false", got)
	got, err = cfg.Get(KeyExtraArgs)
	require.NoError(t, err)
	assert.Equal(t, "--a --b", got)
}

func TestSet_RejectsInvalidValues(t *testing.T) {
	cfg := Default()

	err := cfg.Set(KeyMaxIterations, "0")
	require.EqualError(t, err, "max_iterations must be a positive integer")
	err = cfg.Set(KeyMaxIterations, "ten")
	require.EqualError(t, err, "max_iterations must be a positive integer")
	err = cfg.Set(KeyAutoArchive, "yes")
	require.EqualError(t, err, "auto_archive must be true or false")

	err = cfg.Set("colour", "red")
	require.ErrorIs(t, err, ErrUnknownKey)
	_, err = cfg.Get("colour")
	require.ErrorIs(t, err, ErrUnknownKey)

	assert.Equal(t, Default().MaxIterations, cfg.MaxIterations)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.DefaultTool = "claude"
	cfg.MaxIterations = 4

	require.NoError(t, Save(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "claude", loaded.DefaultTool)
	assert.Equal(t, 4, loaded.MaxIterations)
	assert.True(t, loaded.AutoArchive)
}
