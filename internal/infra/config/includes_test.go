package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIncludesSingleFile(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, "llm.yaml", `
llm:
  openai:
    api_key: "sk-from-include"
`)
	path := writeConfigFile(t, dir, "config.yaml", `
includes:
  - "llm.yaml"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-include", cfg.LLM.OpenAI.APIKey)
}

func TestIncludesGlobAndPrecedence(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "conf.d"), 0755))
	writeConfigFile(t, filepath.Join(dir, "conf.d"), "a.yaml", `
llm:
  openai:
    api_key: "sk-a"
logger:
  level: "warn"
`)
	writeConfigFile(t, filepath.Join(dir, "conf.d"), "b.yaml", `
search:
  timeout: 5s
`)
	path := writeConfigFile(t, dir, "config.yaml", `
includes:
  - "conf.d/*.yaml"
logger:
  level: "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-a", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "debug", cfg.Logger.Level, "main file wins over includes")
	assert.Equal(t, "5s", cfg.Search.Timeout.String())
}

func TestIncludesCircular(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, "a.yaml", "includes:\n  - b.yaml\n")
	writeConfigFile(t, dir, "b.yaml", "includes:\n  - a.yaml\n")
	path := writeConfigFile(t, dir, "config.yaml", "includes:\n  - a.yaml\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular")
}

func TestIncludesPathTraversal(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "config.yaml", "includes:\n  - ../outside.yaml\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}

func TestIncludesMissingLiteralFile(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "config.yaml", "includes:\n  - nope.yaml\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestIncludesGlobMatchingNothing(t *testing.T) {
	cleanEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk")
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "config.yaml", "includes:\n  - \"conf.d/*.yaml\"\n")

	_, err := Load(path)
	assert.NoError(t, err)
}
