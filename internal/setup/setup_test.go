package setup

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientConfig_Missing(t *testing.T) {
	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "nope.json"))

	require.NoError(t, err)
	assert.Empty(t, cfg.MCPServers)
}

func TestRegister_PreservesOtherEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	existing := `{"theme":"dark","mcpServers":{"other":{"command":"/bin/other"}}}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0644))

	written, err := Register(Options{
		ConfigPath:    path,
		BinaryPath:    "/opt/dermascan/mcp-server-lite",
		DataDir:       "/data/dermascan",
		ModelEndpoint: "http://model:5000",
	})
	require.NoError(t, err)
	assert.Equal(t, path, written)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.JSONEq(t, `"dark"`, string(doc["theme"]))

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/bin/other", cfg.MCPServers["other"].Command)
	entry := cfg.MCPServers[ServerName]
	assert.Equal(t, "/opt/dermascan/mcp-server-lite", entry.Command)
	assert.Equal(t, "/data/dermascan", entry.Env["DERMASCAN_DATA_DIR"])
	assert.Equal(t, "http://model:5000", entry.Env["DERMASCAN_MODEL_ENDPOINT"])
}

func TestUnregister(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	_, err := Register(Options{ConfigPath: path, BinaryPath: "/bin/true"})
	require.NoError(t, err)

	removed, err := Unregister(path)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = Unregister(path)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "history.db"), nil, 0644))

	st, err := Inspect(path, dataDir)
	require.NoError(t, err)
	assert.False(t, st.Registered)
	assert.NotEmpty(t, st.Issues)

	binary := filepath.Join(dir, "mcp-server-lite")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0755))
	_, err = Register(Options{ConfigPath: path, BinaryPath: binary, DataDir: dataDir})
	require.NoError(t, err)

	st, err = Inspect(path, "/elsewhere")
	require.NoError(t, err)
	assert.True(t, st.Registered)
	assert.True(t, st.BinaryFound)
	assert.Equal(t, dataDir, st.DataDir)
	assert.True(t, st.DataDirFound)
	assert.True(t, st.HistoryDB)
	assert.Empty(t, st.Issues)
}

func TestCLI_RegisterAndStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	var out bytes.Buffer
	cli := NewCLI(&out, t.TempDir())

	require.NoError(t, cli.Run([]string{"register", "--config", path, "--binary", "/usr/bin/env"}))
	assert.Contains(t, out.String(), `Registered "dermascan"`)

	out.Reset()
	require.NoError(t, cli.Run([]string{"status", "-c", path}))
	assert.Contains(t, out.String(), "Registered:    yes")

	assert.Error(t, cli.Run([]string{"bogus"}))
	assert.Error(t, cli.Run([]string{"register", "--unknown-flag"}))
}
