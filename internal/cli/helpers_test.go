package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// homeEvents is a view with one fetch, stopped after the resource completed.
const homeEvents = `{"event":"start_view","fields":{"key":{"id":"home","name":"Home"}}}
{"event":"start_resource","offset":"10ms","fields":{"key":"r1","url":"https://api.example.com/cart","method":"GET"}}

{"event":"stop_resource","offset":"50ms","fields":{"key":"r1","status_code":200,"kind":"fetch"}}
{"event":"stop_view","offset":"100ms","fields":{"key":{"id":"home","name":"Home"}}}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeConfig writes a config storing documents in dir/rum.db.
func writeConfig(t *testing.T, dir, encoding string) string {
	t.Helper()
	return writeFile(t, dir, "rum.toml", `
application_id = "app-cli"
service = "shop"
first_party_hosts = ["api.example.com"]

[store]
path = "`+filepath.ToSlash(filepath.Join(dir, "rum.db"))+`"
encoding = "`+encoding+`"
`)
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// seedDatabase runs homeEvents into a fresh database and returns its path.
func seedDatabase(t *testing.T, deterministic bool) string {
	t.Helper()
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "json")
	events := writeFile(t, dir, "events.jsonl", homeEvents)

	args := []string{"--config", cfg, events}
	if deterministic {
		args = append([]string{"--deterministic"}, args...)
	}
	_, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), args...)
	require.NoError(t, err)
	return filepath.Join(dir, "rum.db")
}
