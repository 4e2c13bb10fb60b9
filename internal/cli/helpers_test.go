package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// testPatterns declares one pattern that matches rising stock prices and
// one that never matches stock ticks.
const testPatterns = `
package patterns

pattern: rising: {
	structure: seq: [
		{type: "Stock", name: "a"},
		{type: "Stock", name: "b"},
	]
	where: "a.price < b.price"
	within: "5m"
}

pattern: unacked_spike: {
	structure: seq: [
		{type: "Spike", name: "s"},
		{not: {type: "Ack", name: "k"}},
	]
	where: "s.level >= 3"
	within: 60
	policy: single: ["Spike"]
}
`

// stockEvents produce five rising matches: 10<12, 10<11.5, 10<15, 12<15
// and 11.5<15.
var stockEvents = []string{
	`{"type":"Stock","timestamp":"2024-01-02T10:00:00Z","payload":{"price":10}}`,
	`{"type":"Stock","timestamp":"2024-01-02T10:00:01Z","payload":{"price":12}}`,
	`{"type":"Stock","timestamp":"2024-01-02T10:00:02Z","payload":{"price":11.5}}`,
	`{"type":"Stock","timestamp":"2024-01-02T10:00:03Z","payload":{"price":15}}`,
}

// writePatterns writes src as the only CUE file of a new directory.
func writePatterns(t *testing.T, src string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "patterns")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "patterns.cue"), []byte(src), 0644))
	return dir
}

// writeEvents writes a JSON Lines event file.
func writeEvents(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

// execute runs cmd with args and returns its stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// runInto evaluates the test patterns over events and stores the result
// in a new database, returning its path.
func runInto(t *testing.T, patternsDir string, events ...string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cep.db")
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	_, err := execute(cmd, patternsDir, "--events", writeEvents(t, events...), "--db", dbPath)
	require.NoError(t, err)
	return dbPath
}
