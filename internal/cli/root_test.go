package cli

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "opencep", cmd.Use)
	assert.Contains(t, cmd.Long, "partial-match")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "run", "replay", "test", "matches"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"events", "db", "pattern", "unsorted-storage", "parallel", "metrics-addr"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), name)
	}
	// --db is optional; without it matches are only printed
	assert.Equal(t, "", runCmd.Flags().Lookup("db").DefValue)
	assert.Equal(t, "false", runCmd.Flags().Lookup("parallel").DefValue)
}

func TestReplayCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	replayCmd, _, err := cmd.Find([]string{"replay"})
	require.NoError(t, err)

	require.NotNil(t, replayCmd.Flags().Lookup("db"))
	require.NotNil(t, replayCmd.Flags().Lookup("events"))
	require.NotNil(t, replayCmd.Flags().Lookup("run"))
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	require.NotNil(t, testCmd.Flags().Lookup("filter"))
	require.NotNil(t, testCmd.Flags().Lookup("golden"))
}

func TestMatchesCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	matchesCmd, _, err := cmd.Find([]string{"matches"})
	require.NoError(t, err)

	for _, name := range []string{"db", "run", "pattern", "limit", "runs"} {
		assert.NotNil(t, matchesCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "0", matchesCmd.Flags().Lookup("limit").DefValue)
}

func TestCommandHelp(t *testing.T) {
	cmd := NewRootCommand()

	assert.Contains(t, cmd.Short, "OpenCEP")
	assert.Contains(t, cmd.Long, "CUE")
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "invalid", "compile", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootRunsSubcommand(t *testing.T) {
	patternsDir := writePatterns(t, testPatterns)
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"--verbose", "run", patternsDir, "--events", writeEvents(t, stockEvents...), "--pattern", "rising"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "5 match(es)")
	// Logging is routed to the command's stderr
	assert.Contains(t, errOut.String(), "evaluation finished")
	assert.Contains(t, errOut.String(), "level=DEBUG")
}
