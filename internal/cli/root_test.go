package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "rcontract", cmd.Use)
	assert.Contains(t, cmd.Long, "contract")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "normalize", "example", "test", "trace"}

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

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	// Every flag that feeds the configuration must be known to the loader.
	for _, name := range []string{
		"endpoint", "function-name", "region", "role-arn", "enforce-timeout",
		"poll-interval", "request-timeout", "max-rps", "scenarios", "trace-db",
		"filter", "overrides", "inputs", "export",
	} {
		require.NotNil(t, testCmd.Flags().Lookup(name), "flag %s", name)
		assert.Contains(t, flagConfigPaths, name)
	}
	assert.NotNil(t, testCmd.Flags().Lookup("label"))
}

func TestExampleCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	exampleCmd, _, err := cmd.Find([]string{"example"})
	require.NoError(t, err)

	kindFlag := exampleCmd.Flags().Lookup("kind")
	require.NotNil(t, kindFlag)
	assert.Equal(t, "create", kindFlag.DefValue)
	assert.NotNil(t, exampleCmd.Flags().Lookup("overrides"))
	assert.NotNil(t, exampleCmd.Flags().Lookup("export"))
}

func TestTraceCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	traceCmd, _, err := cmd.Find([]string{"trace"})
	require.NoError(t, err)

	runFlag := traceCmd.Flags().Lookup("run")
	require.NotNil(t, runFlag)
	assert.Equal(t, "", runFlag.DefValue)
	assert.NotNil(t, traceCmd.Flags().Lookup("scenario"))
	assert.NotNil(t, traceCmd.Flags().Lookup("list"))
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := executeCommand(t, "validate", "widget.json", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}
