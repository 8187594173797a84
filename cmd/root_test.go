package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orgmatch/internal/dedupe"
	"github.com/sells-group/orgmatch/internal/pipeline"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"dedupe", "score", "run", "serve"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestRootCmd_Metadata(t *testing.T) {
	assert.Equal(t, "orgmatch", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotNil(t, rootCmd.PersistentPreRunE)
}

func TestBatchCommands_Flags(t *testing.T) {
	for _, c := range []string{"dedupe", "score", "run"} {
		cmd, _, err := rootCmd.Find([]string{c})
		require.NoError(t, err)
		for _, f := range []string{"input", "sheet", "output", "format", "top"} {
			assert.NotNil(t, cmd.Flags().Lookup(f), "%s --%s", c, f)
		}
	}

	cmd, _, err := rootCmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, cmd.Flags().Lookup("port"))
}

func TestBatchFlags_Validate(t *testing.T) {
	assert.NoError(t, (&batchFlags{format: "report"}).validate())
	assert.NoError(t, (&batchFlags{format: "json"}).validate())
	assert.Error(t, (&batchFlags{format: "xml"}).validate())
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(batchJSON), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestRunCommand_JSONFile(t *testing.T) {
	in := writeInput(t)
	out := filepath.Join(t.TempDir(), "result.json")

	_, err := execute(t, "run", "--input", in, "--output", out, "--format", "json")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var res pipeline.Result
	require.NoError(t, json.Unmarshal(data, &res))
	require.NotNil(t, res.Dedupe)
	assert.Len(t, res.Dedupe.Merges, 1)
	require.Len(t, res.Scored, 2)
	assert.Equal(t, "a", res.Scored[0].Record.ID)
}

func TestScoreCommand_Report(t *testing.T) {
	in := writeInput(t)

	out, err := execute(t, "score", "--input", in, "--output", "", "--format", "report", "--top", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "# Run Report:")
	assert.Contains(t, out, "- Scored: 3")
	assert.Contains(t, out, "(c)")
}

func TestDedupeCommand_JSON(t *testing.T) {
	in := writeInput(t)

	out, err := execute(t, "dedupe", "--input", in, "--output", "", "--format", "json")
	require.NoError(t, err)
	var res dedupe.BatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Merges, 1)
	assert.Len(t, res.Records, 2)
}

func TestBatchCommand_Errors(t *testing.T) {
	in := writeInput(t)

	_, err := execute(t, "run", "--input", in, "--output", "", "--format", "xml")
	assert.Error(t, err)

	_, err = execute(t, "run", "--input", filepath.Join(t.TempDir(), "missing.csv"), "--format", "json")
	assert.Error(t, err)
}
