package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var referenceDeal = filepath.Join("..", "..", "..", "deals", "reference.yaml")

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		dealFile, save, verbose = "", false, false
		runJSON, scenariosJSON = false, false
		reportFormat, reportOut = "md", ""
	})

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "--deal", referenceDeal)
	require.NoError(t, err)
	assert.Contains(t, out, "# Reference CLO 2024-1: cash flow waterfall")
	assert.Contains(t, out, "| Subordinated Notes |")
}

func TestRunCommand_JSON(t *testing.T) {
	out, err := execute(t, "run", "--deal", referenceDeal, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"equity_cash_flows"`)
}

func TestScenariosCommand(t *testing.T) {
	out, err := execute(t, "scenarios", "-d", referenceDeal)
	require.NoError(t, err)
	assert.Contains(t, out, "| Severe |")
	assert.Contains(t, out, "## Expected loss and tranching")
}

func TestReportCommand_HTMLToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	out, err := execute(t, "report", "--deal", referenceDeal, "--format", "html", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "report written to")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<!DOCTYPE html>")
	assert.Contains(t, string(data), "scenario analysis")
}

func TestReportCommand_BadFormat(t *testing.T) {
	_, err := execute(t, "report", "--deal", referenceDeal, "--format", "pdf")
	assert.Error(t, err)
}

func TestRunCommand_MissingDeal(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}

func TestRunCommand_ErrorReportedOnce(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	out, err := execute(t, "run", "--deal", missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading deal")
	assert.Equal(t, 1, strings.Count(out, "Error: loading deal"), out)
}
