package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()

	out := new(bytes.Buffer)
	root := newRootCmd()
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)

	require.NoError(t, root.Execute(), out.String())
	return out.String()
}

func TestImportQueryPeaks(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORAGE_PATH", filepath.Join(dir, "data"))
	t.Setenv("LOG_LEVEL", "error")

	accel := filepath.Join(dir, "accel.txt")
	require.NoError(t, os.WriteFile(accel, []byte("1 1 1 1 1\n1 1 1 1 1\n"), 0644))

	out := run(t, "import", "const", "--accel", accel, "--dt", "1", "--label", "event=test")
	assert.Contains(t, out, "imported const")

	out = run(t, "list", "--label", "event=test")
	assert.Contains(t, out, "const")
	assert.Contains(t, out, "AVD")
	assert.Contains(t, out, "event=test")

	out = run(t, "query", "const", "-t", "5")
	assert.Contains(t, out, "12.5")

	out = run(t, "peaks", "const")
	assert.Contains(t, out, "PGA:      1\n")
	assert.Contains(t, out, "duration: 10\n")

	run(t, "delete", "const")
	out = run(t, "list")
	assert.NotContains(t, out, "const")
}

func TestImportRequiresSeries(t *testing.T) {
	t.Setenv("STORAGE_PATH", t.TempDir())

	root := newRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"import", "nothing"})
	assert.Error(t, root.Execute())
}

func TestSeriesFlagsAndLabels(t *testing.T) {
	assert.Equal(t, "A-D", seriesFlags(true, false, true))
	assert.Equal(t, "a=1,b=2", formatLabels(map[string]string{"b": "2", "a": "1"}))
	assert.Equal(t, "", formatLabels(nil))
}
