package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func Test_SeedCategories_DryRun(t *testing.T) {
	// given
	file := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(file, []byte("categories:\n  - name: Home\n    children:\n      - name: Kitchen\n"), 0o600))

	// when
	out, err := execute(t, "seed", "categories", "-f", file, "--dry-run", "--log-level", "error")

	// then
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "\t1\thome\tHome")
	assert.Contains(t, lines[1], "\t2\thome-kitchen\tKitchen")
}

func Test_Commands_RequireArguments(t *testing.T) {
	t.Setenv(databaseURLEnv, "")

	testCases := []struct {
		name string
		args []string
	}{
		{name: "seed without file", args: []string{"seed", "categories"}},
		{name: "seed with missing file", args: []string{"seed", "categories", "-f", "/nonexistent/tree.yaml"}},
		{name: "migrate without database", args: []string{"migrate", "up"}},
		{name: "migrate with extra args", args: []string{"migrate", "down", "now"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, tc.args...)
			assert.Error(t, err)
		})
	}
}
