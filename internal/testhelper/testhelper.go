// Package testhelper contains small helpers shared by this module's tests.
package testhelper

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TempDir creates a temp dir named after the running test and returns a
// cleanup function that removes it.
func TempDir(t *testing.T) (out string, cleanup func()) {
	var err error
	out, err = os.MkdirTemp("", strings.ReplaceAll(t.Name(), "/", "_")+"_")
	require.NoError(t, err)

	cleanup = func() {
		require.NoError(t, os.RemoveAll(out))
	}
	return out, cleanup
}

// TempFile creates a temp file named after the running test and
// returns a cleanup function that removes it.
func TempFile(t *testing.T) (f *os.File, cleanup func()) {
	f, err := os.CreateTemp("", strings.ReplaceAll(t.Name(), "/", "_")+"_")
	require.NoError(t, err)

	cleanup = func() {
		require.NoError(t, f.Close())
		require.NoError(t, os.Remove(f.Name()))
	}
	return f, cleanup
}
