package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dterrors "github.com/five82/dovetail/internal/errors"
)

func runCLI(t *testing.T, args ...string) (string, int, error) {
	t.Helper()
	code := exitOK
	root := newRootCommand(&code)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	if err != nil && code == exitOK {
		code = exitCodeFor(err)
	}
	return out.String(), code, err
}

func TestVersion(t *testing.T) {
	out, code, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "dovetail version "+appVersion+"\n", out)
}

func TestEnvListsVariables(t *testing.T) {
	out, _, err := runCLI(t, "env")
	require.NoError(t, err)
	assert.Contains(t, out, "DOVETAIL_LIBRARY_ROOTS")
	assert.Contains(t, out, "DOVETAIL_FALLBACK_MODE")
}

func TestClassifyEmptyLibrary(t *testing.T) {
	out, code, err := runCLI(t, "classify", "--no-log", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "0 sources")
}

func TestRunRejectsBadFallback(t *testing.T) {
	_, code, err := runCLI(t, "run", "--no-log", "--fallback", "transcode", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, exitConfig, code)
}

func TestRunWritesEventsFile(t *testing.T) {
	events := filepath.Join(t.TempDir(), "events.ndjson")
	_, code, err := runCLI(t, "run", "--no-log", "--dry-run", "--events", events, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, exitOK, code)

	data, err := os.ReadFile(events)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"batch_started"`)
	assert.Contains(t, string(data), `"type":"batch_complete"`)
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"cancelled", dterrors.NewCancelledError(), exitCancelled},
		{"config", dterrors.NewConfigError("bad", nil), exitConfig},
		{"other", errors.New("boom"), exitFailures},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}
