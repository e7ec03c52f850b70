package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharnoff/isodenoise"
)

func TestSplitsByLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	log, err := build(FormatJSON, false, &stdout, &stderr)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("epoch done")
	log.Error("failed")
	require.NoError(t, log.Sync())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &entry))
	assert.Equal(t, "epoch done", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "caller")

	assert.Contains(t, stderr.String(), "failed")
	assert.NotContains(t, stdout.String(), "failed")
}

func TestDebugAndConsole(t *testing.T) {
	var stdout, stderr bytes.Buffer
	log, err := build(FormatConsole, true, &stdout, &stderr)
	require.NoError(t, err)

	log.Debug("visible")
	require.NoError(t, log.Sync())
	assert.Contains(t, stdout.String(), "DEBUG")
	assert.Contains(t, stdout.String(), "visible")
}

func TestUnknownFormat(t *testing.T) {
	_, err := New("xml", false)
	assert.Equal(t, isodenoise.ErrConfig, errors.Cause(err))
}
