package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, Options{Level: "warn", Format: "json"})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown", zap.String("op", "fetch"))
	require.NoError(t, log.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "fetch", entry["op"])
	assert.Contains(t, entry, "ts")
}

func TestNew_DebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, Options{Level: "error", Debug: true})
	require.NoError(t, err)

	log.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, Options{Level: "loud"})
	assert.Error(t, err)
}

func TestOp(t *testing.T) {
	fields := Op("add_task", "req-1")
	require.Len(t, fields, 2)
	assert.Equal(t, "op", fields[0].Key)
	assert.Equal(t, "req-1", fields[1].String)
}
