package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	require.Equal(t, WarnLevel, ParseLevel("warning"))
	require.Equal(t, InfoLevel, ParseLevel("bogus"))
	require.Equal(t, "ERROR", ErrorLevel.String())
}

func TestLoggerJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf, "info", "json", false)

	log.Debug("hidden")
	log.Info("table exported", Fields{"rows": 3}, Fields{"table": "orders"})

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	require.Equal(t, "info", entries[0]["level"])
	require.Equal(t, "table exported", entries[0]["message"])
	require.EqualValues(t, 3, entries[0]["rows"])
	require.Equal(t, "orders", entries[0]["table"])
	require.Contains(t, entries[0], "timestamp")
}

func TestContextLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf, "debug", "json", false)

	ctx := ContextWithTaskID(context.Background(), "run-1")
	cl := log.WithContext(ctx).WithComponent("content_writer")
	cl.LogTableClosed("Table closed", 12, Fields{"table": "t1"})
	cl.LogExportFailed("Export failed", "IO_FAILURE", "disk full", nil)

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)

	require.Equal(t, "TableClosed", entries[0]["event"])
	require.Equal(t, "run-1", entries[0]["task_id"])
	require.Equal(t, "content_writer", entries[0]["component"])
	require.EqualValues(t, 12, entries[0]["duration_ms"])

	require.Equal(t, "error", entries[1]["level"])
	errInfo, ok := entries[1]["error"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "IO_FAILURE", errInfo["code"])
	require.Equal(t, "disk full", errInfo["message"])
}

func TestContextLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf, "warn", "json", false)
	log.WithContext(context.Background()).LogLOBWritten("lob", nil)
	require.Zero(t, buf.Len())
}

func TestTextFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf, "info", "text", false)
	log.Warn("careful")
	require.Contains(t, buf.String(), "careful")
	require.Contains(t, buf.String(), "WRN")
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Info("nothing")
	log.WithContext(context.Background()).LogInfo("Event", "nothing", nil)
}
