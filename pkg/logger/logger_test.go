package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(InfoLevel, &buf).WithFields(map[string]interface{}{"component": "borrow"})

	log.Info("borrow created", map[string]interface{}{"borrow_id": 7})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "borrow created", line["message"])
	assert.Equal(t, "borrow", line["component"])
	assert.EqualValues(t, 7, line["borrow_id"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(WarnLevel, &buf)

	log.Info("hidden", nil)
	assert.Zero(t, buf.Len())

	log.Warn("shown", nil)
	assert.NotZero(t, buf.Len())
}

func TestWithContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithRequestID(context.Background(), "req-1")

	New(InfoLevel, &buf).InfoContext(ctx, "hello", nil)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
}
