package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
}

func TestJSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(Config{Format: "json", Level: "info"}, &buf)
	id := NewRunID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	cl := Component(WithRun(l, id), "fetch")
	cl.Info().Msg("hello")
	l.Debug().Msg("dropped")

	var ev map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &ev))
	assert.Equal(t, id, ev["run_id"])
	assert.Equal(t, "fetch", ev["component"])
	assert.Equal(t, "hello", ev["message"])
}
