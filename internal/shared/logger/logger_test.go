package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_ProdIsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, false)

	log.Debug().Msg("hidden")
	log.Info().Str("component", "test").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "casabid", entry["service"])
	assert.Equal(t, "test", entry["component"])
}

func TestNewWithWriter_DevIsConsole(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, true)

	log.Debug().Msg("visible")

	assert.Contains(t, buf.String(), "visible")
	assert.False(t, json.Valid(buf.Bytes()))
}
