package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "prod", "worker")
	log.Debug().Msg("hidden")
	log.Info().Str("job_id", "abc").Msg("leased")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "worker", entry["component"])
	assert.Equal(t, "abc", entry["job_id"])
	assert.Equal(t, "leased", entry["message"])
}

func TestNewWithWriterConsole(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "dev", "api")
	log.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}
