package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "test-svc"})

	log := WithComponent("sweeper")
	log.Info().Int("completed", 2).Msg("sweep finished")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test-svc", entry["service"])
	assert.Equal(t, "sweeper", entry["component"])
	assert.Equal(t, "sweep finished", entry["message"])
	assert.EqualValues(t, 2, entry["completed"])

	// second call is ignored
	var other bytes.Buffer
	Configure(Config{Output: &other})
	log = WithComponent("x")
	log.Info().Msg("still first writer")
	assert.Zero(t, other.Len())
}
