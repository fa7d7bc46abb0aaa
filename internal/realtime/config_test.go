package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionJSON(t *testing.T, cfg Config) map[string]any {
	t.Helper()
	data, err := json.Marshal(cfg.withDefaults().sessionUpdate(nil))
	require.NoError(t, err)
	var evt map[string]any
	require.NoError(t, json.Unmarshal(data, &evt))
	session, ok := evt["session"].(map[string]any)
	require.True(t, ok)
	return session
}

func TestConfig_ZeroTemperatureIsKept(t *testing.T) {
	session := sessionJSON(t, Config{Temperature: Float(0)})
	temp, ok := session["temperature"]
	require.True(t, ok, "temperature 0 must be sent")
	assert.InDelta(t, 0.0, temp, 1e-9)
}

func TestConfig_DefaultTemperature(t *testing.T) {
	session := sessionJSON(t, Config{})
	assert.InDelta(t, defaultTemperature, session["temperature"], 1e-9)
}
