package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("debug", "json", &buf)
	child := Component(logger, "organizer")
	child.Debug().Str("path", "/in/a.mkv").Msg("handled")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "organizer", line["component"])
	assert.Equal(t, "/in/a.mkv", line["path"])
	assert.Equal(t, "debug", line["level"])
}

func TestSetupUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("loud", "json", &buf)
	logger.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
	logger.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
