package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, "warn", "json"))

	log.Info().Msg("dropped")
	log.Warn().Str("slot", "past").Msg("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"slot":"past"`)
	assert.Contains(t, out, `"message":"kept"`)
}

func TestSetupWriterContextFallback(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, "debug", "json"))

	log.Ctx(context.Background()).Debug().Msg("background")
	assert.Contains(t, buf.String(), "background")
}

func TestSetupWriterRejectsUnknown(t *testing.T) {
	assert.Error(t, SetupWriter(&bytes.Buffer{}, "loud", "json"))
	assert.Error(t, SetupWriter(&bytes.Buffer{}, "info", "xml"))
}
