package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, "http://127.0.0.1:5001/analyze", cfg.AnalyzeURL)
	assert.Equal(t, 2*time.Minute, cfg.AnalyzeTimeout)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, uint(600), cfg.PreviewMaxDimension)
	assert.Equal(t, int64(50_000_000), cfg.MaxImagePixels)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTTL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"ADDRESS":          "127.0.0.1:9000",
		"ANALYZE_URL":      "https://analysis.internal/v1/analyze",
		"ANALYZE_TIMEOUT":  "0s",
		"MAX_UPLOAD_BYTES": "2048",
		"SESSION_IDLE_TTL": "5m",
		"LOG_FORMAT":       "json",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Address)
	assert.Equal(t, "https://analysis.internal/v1/analyze", cfg.AnalyzeURL)
	assert.Zero(t, cfg.AnalyzeTimeout)
	assert.Equal(t, int64(2048), cfg.MaxUploadBytes)
	assert.Equal(t, 5*time.Minute, cfg.SessionIdleTTL)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadFromRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"relative url":     {"ANALYZE_URL": "/analyze"},
		"ftp url":          {"ANALYZE_URL": "ftp://host/analyze"},
		"zero upload cap":  {"MAX_UPLOAD_BYTES": "0"},
		"zero pixel cap":   {"MAX_IMAGE_PIXELS": "0"},
		"negative timeout": {"ANALYZE_TIMEOUT": "-1s"},
		"not a duration":   {"PREVIEW_TTL": "soon"},
	}
	for name, environ := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(environ)
			assert.Error(t, err)
		})
	}
}
