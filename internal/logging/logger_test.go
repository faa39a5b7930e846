package logging

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" warning ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	Info().Str("dataset", "crop_yield.csv").Msg("dataset loaded")
	Debug().Msg("dropped below level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "dataset loaded", entry["message"])
	assert.Equal(t, "crop_yield.csv", entry["dataset"])
	assert.Equal(t, "info", entry["level"])
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { SetLogger(prev) })

	Warn().Msg("model missing")
	assert.Contains(t, buf.String(), "model missing")
}
