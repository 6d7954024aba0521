package internal

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewLogger_ProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "production", "info")
	logger.Debug("hidden")
	logger.Info("map refreshed", "stations", 6)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "map refreshed", record["msg"])
	assert.Equal(t, ServiceName, record["service"])
	assert.EqualValues(t, 6, record["stations"])
}

func TestNewLogger_DevelopmentIsText(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "development", "debug").Debug("tick")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "service=tsfwatch")
}
