package logging

import (
	"testing"

	"github.com/arenastats/arena-stats-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(config.LoggingConfig{Level: tt.level, Format: "json"})
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want != zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
			}
		})
	}
}

func TestNewConsoleFormat(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "info", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
