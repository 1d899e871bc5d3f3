package logger_test

import (
	"testing"

	"emall/internal/logger"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zap.AtomicLevel
	}{
		{"debug", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"WARN", zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"error", zap.NewAtomicLevelAt(zap.ErrorLevel)},
		{"", zap.NewAtomicLevelAt(zap.InfoLevel)},
	}
	for _, tt := range tests {
		for _, format := range []string{"json", "console"} {
			l, err := logger.New(tt.level, format)
			require.NoError(t, err)
			require.True(t, l.Core().Enabled(tt.want.Level()), "%s/%s", tt.level, format)
			if tt.want.Level() > zap.DebugLevel {
				require.False(t, l.Core().Enabled(tt.want.Level()-1), "%s/%s", tt.level, format)
			}
		}
	}
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, logger.OrNop(nil))
	l := zap.NewExample()
	require.Same(t, l, logger.OrNop(l))
}
