package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected []string
		excluded []string
	}{
		{level: "error", expected: []string{"ERROR"}, excluded: []string{"WARN", "INFO", "DEBUG"}},
		{level: "warn", expected: []string{"ERROR", "WARN"}, excluded: []string{"INFO", "DEBUG"}},
		{level: "info", expected: []string{"ERROR", "WARN", "INFO"}, excluded: []string{"DEBUG"}},
		{level: "debug", expected: []string{"ERROR", "WARN", "INFO", "DEBUG"}},
	}

	dir := t.TempDir()
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			path := filepath.Join(dir, tt.level+".log")
			cfg := FileConfig{Path: path, MaxSizeMB: 10, MaxBackups: 1, MaxAgeDays: 1}
			log := NewFileOnly(tt.level, cfg)

			log.Debug("debug message")
			log.Info("info message", zap.Int("meshes", 3))
			log.Warn("warn message")
			log.Error("error message")
			_ = log.Sync()

			content, err := os.ReadFile(path)
			require.NoError(t, err)
			for _, exp := range tt.expected {
				assert.Contains(t, string(content), `"level":"`+exp+`"`)
			}
			for _, exc := range tt.excluded {
				assert.NotContains(t, string(content), `"level":"`+exc+`"`)
			}
		})
	}
}

func TestFileFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	log := NewFileOnly("info", DefaultFileConfig(path))
	log.Info("world committed", zap.Int("surfaces", 2))
	_ = log.Sync()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(content))
	assert.Contains(t, line, `"msg":"world committed"`)
	assert.Contains(t, line, `"surfaces":2`)
	assert.Contains(t, line, `"caller":"logger/logger_test.go`)
}

func TestNoOutputIsNop(t *testing.T) {
	log := NewFileOnly("debug", FileConfig{})
	assert.False(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("/tmp/bridge.log")
	assert.Equal(t, FileConfig{
		Path:       "/tmp/bridge.log",
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Compress:   true,
	}, cfg)
}
