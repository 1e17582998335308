package logging_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xab-mack/contractscan/internal/logging"
)

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "warn")
	log.Info("hidden")
	log.Warn("detector failed", logging.F("detector", "flash-loan"), logging.F("error", "panic: boom"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "detector=flash-loan")
	assert.Contains(t, out, `error="panic: boom"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logging.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logging.ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, logging.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logging.ParseLevel("verbose"))
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		l := logging.Nop()
		l.Debug("x")
		l.Error("y", logging.F("k", 1))
	})
}
