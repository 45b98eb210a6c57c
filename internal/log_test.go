package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("WARN"))
	assert.Equal(t, LogLevelDebug, ParseLogLevel(" debug "))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
}

func TestLoggerWith(t *testing.T) {
	l := NewLogger(LogLevelDebug, true).With("LMM")
	assert.Equal(t, LogLevelDebug, l.GetLevel())
	l.Debug("fitted spec %d", 3)

	nop := NewNopLogger()
	nop.Info("discarded")
	assert.NoError(t, nop.Sync())
}
