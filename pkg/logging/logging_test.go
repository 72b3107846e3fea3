package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, New("debug", false).GetLevel())
	assert.Equal(t, zerolog.WarnLevel, New("warn", true).GetLevel())

	// Unknown levels fall back to info instead of failing startup.
	assert.Equal(t, zerolog.InfoLevel, New("chatty", false).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("", false).GetLevel())
}
