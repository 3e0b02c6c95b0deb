package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revline/internal/config"
)

func TestSetup_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")

	closeFn, err := Setup(config.LoggingConfig{Level: "debug", Format: "json", OutputPath: path}, "chat-svc")
	require.NoError(t, err)

	log.Info().Str("conversation_id", "c1").Msg("hello")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"chat-svc"`)
	assert.Contains(t, string(data), `"conversation_id":"c1"`)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestSetup_UnknownLevelDefaultsToInfo(t *testing.T) {
	closeFn, err := Setup(config.LoggingConfig{Level: "loud", OutputPath: "stderr"}, "test")
	require.NoError(t, err)
	defer closeFn()

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetup_BadPath(t *testing.T) {
	_, err := Setup(config.LoggingConfig{OutputPath: filepath.Join(t.TempDir(), "missing", "x.log")}, "test")
	assert.Error(t, err)
}
