package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklens/doccached/internal/logging"
)

func TestNew_Defaults(t *testing.T) {
	logger, err := logging.New(logging.Config{})
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.False(t, logger.Core().Enabled(-1), "debug must be disabled by default")
}

func TestNew_DebugConsole(t *testing.T) {
	logger, err := logging.New(logging.Config{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := logging.New(logging.Config{Level: "verbose"})
	assert.Error(t, err)

	_, err = logging.New(logging.Config{Format: "xml"})
	assert.Error(t, err)
}
