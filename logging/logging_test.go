package logging_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-proxy/logging"
)

func TestUnitTestNewAcceptsSupportedLevels(t *testing.T) {
	for _, level := range []string{"TRACE", "DEBUG", "INFO", "ERROR"} {
		t.Run(level, func(t *testing.T) {
			logger, err := logging.New(level)
			require.NoError(t, err)
			require.NotNil(t, logger.Logger)
		})
	}
}

func TestUnitTestNewRejectsUnknownLevel(t *testing.T) {
	_, err := logging.New("VERBOSE")
	require.Error(t, err)
}

func TestUnitTestOrNopFallsBackToDiscardingLogger(t *testing.T) {
	logger := logging.OrNop(nil)
	require.NotNil(t, logger.Logger)

	// must not panic
	logger.Debug().Msg("discarded")

	existing := logging.Nop()
	require.Same(t, existing, logging.OrNop(existing))
}
