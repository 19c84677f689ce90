package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ledgermate/governor/internal/observability"
)

func TestInitCLILogger(t *testing.T) {
	observability.InitCLILogger("governor-test", false)
	require.NotNil(t, observability.CLILogger)

	observability.CLILogger.Info("cli logger ready",
		zap.String("test", "value"))
}

func TestInitServerLogger(t *testing.T) {
	observability.InitServerLogger("governor-test", "info")
	require.NotNil(t, observability.ServerLogger)

	observability.ServerLogger.Info("server logger ready",
		zap.String("component", "test"),
		zap.Int("request_id", 123))
}

func TestInitServerLoggerWithNamespace(t *testing.T) {
	observability.InitServerLogger("governor-test", "debug", "ledgermate")
	require.NotNil(t, observability.ServerLogger)

	observability.ServerLogger.Debug("namespaced logger ready")
}

func TestStructuredProfileWithCorrelation(t *testing.T) {
	config := &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: "INFO",
		Service:      "correlation-test",
		Environment:  "test",
		Middleware: []logging.MiddlewareConfig{
			{
				Name:    "correlation",
				Enabled: true,
				Order:   100,
				Config:  make(map[string]any),
			},
		},
		Sinks: []logging.SinkConfig{
			{
				Type:   "console",
				Format: "json",
				Console: &logging.ConsoleSinkConfig{
					Stream:   "stderr",
					Colorize: false,
				},
			},
		},
	}

	logger, err := logging.New(config)
	require.NoError(t, err)

	logger.Info("message with correlation",
		zap.String("feature", "correlation"))
}
