package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var loggerInstance *zap.Logger

// initLogger builds the shared structured logger. Production JSON by default;
// set LOG_MODE=console for a human-readable console encoder on the bench.
func initLogger() {
	config := zap.NewProductionConfig()
	if os.Getenv("LOG_MODE") == "console" {
		config = zap.NewDevelopmentConfig()
	}
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.MessageKey = "message"

	logger, err := config.Build()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	loggerInstance = logger
}

// GetInstance returns the process-wide logger, initializing it on first use.
func GetInstance() *zap.Logger {
	if loggerInstance == nil {
		initLogger()
	}
	return loggerInstance
}

// Named returns a child of the shared logger scoped to one service.
func Named(name string) *zap.Logger {
	return GetInstance().Named(name)
}
