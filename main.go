package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil/config"
	"vigil/log"
	"vigil/metrics"
	"vigil/models"
	"vigil/services"

	"go.uber.org/zap"
)

func main() {
	// Initialize structured logger
	logger := log.GetInstance()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if cfg.ClassifierURL == "" {
		logger.Fatal("Classifier configuration is required")
	}

	clock := services.SystemClock()

	// The classifier defines the feature buffer geometry, so it comes first.
	classifier, err := services.NewHTTPClassifier(cfg.ClassifierURL, logger.Named("classifier"))
	if err != nil {
		logger.Fatal("Failed to initialize classifier", zap.Error(err))
	}

	// Sensor source: MQTT feed when a broker is configured, simulator on the bench.
	var sensors services.Sensors
	var mqttSource *services.MQTTSensorSource
	if cfg.MQTTBroker != "" {
		mqttSource, err = services.NewMQTTSensorSource(cfg, logger.Named("mqtt"))
		if err != nil {
			logger.Fatal("Failed to initialize MQTT sensor source", zap.Error(err))
		}
		sensors = mqttSource
	} else {
		logger.Info("No MQTT broker configured, using simulated sensors")
		sensors = services.NewSimulatedSensors(0.1, time.Now().UnixNano(), logger.Named("sim"))
	}

	collector := services.NewSampleCollector(sensors, classifier.Shape(), clock, cfg.SettleDelay, logger.Named("collector"))
	arbiter := services.NewDecisionArbiter()

	var actuator services.Actuator
	if cfg.ActuatorURL != "" {
		actuator = services.NewHardwareActuator(cfg.ActuatorURL, clock, logger.Named("actuator"))
		logger.Info("Hardware actuator initialized", zap.String("url", cfg.ActuatorURL))
	} else {
		actuator = services.NewConsoleActuator(logger.Named("actuator"))
	}

	monitor := services.NewMonitorService(cfg.DeviceID, collector, classifier, arbiter,
		actuator, clock, cfg.CycleInterval, logger.Named("monitor"))

	// Optional side outputs
	var telemetryService *services.TelemetryService
	if cfg.RabbitMQURL != "" {
		telemetryService, err = services.NewTelemetryService(cfg, logger.Named("telemetry"))
		if err != nil {
			logger.Fatal("Failed to initialize telemetry service", zap.Error(err))
		}
		monitor.WithTelemetry(telemetryService)
	}

	var telegramService *services.TelegramService
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		telegramService, err = services.NewTelegramService(cfg, logger.Named("telegram"))
		if err != nil {
			logger.Fatal("Failed to initialize Telegram service", zap.Error(err))
		}
		monitor.WithNotifier(telegramService)

		if err := telegramService.SendStartupMessage(); err != nil {
			logger.Warn("Failed to send startup message", zap.Error(err))
		}
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var historyService *services.DecisionHistoryService
	if cfg.FirebaseDbUrl != "" && cfg.FirebaseServiceAccountJSON != "" {
		historyService, err = services.NewDecisionHistoryService(cfg, logger.Named("history"))
		if err != nil {
			logger.Fatal("Failed to initialize decision history service", zap.Error(err))
		}

		historyChan := make(chan *models.DecisionRecord, 100)
		monitor.WithHistory(historyChan)
		go historyService.Start(ctx, historyChan)
	}

	metricsServer := metrics.Serve(cfg.MetricsAddr, logger.Named("metrics"))

	logger.Info("VIGIL monitoring node started",
		zap.String("device_id", cfg.DeviceID),
		zap.String("classifier_url", cfg.ClassifierURL),
		zap.Duration("cycle_interval", cfg.CycleInterval),
		zap.Int("window_size", models.WindowSize),
	)

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping services")
		cancel()
	}()

	// Run the monitor loop until cancelled
	monitor.Run(ctx)

	// Perform cleanup
	logger.Info("Starting cleanup")

	if historyService != nil {
		if historyService.WaitForShutdown(5 * time.Second) {
			logger.Info("Decision history writer drained")
		} else {
			logger.Warn("Decision history writer shutdown timeout")
		}
	}

	if telemetryService != nil {
		if err := telemetryService.Close(); err != nil {
			logger.Error("Error closing telemetry service", zap.Error(err))
		}
	}

	if mqttSource != nil {
		mqttSource.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down metrics endpoint", zap.Error(err))
	}

	logger.Info("VIGIL monitoring node stopped")
}
