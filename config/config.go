package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DeviceID string

	// Classifier and actuator endpoints
	ClassifierURL string
	ActuatorURL   string

	// Cycle pacing
	CycleInterval time.Duration
	SettleDelay   time.Duration

	// MQTT sensor feed (optional; simulated source is used when empty)
	MQTTBroker   string
	MQTTUsername string
	MQTTPassword string
	MQTTTopic    string

	// RabbitMQ telemetry (optional)
	RabbitMQURL      string
	RabbitMQExchange string
	RabbitMQQueue    string

	// Firebase decision history (optional)
	FirebaseDbUrl              string
	FirebaseServiceAccountJSON string
	FirebaseBatchSize          int
	FirebaseBatchTimeout       int

	// Telegram alerting (optional)
	TelegramBotToken     string
	TelegramChatID       string
	AlertThrottleSeconds int

	// Metrics endpoint
	MetricsAddr string
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{
		DeviceID: getEnv("DEVICE_ID", "VIGIL-NODE-001"),

		ClassifierURL: getEnv("CLASSIFIER_URL", "http://localhost:8090"),
		ActuatorURL:   getEnv("ACTUATOR_URL", ""),

		CycleInterval: time.Duration(getEnvInt("CYCLE_INTERVAL_MS", 2000)) * time.Millisecond,
		SettleDelay:   time.Duration(getEnvInt("SETTLE_DELAY_MS", 50)) * time.Millisecond,

		MQTTBroker:   getEnv("MQTT_BROKER", ""),
		MQTTUsername: getEnv("MQTT_USERNAME", "vigil"),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),
		MQTTTopic:    getEnv("MQTT_TOPIC", "sensor_samples"),

		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "vigil.telemetry"),
		RabbitMQQueue:    getEnv("RABBITMQ_QUEUE", "window_telemetry"),

		FirebaseDbUrl:              getEnv("FIREBASE_DB_URL", ""),
		FirebaseServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseBatchSize:          getEnvInt("FIREBASE_BATCH_SIZE", 20),
		FirebaseBatchTimeout:       getEnvInt("FIREBASE_BATCH_TIMEOUT", 30),

		TelegramBotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:       getEnv("TELEGRAM_CHAT_ID", ""),
		AlertThrottleSeconds: getEnvInt("ALERT_THROTTLE_SECONDS", 60),

		MetricsAddr: getEnv("METRICS_ADDR", ":9102"),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
