package services

import (
	"encoding/json"
	"fmt"
	"time"

	"vigil/config"
	"vigil/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// TelemetryService publishes per-window telemetry to RabbitMQ so downstream
// consumers (dashboards, recorders) can follow the node without touching it.
type TelemetryService struct {
	config    *config.Config
	conn      *amqp.Connection
	channel   *amqp.Channel
	logger    *zap.Logger
	isClosing bool
}

// NewTelemetryService connects to RabbitMQ and declares the telemetry
// exchange and queue.
func NewTelemetryService(cfg *config.Config, logger *zap.Logger) (*TelemetryService, error) {
	service := &TelemetryService{
		config: cfg,
		logger: logger,
	}

	if err := service.connect(); err != nil {
		return nil, err
	}

	return service, nil
}

// connect establishes the connection with retry and declares the topology.
func (t *TelemetryService) connect() error {
	var err error

	t.logger.Info("Connecting to RabbitMQ", zap.String("url", t.config.RabbitMQURL))

	maxRetries := 5
	for attempt := 1; attempt <= maxRetries; attempt++ {
		t.conn, err = amqp.Dial(t.config.RabbitMQURL)
		if err == nil {
			break
		}

		t.logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
	}

	t.channel, err = t.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	err = t.channel.ExchangeDeclare(
		t.config.RabbitMQExchange, // name
		"direct",                  // type
		true,                      // durable
		false,                     // auto-deleted
		false,                     // internal
		false,                     // no-wait
		nil,                       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := t.channel.QueueDeclare(
		t.config.RabbitMQQueue, // name
		true,                   // durable
		false,                  // delete when unused
		false,                  // exclusive
		false,                  // no-wait
		nil,                    // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = t.channel.QueueBind(
		queue.Name,                // queue name
		t.config.RabbitMQQueue,    // routing key
		t.config.RabbitMQExchange, // exchange
		false,                     // no-wait
		nil,                       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	t.logger.Info("Telemetry topology declared",
		zap.String("exchange", t.config.RabbitMQExchange),
		zap.String("queue", queue.Name))

	go t.handleReconnect()

	return nil
}

// handleReconnect re-establishes the connection when the broker drops it.
func (t *TelemetryService) handleReconnect() {
	closeErr := <-t.conn.NotifyClose(make(chan *amqp.Error))
	if t.isClosing {
		t.logger.Info("RabbitMQ connection closed gracefully")
		return
	}

	t.logger.Error("RabbitMQ connection lost", zap.Error(closeErr))

	for {
		t.logger.Info("Attempting to reconnect to RabbitMQ...")
		err := t.connect()
		if err == nil {
			t.logger.Info("Successfully reconnected to RabbitMQ")
			return
		}

		t.logger.Error("Failed to reconnect", zap.Error(err))
		time.Sleep(5 * time.Second)
	}
}

// PublishWindow ships one window summary to the telemetry exchange.
func (t *TelemetryService) PublishWindow(telemetry *models.WindowTelemetry) error {
	body, err := json.Marshal(telemetry)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry: %w", err)
	}

	err = t.channel.Publish(
		t.config.RabbitMQExchange, // exchange
		t.config.RabbitMQQueue,    // routing key
		false,                     // mandatory
		false,                     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish telemetry: %w", err)
	}

	t.logger.Debug("Published window telemetry",
		zap.String("device_id", telemetry.DeviceID),
		zap.String("status", telemetry.Decision.Status))

	return nil
}

// Close gracefully closes the RabbitMQ connection.
func (t *TelemetryService) Close() error {
	t.isClosing = true

	t.logger.Info("Closing RabbitMQ connection")

	if t.channel != nil {
		if err := t.channel.Close(); err != nil {
			t.logger.Error("Error closing channel", zap.Error(err))
		}
	}

	if t.conn != nil {
		if err := t.conn.Close(); err != nil {
			t.logger.Error("Error closing connection", zap.Error(err))
			return err
		}
	}

	t.logger.Info("RabbitMQ connection closed")
	return nil
}
