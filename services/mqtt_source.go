package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vigil/config"
	"vigil/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTSensorSource implements Sensors on top of the raw sample feed the
// sensor head publishes over MQTT. A read blocks until the next message
// arrives; it never fails. If the loop is cancelled mid-read, a zero sample
// flows out, which downstream treats as legitimate data (a silent, close,
// flameless reading).
type MQTTSensorSource struct {
	client  mqtt.Client
	samples chan models.SensorSample
	logger  *zap.Logger
}

// NewMQTTSensorSource connects to the broker and subscribes to the sample
// topic.
func NewMQTTSensorSource(cfg *config.Config, logger *zap.Logger) (*MQTTSensorSource, error) {
	source := &MQTTSensorSource{
		samples: make(chan models.SensorSample, 100),
		logger:  logger,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.MQTTBroker))
	opts.SetClientID(fmt.Sprintf("%s-monitor", cfg.DeviceID))
	opts.SetUsername(cfg.MQTTUsername)
	opts.SetPassword(cfg.MQTTPassword)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))

		token := client.Subscribe(cfg.MQTTTopic, 0, source.handleMessage)
		if token.Wait() && token.Error() != nil {
			logger.Error("Failed to subscribe to sample topic",
				zap.String("topic", cfg.MQTTTopic),
				zap.Error(token.Error()))
			return
		}
		logger.Info("Subscribed to sample topic", zap.String("topic", cfg.MQTTTopic))
	}

	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Error("MQTT connection lost", zap.Error(err))
	}

	source.client = mqtt.NewClient(opts)
	if token := source.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return source, nil
}

// handleMessage parses one raw sample message into the buffer. Malformed
// messages are dropped; when the buffer is full the oldest sample is evicted
// so reads always see fresh data.
func (s *MQTTSensorSource) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var sample models.SensorSample
	if err := json.Unmarshal(msg.Payload(), &sample); err != nil {
		s.logger.Warn("Dropping malformed sample message", zap.Error(err))
		return
	}

	select {
	case s.samples <- sample:
	default:
		select {
		case <-s.samples:
		default:
		}
		select {
		case s.samples <- sample:
		default:
		}
	}
}

// Sample returns the next sample from the feed, blocking until one arrives
// or the context is cancelled.
func (s *MQTTSensorSource) Sample(ctx context.Context) models.SensorSample {
	select {
	case sample := <-s.samples:
		return sample
	case <-ctx.Done():
		return models.SensorSample{}
	}
}

// Close disconnects from the broker.
func (s *MQTTSensorSource) Close() {
	s.logger.Info("Disconnecting from MQTT broker")
	s.client.Disconnect(250)
}
