package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

var (
	rate       = flag.Int("rate", 10, "Samples per second to publish")
	deviceID   = flag.String("device", "VIGIL-MOCK-001", "Device ID for mock data")
	anomaly    = flag.Float64("anomaly", 0.1, "Probability of anomaly per sample (0.0-1.0)")
	mqttBroker = flag.String("broker", "localhost:1883", "MQTT broker address (host:port)")
	mqttUser   = flag.String("user", "vigil", "MQTT username")
	mqttPass   = flag.String("pass", "", "MQTT password")
	mqttTopic  = flag.String("topic", "sensor_samples", "MQTT topic to publish to")
)

// MockSampleGenerator emits raw sensor head samples the way the deployed
// ESP32 firmware does: mic/vib ADC levels, the flame comparator bit and the
// ultrasonic distance in centimeters.
type MockSampleGenerator struct {
	anomalyProbability float64
	baseDist           float64
	logger             *zap.Logger
}

func NewMockSampleGenerator(anomalyProb float64, logger *zap.Logger) *MockSampleGenerator {
	return &MockSampleGenerator{
		anomalyProbability: anomalyProb,
		baseDist:           120.0,
		logger:             logger,
	}
}

// GenerateSample produces one realistic sensor sample.
func (m *MockSampleGenerator) GenerateSample() models.SensorSample {
	sample := models.SensorSample{
		Mic:   400 + rand.Float64()*200,
		Vib:   200 + rand.Float64()*300,
		Flame: 0,
		Dist:  m.baseDist + (rand.Float64()-0.5)*10,
	}

	if rand.Float64() < m.anomalyProbability {
		switch rand.Intn(4) {
		case 0:
			// Loud bang or dead-quiet dropout
			if rand.Float64() < 0.5 {
				sample.Mic = 901 + rand.Float64()*122
			} else {
				sample.Mic = rand.Float64() * 49
			}
		case 1:
			sample.Vib = 801 + rand.Float64()*222
		case 2:
			sample.Flame = 1
		case 3:
			// Something moved into or out of the beam
			sample.Dist = m.baseDist + 60 + rand.Float64()*140
		}
	}

	sample.Mic = math.Round(sample.Mic*10) / 10
	sample.Vib = math.Round(sample.Vib*10) / 10
	sample.Dist = math.Round(sample.Dist*10) / 10

	return sample
}

func main() {
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("MQTT mock sample generator started",
		zap.String("device_id", *deviceID),
		zap.Int("rate", *rate),
		zap.Float64("anomaly_probability", *anomaly),
		zap.String("mqtt_broker", *mqttBroker),
		zap.String("mqtt_topic", *mqttTopic),
	)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", *mqttBroker))
	opts.SetClientID(fmt.Sprintf("%s-generator", *deviceID))
	opts.SetUsername(*mqttUser)
	opts.SetPassword(*mqttPass)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", *mqttBroker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Error("MQTT connection lost", zap.Error(err))
	}

	mqttClient := mqtt.NewClient(opts)
	if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatal("Failed to connect to MQTT broker", zap.Error(token.Error()))
	}
	defer mqttClient.Disconnect(250)

	mockGen := NewMockSampleGenerator(*anomaly, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping generator")
		cancel()
	}()

	interval := time.Second / time.Duration(*rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Starting to publish mock samples",
		zap.Duration("interval", interval))

	sampleCount := 0
	anomalyCount := 0
	startTime := time.Now()

	statsTicker := time.NewTicker(60 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			elapsed := time.Since(startTime)
			logger.Info("Shutting down gracefully",
				zap.Int("total_samples", sampleCount),
				zap.Int("anomalies_generated", anomalyCount),
				zap.Duration("total_uptime", elapsed),
				zap.Float64("avg_rate", float64(sampleCount)/elapsed.Seconds()),
			)

			mqttClient.Disconnect(250)
			return

		case <-ticker.C:
			sample := mockGen.GenerateSample()

			isAnomaly := sample.Mic > models.SoundHighBound || sample.Mic < models.SoundLowBound ||
				sample.Vib > models.VibrationBound ||
				sample.Flame == 1 ||
				math.Abs(sample.Dist-mockGen.baseDist) >= models.MotionDeviationCM

			if isAnomaly {
				anomalyCount++
			}

			jsonData, err := json.Marshal(sample)
			if err != nil {
				logger.Error("Failed to marshal sample", zap.Error(err))
				continue
			}

			token := mqttClient.Publish(*mqttTopic, 0, false, jsonData)
			if token.Wait() && token.Error() != nil {
				logger.Error("Failed to publish MQTT message",
					zap.Error(token.Error()),
					zap.Int("sample_count", sampleCount))
				continue
			}
			sampleCount++

			logger.Debug("Published sample",
				zap.Float64("mic", sample.Mic),
				zap.Float64("vib", sample.Vib),
				zap.Float64("flame", sample.Flame),
				zap.Float64("dist", sample.Dist),
				zap.Bool("is_anomaly", isAnomaly))

		case <-statsTicker.C:
			anomalyRate := 0.0
			if sampleCount > 0 {
				anomalyRate = float64(anomalyCount) / float64(sampleCount) * 100
			}
			logger.Info("Generator statistics",
				zap.Int("total_samples", sampleCount),
				zap.Int("anomalies", anomalyCount),
				zap.Float64("anomaly_rate_percent", anomalyRate),
				zap.Duration("uptime", time.Since(startTime)),
			)
		}
	}
}
