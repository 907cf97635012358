package services

import (
	"context"
	"math/rand"

	"vigil/models"

	"go.uber.org/zap"
)

// SimulatedSensors generates plausible sensor readings for bench runs when no
// MQTT feed is configured. Anomalies are injected with a fixed probability on
// each channel independently.
type SimulatedSensors struct {
	anomalyProbability float64
	baseDist           float64
	rng                *rand.Rand
	logger             *zap.Logger
}

func NewSimulatedSensors(anomalyProbability float64, seed int64, logger *zap.Logger) *SimulatedSensors {
	return &SimulatedSensors{
		anomalyProbability: anomalyProbability,
		baseDist:           120.0, // quiet-room distance to the far wall, cm
		rng:                rand.New(rand.NewSource(seed)),
		logger:             logger,
	}
}

// Sample synthesizes one reading. Never fails and never blocks.
func (s *SimulatedSensors) Sample(_ context.Context) models.SensorSample {
	sample := models.SensorSample{
		Mic:   400 + s.rng.Float64()*200, // nominal ambient band
		Vib:   200 + s.rng.Float64()*300,
		Flame: 0,
		Dist:  s.baseDist + (s.rng.Float64()-0.5)*10,
	}

	if s.rng.Float64() < s.anomalyProbability {
		switch s.rng.Intn(4) {
		case 0: // loud or near-silent spike
			if s.rng.Float64() < 0.5 {
				sample.Mic = 901 + s.rng.Float64()*120
			} else {
				sample.Mic = s.rng.Float64() * 49
			}
		case 1:
			sample.Vib = 801 + s.rng.Float64()*220
		case 2:
			sample.Flame = 1
		case 3:
			sample.Dist = s.baseDist + 60 + s.rng.Float64()*120
		}
	}

	return sample
}
