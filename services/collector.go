package services

import (
	"context"
	"sync"
	"time"

	"vigil/models"

	"go.uber.org/zap"
)

// Sensors is the hardware acquisition boundary. A read may block briefly
// (hardware settling, waiting for the next feed message) but never fails:
// degraded hardware shows up as ordinary values, e.g. a zero distance on an
// ultrasonic echo timeout.
type Sensors interface {
	Sample(ctx context.Context) models.SensorSample
}

// SampleCollector acquires one full sensor window per cycle, packs the
// flattened feature buffer for the classifier and computes the rule-based
// anomaly counts.
type SampleCollector struct {
	sensors Sensors
	shape   models.ModelShape
	clock   Clock
	settle  time.Duration
	logger  *zap.Logger

	baselineOnce sync.Once
	baseline     float64
	baselineSet  bool
}

// NewSampleCollector creates a collector for the given sensor source and
// classifier input shape.
func NewSampleCollector(sensors Sensors, shape models.ModelShape, clock Clock, settle time.Duration, logger *zap.Logger) *SampleCollector {
	return &SampleCollector{
		sensors: sensors,
		shape:   shape,
		clock:   clock,
		settle:  settle,
		logger:  logger,
	}
}

// Collect acquires exactly models.WindowSize samples in order and returns the
// window, the packed feature buffer and the per-window anomaly counts. Sensor
// reads do not fail, so neither does Collect.
func (sc *SampleCollector) Collect(ctx context.Context) (*models.SensorWindow, []float64, models.AnomalyCounts) {
	window := &models.SensorWindow{}
	features := make([]float64, sc.shape.FrameSize)
	stride := sc.shape.Stride()

	var counts models.AnomalyCounts

	for i := 0; i < models.WindowSize; i++ {
		sample := sc.sensors.Sample(ctx)
		window.Samples[i] = sample

		if i == 0 {
			sc.recordBaseline(sample.Dist)
		}

		// Packing is best-effort: writes past the frame bound are dropped,
		// the classifier simply sees zeros there.
		offset := i * stride
		if offset+models.ValuesPerSample <= len(features) {
			features[offset] = sample.Mic
			features[offset+1] = sample.Vib
			features[offset+2] = sample.Flame
			features[offset+3] = sample.Dist
		}

		if sample.Mic > models.SoundHighBound || sample.Mic < models.SoundLowBound {
			counts.Sound++
		}
		if sample.Vib > models.VibrationBound {
			counts.Vibration++
		}
		if sample.Flame == 1 {
			counts.Flame++
		}

		sc.logger.Debug("sample acquired",
			zap.Int("slot", i),
			zap.Float64("mic", sample.Mic),
			zap.Float64("vib", sample.Vib),
			zap.Float64("flame", sample.Flame),
			zap.Float64("dist", sample.Dist),
		)

		sc.clock.Sleep(ctx, sc.settle)
	}

	// Motion is a second pass against the window's own average distance.
	// The recorded baseline is deliberately not consulted here.
	counts.Motion = window.MotionCount()

	sc.logger.Info("window collected",
		zap.Int("sound_count", counts.Sound),
		zap.Int("vibration_count", counts.Vibration),
		zap.Int("flame_count", counts.Flame),
		zap.Int("motion_count", counts.Motion),
		zap.Float64("avg_distance", window.AverageDistance()),
		zap.Float64("baseline", sc.baseline),
	)

	return window, features, counts
}

// recordBaseline stores the very first distance ever seen by this process.
// Later windows never overwrite it.
func (sc *SampleCollector) recordBaseline(dist float64) {
	sc.baselineOnce.Do(func() {
		sc.baseline = dist
		sc.baselineSet = true
		sc.logger.Info("distance baseline recorded", zap.Float64("baseline", dist))
	})
}

// Baseline returns the write-once distance baseline and whether it has been
// set yet.
func (sc *SampleCollector) Baseline() (float64, bool) {
	return sc.baseline, sc.baselineSet
}
