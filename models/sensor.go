package models

import "math"

// Window geometry and per-channel anomaly thresholds. These mirror the
// calibration of the deployed sensor head and are fixed at build time.
const (
	WindowSize      = 10
	ValuesPerSample = 4

	SoundHighBound    = 900.0
	SoundLowBound     = 50.0
	VibrationBound    = 800.0
	MotionDeviationCM = 50.0
)

// SensorSample is one reading of all four channels. Flame is 0/1 because the
// flame sensor comparator only reports a digital level. Dist is centimeters;
// an ultrasonic echo timeout arrives as 0.
type SensorSample struct {
	Mic   float64 `json:"mic"`
	Vib   float64 `json:"vib"`
	Flame float64 `json:"flame"`
	Dist  float64 `json:"dist"`
}

// SensorWindow is a full batch of samples in acquisition order.
type SensorWindow struct {
	Samples [WindowSize]SensorSample
}

// AverageDistance returns the arithmetic mean distance over the window.
func (w *SensorWindow) AverageDistance() float64 {
	var sum float64
	for i := range w.Samples {
		sum += w.Samples[i].Dist
	}
	return sum / float64(WindowSize)
}

// MotionCount returns how many samples deviate from the window's own average
// distance by at least MotionDeviationCM. The deviation is taken against the
// current window, never against the recorded baseline.
func (w *SensorWindow) MotionCount() int {
	avg := w.AverageDistance()
	count := 0
	for i := range w.Samples {
		if math.Abs(w.Samples[i].Dist-avg) >= MotionDeviationCM {
			count++
		}
	}
	return count
}

// AnomalyCounts holds the per-window rule-based counters.
type AnomalyCounts struct {
	Sound     int `json:"sound"`
	Vibration int `json:"vibration"`
	Flame     int `json:"flame"`
	Motion    int `json:"motion"`
}

// Any reports whether any channel recorded at least one anomalous sample.
func (c AnomalyCounts) Any() bool {
	return c.Sound > 0 || c.Vibration > 0 || c.Flame > 0 || c.Motion > 0
}
