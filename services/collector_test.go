package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vigil/models"
)

// fakeClock advances instantly and records requested sleeps.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) Sleep(_ context.Context, d time.Duration) {
	if d > 0 {
		f.sleeps = append(f.sleeps, d)
		f.now = f.now.Add(d)
	}
}

// scriptedSensors replays a fixed sequence of samples.
type scriptedSensors struct {
	samples []models.SensorSample
	next    int
}

func (s *scriptedSensors) Sample(_ context.Context) models.SensorSample {
	if s.next >= len(s.samples) {
		return models.SensorSample{}
	}
	sample := s.samples[s.next]
	s.next++
	return sample
}

func quietSample() models.SensorSample {
	return models.SensorSample{Mic: 500, Vib: 300, Flame: 0, Dist: 100}
}

func windowOf(mutate func(samples []models.SensorSample)) []models.SensorSample {
	samples := make([]models.SensorSample, models.WindowSize)
	for i := range samples {
		samples[i] = quietSample()
	}
	if mutate != nil {
		mutate(samples)
	}
	return samples
}

func testShape() models.ModelShape {
	return models.ModelShape{
		FrameSize:       40,
		SamplesPerFrame: 10,
		Labels:          []string{"Normal", "Heat", "Sound", "Vibration"},
	}
}

func newTestCollector(samples []models.SensorSample, shape models.ModelShape) (*SampleCollector, *fakeClock) {
	clock := newFakeClock()
	collector := NewSampleCollector(
		&scriptedSensors{samples: samples},
		shape,
		clock,
		10*time.Millisecond,
		zap.NewNop(),
	)
	return collector, clock
}

func TestCollectAnomalyCounts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(samples []models.SensorSample)
		want   models.AnomalyCounts
	}{
		{
			name:   "quiet window has no anomalies",
			mutate: nil,
			want:   models.AnomalyCounts{},
		},
		{
			name: "loud and silent mic samples both count",
			mutate: func(samples []models.SensorSample) {
				samples[0].Mic = 920
				samples[1].Mic = 920
				samples[2].Mic = 920
				samples[3].Mic = 10
			},
			want: models.AnomalyCounts{Sound: 4},
		},
		{
			name: "mic exactly at bounds does not count",
			mutate: func(samples []models.SensorSample) {
				samples[0].Mic = 900
				samples[1].Mic = 50
			},
			want: models.AnomalyCounts{},
		},
		{
			name: "vibration above bound counts",
			mutate: func(samples []models.SensorSample) {
				samples[2].Vib = 801
				samples[5].Vib = 1000
				samples[6].Vib = 800 // boundary, not above
			},
			want: models.AnomalyCounts{Vibration: 2},
		},
		{
			name: "flame bits count",
			mutate: func(samples []models.SensorSample) {
				for i := 0; i < 4; i++ {
					samples[i].Flame = 1
				}
			},
			want: models.AnomalyCounts{Flame: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector, _ := newTestCollector(windowOf(tt.mutate), testShape())
			_, _, counts := collector.Collect(context.Background())
			assert.Equal(t, tt.want, counts)
		})
	}
}

func TestCollectMotionCountUsesWindowAverage(t *testing.T) {
	// Distances [100×9, 300]: average 120, only the last deviates by >= 50,
	// so motion stays below its trigger of 2.
	samples := windowOf(func(samples []models.SensorSample) {
		samples[9].Dist = 300
	})

	collector, _ := newTestCollector(samples, testShape())
	window, _, counts := collector.Collect(context.Background())

	assert.InDelta(t, 120.0, window.AverageDistance(), 1e-9)
	assert.Equal(t, 1, counts.Motion)
	assert.Less(t, counts.Motion, MotionCountTrigger)
}

func TestCollectMotionCountTwoDeviations(t *testing.T) {
	samples := windowOf(func(samples []models.SensorSample) {
		samples[4].Dist = 300
		samples[8].Dist = 320
	})

	collector, _ := newTestCollector(samples, testShape())
	_, _, counts := collector.Collect(context.Background())

	// avg = (8*100 + 300 + 320) / 10 = 142; both spikes deviate >= 50, the
	// quiet samples deviate only 42.
	assert.Equal(t, 2, counts.Motion)
}

func TestCollectFeaturePacking(t *testing.T) {
	samples := windowOf(func(samples []models.SensorSample) {
		samples[0] = models.SensorSample{Mic: 1, Vib: 2, Flame: 1, Dist: 4}
		samples[9] = models.SensorSample{Mic: 9, Vib: 8, Flame: 0, Dist: 6}
	})

	collector, _ := newTestCollector(samples, testShape())
	_, features, _ := collector.Collect(context.Background())

	require.Len(t, features, 40)
	assert.Equal(t, []float64{1, 2, 1, 4}, features[0:4])
	assert.Equal(t, []float64{9, 8, 0, 6}, features[36:40])
}

func TestCollectFeaturePackingTruncatesOverflow(t *testing.T) {
	// A frame sized for fewer samples than the window: slots past the frame
	// bound are silently dropped, not an error.
	shape := models.ModelShape{
		FrameSize:       20,
		SamplesPerFrame: 5,
		Labels:          []string{"Normal"},
	}

	samples := windowOf(func(samples []models.SensorSample) {
		for i := range samples {
			samples[i].Mic = float64(i + 1)
		}
	})

	collector, _ := newTestCollector(samples, shape)
	_, features, _ := collector.Collect(context.Background())

	require.Len(t, features, 20)
	// Samples 0-4 land at stride 4; samples 5-9 would start at offset 20+.
	assert.Equal(t, 1.0, features[0])
	assert.Equal(t, 5.0, features[16])
}

func TestBaselineIsWriteOnce(t *testing.T) {
	first := windowOf(func(samples []models.SensorSample) {
		samples[0].Dist = 77
	})
	second := windowOf(func(samples []models.SensorSample) {
		samples[0].Dist = 250
	})

	collector, _ := newTestCollector(append(first, second...), testShape())

	_, ok := collector.Baseline()
	assert.False(t, ok, "baseline must be unset before the first window")

	collector.Collect(context.Background())
	baseline, ok := collector.Baseline()
	require.True(t, ok)
	assert.Equal(t, 77.0, baseline)

	collector.Collect(context.Background())
	baseline, ok = collector.Baseline()
	require.True(t, ok)
	assert.Equal(t, 77.0, baseline, "later windows must never move the baseline")
}

func TestCollectAppliesSettlingDelayPerSample(t *testing.T) {
	collector, clock := newTestCollector(windowOf(nil), testShape())
	collector.Collect(context.Background())

	require.Len(t, clock.sleeps, models.WindowSize)
	for _, d := range clock.sleeps {
		assert.Equal(t, 10*time.Millisecond, d)
	}
}

func TestCollectZeroDistanceTimeoutFlowsThrough(t *testing.T) {
	// An ultrasonic echo timeout arrives as distance 0 and is ordinary data:
	// it feeds the window average and motion count like any other sample.
	samples := windowOf(func(samples []models.SensorSample) {
		samples[3].Dist = 0
	})

	collector, _ := newTestCollector(samples, testShape())
	window, _, counts := collector.Collect(context.Background())

	assert.InDelta(t, 90.0, window.AverageDistance(), 1e-9)
	// The zero sample deviates 90 from the average; the other nine deviate 10.
	assert.Equal(t, 1, counts.Motion)
}
