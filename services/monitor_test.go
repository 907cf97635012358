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

// stubClassifier returns a canned result or error.
type stubClassifier struct {
	shape  models.ModelShape
	result models.ClassificationResult
	err    error
	calls  int
}

func (s *stubClassifier) Shape() models.ModelShape {
	return s.shape
}

func (s *stubClassifier) Infer(_ context.Context, _ []float64) (models.ClassificationResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// recordingActuator captures rendered decisions.
type recordingActuator struct {
	rendered []models.Decision
}

func (r *recordingActuator) Render(_ context.Context, d models.Decision) error {
	r.rendered = append(r.rendered, d)
	return nil
}

// recordingPublisher captures published telemetry.
type recordingPublisher struct {
	published []*models.WindowTelemetry
}

func (r *recordingPublisher) PublishWindow(t *models.WindowTelemetry) error {
	r.published = append(r.published, t)
	return nil
}

func newTestMonitor(classifier Classifier, actuator Actuator) (*MonitorService, *fakeClock) {
	clock := newFakeClock()
	collector := NewSampleCollector(
		&scriptedSensors{samples: windowOf(nil)},
		testShape(),
		clock,
		0,
		zap.NewNop(),
	)
	monitor := NewMonitorService("VIGIL-TEST", collector, classifier, NewDecisionArbiter(),
		actuator, clock, time.Second, zap.NewNop())
	return monitor, clock
}

func TestRunCycleRendersArbitratedDecision(t *testing.T) {
	classifier := &stubClassifier{
		shape:  testShape(),
		result: scores("Normal", 0.9),
	}
	actuator := &recordingActuator{}
	monitor, _ := newTestMonitor(classifier, actuator)

	monitor.runCycle(context.Background())

	require.Len(t, actuator.rendered, 1)
	decision := actuator.rendered[0]
	assert.Equal(t, models.StatusNormal, decision.Status)
	assert.InDelta(t, 0.9, decision.Confidence, 1e-9)
	assert.False(t, decision.AlertActive)
}

func TestRunCycleClassifierFailureSkipsActuation(t *testing.T) {
	classifier := &stubClassifier{
		shape: testShape(),
		err:   ErrInference,
	}
	actuator := &recordingActuator{}
	monitor, _ := newTestMonitor(classifier, actuator)

	monitor.runCycle(context.Background())

	assert.Equal(t, 1, classifier.calls)
	assert.Empty(t, actuator.rendered, "an aborted cycle must not actuate")
}

func TestRunCycleNextCycleStartsFresh(t *testing.T) {
	// One failing cycle, then a clean one: the loop carries nothing over.
	classifier := &stubClassifier{
		shape: testShape(),
		err:   ErrSignalConversion,
	}
	actuator := &recordingActuator{}

	clock := newFakeClock()
	collector := NewSampleCollector(
		&scriptedSensors{samples: append(windowOf(nil), windowOf(nil)...)},
		testShape(),
		clock,
		0,
		zap.NewNop(),
	)
	monitor := NewMonitorService("VIGIL-TEST", collector, classifier, NewDecisionArbiter(),
		actuator, clock, time.Second, zap.NewNop())

	monitor.runCycle(context.Background())
	require.Empty(t, actuator.rendered)

	classifier.err = nil
	classifier.result = scores("Normal", 0.8)

	monitor.runCycle(context.Background())
	require.Len(t, actuator.rendered, 1)
	assert.Equal(t, models.StatusNormal, actuator.rendered[0].Status)
}

func TestRunCyclePublishesSideOutputs(t *testing.T) {
	classifier := &stubClassifier{
		shape:  testShape(),
		result: scores("Normal", 0.9),
	}
	actuator := &recordingActuator{}
	monitor, _ := newTestMonitor(classifier, actuator)

	publisher := &recordingPublisher{}
	historyChan := make(chan *models.DecisionRecord, 1)
	monitor.WithTelemetry(publisher).WithHistory(historyChan)

	monitor.runCycle(context.Background())

	require.Len(t, publisher.published, 1)
	telemetry := publisher.published[0]
	assert.Equal(t, "VIGIL-TEST", telemetry.DeviceID)
	assert.Equal(t, models.StatusNormal, telemetry.Decision.Status)
	assert.InDelta(t, 100.0, telemetry.AvgDistance, 1e-9)

	select {
	case record := <-historyChan:
		assert.Equal(t, models.StatusNormal, record.Status)
		assert.InDelta(t, 0.9, record.Confidence, 1e-9)
	default:
		t.Fatal("expected a decision record on the history channel")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	classifier := &stubClassifier{
		shape:  testShape(),
		result: scores("Normal", 0.9),
	}
	monitor, _ := newTestMonitor(classifier, &recordingActuator{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop on context cancel")
	}
}
