package services

import (
	"context"
	"time"

	"vigil/metrics"
	"vigil/models"

	"go.uber.org/zap"
)

// Notifier pushes alert notifications to an operator channel.
type Notifier interface {
	SendAlert(decision models.Decision, counts models.AnomalyCounts, deviceID string) error
}

// TelemetryPublisher ships per-window telemetry to the message broker.
type TelemetryPublisher interface {
	PublishWindow(telemetry *models.WindowTelemetry) error
}

// MonitorService runs the single-threaded monitoring loop: one unbroken
// collect → infer → arbitrate → render cycle at a time, paced by the clock.
// Nothing is shared across cycles except the collector's write-once baseline.
type MonitorService struct {
	deviceID   string
	collector  *SampleCollector
	classifier Classifier
	arbiter    *DecisionArbiter
	actuator   Actuator
	clock      Clock
	interval   time.Duration
	logger     *zap.Logger

	// Optional side outputs; nil when not configured.
	telemetry   TelemetryPublisher
	notifier    Notifier
	historyChan chan<- *models.DecisionRecord
}

// NewMonitorService wires the core pipeline. Side outputs are attached
// separately so the loop runs the same with or without them.
func NewMonitorService(deviceID string, collector *SampleCollector, classifier Classifier,
	arbiter *DecisionArbiter, actuator Actuator, clock Clock, interval time.Duration,
	logger *zap.Logger) *MonitorService {
	return &MonitorService{
		deviceID:   deviceID,
		collector:  collector,
		classifier: classifier,
		arbiter:    arbiter,
		actuator:   actuator,
		clock:      clock,
		interval:   interval,
		logger:     logger,
	}
}

// WithTelemetry attaches the broker publisher.
func (m *MonitorService) WithTelemetry(t TelemetryPublisher) *MonitorService {
	m.telemetry = t
	return m
}

// WithNotifier attaches the alert notifier.
func (m *MonitorService) WithNotifier(n Notifier) *MonitorService {
	m.notifier = n
	return m
}

// WithHistory attaches the decision history channel.
func (m *MonitorService) WithHistory(ch chan<- *models.DecisionRecord) *MonitorService {
	m.historyChan = ch
	return m
}

// Run executes cycles until the context is cancelled. No cycle error is
// process-fatal: an aborted cycle just yields to the next tick.
func (m *MonitorService) Run(ctx context.Context) {
	m.logger.Info("monitor loop started",
		zap.String("device_id", m.deviceID),
		zap.Duration("cycle_interval", m.interval),
	)

	for {
		if ctx.Err() != nil {
			m.logger.Info("monitor loop stopped")
			return
		}

		start := m.clock.Now()
		m.runCycle(ctx)
		elapsed := m.clock.Now().Sub(start)
		metrics.CycleDuration.Observe(elapsed.Seconds())

		m.clock.Sleep(ctx, m.interval-elapsed)
	}
}

// runCycle performs one full cycle. A classifier failure aborts the cycle
// before any actuation; every other step is total.
func (m *MonitorService) runCycle(ctx context.Context) {
	metrics.CyclesTotal.Inc()

	window, features, counts := m.collector.Collect(ctx)
	metrics.ObserveWindow(counts.Sound, counts.Vibration, counts.Flame, counts.Motion)

	scores, err := m.classifier.Infer(ctx, features)
	if err != nil {
		metrics.ClassifierErrors.Inc()
		m.logger.Error("classification failed, aborting cycle",
			zap.String("device_id", m.deviceID),
			zap.Error(err),
		)
		return
	}

	decision := m.arbiter.Arbitrate(counts, scores)

	metrics.DecisionsTotal.WithLabelValues(decision.Status).Inc()
	if decision.AlertActive {
		metrics.AlertsTotal.Inc()
	}

	m.logger.Info("decision arbitrated",
		zap.String("device_id", m.deviceID),
		zap.String("status", decision.Status),
		zap.Float64("confidence", decision.Confidence),
		zap.Bool("alert_active", decision.AlertActive),
		zap.Int("sound_count", counts.Sound),
		zap.Int("vibration_count", counts.Vibration),
		zap.Int("flame_count", counts.Flame),
		zap.Int("motion_count", counts.Motion),
	)

	m.publishSideOutputs(window, counts, decision)

	if err := m.actuator.Render(ctx, decision); err != nil {
		m.logger.Error("failed to render decision",
			zap.String("status", decision.Status),
			zap.Error(err),
		)
	}
}

// publishSideOutputs fans the decision out to telemetry, history and the
// notifier. All of these are best-effort: a failed side output never blocks
// or aborts the cycle.
func (m *MonitorService) publishSideOutputs(window *models.SensorWindow, counts models.AnomalyCounts, decision models.Decision) {
	now := m.clock.Now()
	baseline, _ := m.collector.Baseline()

	if m.telemetry != nil {
		t := &models.WindowTelemetry{
			DeviceID:    m.deviceID,
			Timestamp:   now,
			Counts:      counts,
			AvgDistance: window.AverageDistance(),
			Baseline:    baseline,
			Decision:    decision,
		}
		if err := m.telemetry.PublishWindow(t); err != nil {
			m.logger.Error("failed to publish window telemetry", zap.Error(err))
		}
	}

	if m.historyChan != nil {
		record := &models.DecisionRecord{
			DeviceID:    m.deviceID,
			Status:      decision.Status,
			Confidence:  decision.Confidence,
			AlertActive: decision.AlertActive,
			Counts:      counts,
			AvgDistance: window.AverageDistance(),
			Timestamp:   now,
		}
		select {
		case m.historyChan <- record:
		default:
			m.logger.Warn("history buffer full, dropping decision record")
		}
	}

	if m.notifier != nil && decision.AlertActive {
		if err := m.notifier.SendAlert(decision, counts, m.deviceID); err != nil {
			m.logger.Error("failed to send alert notification", zap.Error(err))
		}
	}
}
