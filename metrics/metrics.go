// Package metrics exports Prometheus instrumentation for the monitor loop.
package metrics

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// CyclesTotal counts completed monitor cycles, including aborted ones.
	CyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_cycles_total",
			Help: "Total number of monitor cycles started",
		},
	)

	// DecisionsTotal counts arbitrated decisions by status.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_decisions_total",
			Help: "Total number of decisions by status",
		},
		[]string{"status"},
	)

	// AlertsTotal counts decisions that activated the alert pattern.
	AlertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_alerts_total",
			Help: "Total number of decisions with the alert active",
		},
	)

	// ClassifierErrors counts cycles aborted by the classifier boundary.
	ClassifierErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_classifier_errors_total",
			Help: "Total number of cycles aborted by classifier failures",
		},
	)

	// WindowAnomalies exposes the anomaly counters of the last window.
	WindowAnomalies = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vigil_window_anomaly_count",
			Help: "Anomaly count of the most recent window per channel",
		},
		[]string{"channel"},
	)

	// CycleDuration tracks how long a full cycle takes.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigil_cycle_duration_seconds",
			Help:    "Full cycle duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15},
		},
	)
)

// ObserveWindow records the counters of a freshly collected window.
func ObserveWindow(sound, vibration, flame, motion int) {
	WindowAnomalies.WithLabelValues("sound").Set(float64(sound))
	WindowAnomalies.WithLabelValues("vibration").Set(float64(vibration))
	WindowAnomalies.WithLabelValues("flame").Set(float64(flame))
	WindowAnomalies.WithLabelValues("motion").Set(float64(motion))
}

// Serve starts the metrics and health endpoint in the background.
func Serve(addr string, logger *zap.Logger) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()

	return srv
}
