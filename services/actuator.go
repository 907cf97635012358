package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vigil/models"

	"go.uber.org/zap"
)

// Audible pattern timing. The alert pattern is 6 repetitions of tone plus
// silence, about six seconds end to end; the normal pattern is one short tone.
const (
	alertToneRepeats  = 6
	alertToneDuration = 500 * time.Millisecond
	alertToneGap      = 500 * time.Millisecond
	normalToneLength  = 200 * time.Millisecond
)

// Actuator renders a decision to the operator: two display lines plus one of
// the two fixed audible patterns. Rendering may block the calling cycle for
// the duration of the pattern.
type Actuator interface {
	Render(ctx context.Context, decision models.Decision) error
}

// HardwareActuator drives the display/buzzer head over its HTTP API.
type HardwareActuator struct {
	logger     *zap.Logger
	apiURL     string
	httpClient *http.Client
	clock      Clock
}

// renderPayload is the body sent to the actuator head.
type renderPayload struct {
	Line1       string `json:"line1"`
	Line2       string `json:"line2"`
	AlertActive bool   `json:"alert_active"`
	Pattern     string `json:"pattern"`
}

// NewHardwareActuator creates an actuator client for the given head URL.
func NewHardwareActuator(apiURL string, clock Clock, logger *zap.Logger) *HardwareActuator {
	return &HardwareActuator{
		logger: logger,
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		clock: clock,
	}
}

// Render pushes the decision to the head and then blocks for the pattern
// duration, mirroring how long the buzzer holds the cycle.
func (h *HardwareActuator) Render(ctx context.Context, decision models.Decision) error {
	line1, line2 := decision.DisplayLines()

	payload := renderPayload{
		Line1:       line1,
		Line2:       line2,
		AlertActive: decision.AlertActive,
		Pattern:     patternName(decision.AlertActive),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal render payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/render", h.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "VIGIL-Monitor/1.0")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send render request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.logger.Error("actuator head returned error",
			zap.Int("status_code", resp.StatusCode),
			zap.String("status", resp.Status),
		)
		return fmt.Errorf("actuator head error: %s", resp.Status)
	}

	h.logger.Debug("decision rendered",
		zap.String("line1", line1),
		zap.String("line2", line2),
		zap.Bool("alert_active", decision.AlertActive),
	)

	h.holdForPattern(ctx, decision.AlertActive)
	return nil
}

// holdForPattern blocks the cycle while the buzzer plays.
func (h *HardwareActuator) holdForPattern(ctx context.Context, alert bool) {
	if alert {
		for i := 0; i < alertToneRepeats; i++ {
			h.clock.Sleep(ctx, alertToneDuration)
			h.clock.Sleep(ctx, alertToneGap)
		}
		return
	}
	h.clock.Sleep(ctx, normalToneLength)
}

func patternName(alert bool) string {
	if alert {
		return "alert"
	}
	return "normal"
}

// ConsoleActuator renders decisions to the log only. Used on the bench when
// no actuator head is configured.
type ConsoleActuator struct {
	logger *zap.Logger
}

func NewConsoleActuator(logger *zap.Logger) *ConsoleActuator {
	return &ConsoleActuator{logger: logger}
}

func (c *ConsoleActuator) Render(ctx context.Context, decision models.Decision) error {
	line1, line2 := decision.DisplayLines()
	c.logger.Info("decision",
		zap.String("line1", line1),
		zap.String("line2", line2),
		zap.Bool("alert_active", decision.AlertActive),
	)
	return nil
}
