package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vigil/models"
)

func TestHardwareActuatorRender(t *testing.T) {
	var got renderPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/render", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	clock := newFakeClock()
	actuator := NewHardwareActuator(server.URL, clock, zap.NewNop())

	decision := models.Decision{Status: models.StatusHeat, Confidence: 0.4251, AlertActive: true}
	require.NoError(t, actuator.Render(context.Background(), decision))

	assert.Equal(t, "Heat", got.Line1)
	assert.Equal(t, "0.43", got.Line2, "confidence renders to two decimals")
	assert.True(t, got.AlertActive)
	assert.Equal(t, "alert", got.Pattern)
}

func TestHardwareActuatorAlertPatternBlocksSixSeconds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	clock := newFakeClock()
	actuator := NewHardwareActuator(server.URL, clock, zap.NewNop())

	decision := models.Decision{Status: models.StatusLoud, Confidence: 0.75, AlertActive: true}
	require.NoError(t, actuator.Render(context.Background(), decision))

	var total time.Duration
	for _, d := range clock.sleeps {
		total += d
	}
	assert.Equal(t, 6*time.Second, total)
	assert.Len(t, clock.sleeps, alertToneRepeats*2)
}

func TestHardwareActuatorNormalPatternIsShort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	clock := newFakeClock()
	actuator := NewHardwareActuator(server.URL, clock, zap.NewNop())

	decision := models.Decision{Status: models.StatusNormal, Confidence: 0.9}
	require.NoError(t, actuator.Render(context.Background(), decision))

	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, normalToneLength, clock.sleeps[0])
}

func TestHardwareActuatorHeadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	clock := newFakeClock()
	actuator := NewHardwareActuator(server.URL, clock, zap.NewNop())

	err := actuator.Render(context.Background(), models.Decision{Status: models.StatusNormal})
	assert.Error(t, err)
	assert.Empty(t, clock.sleeps, "a failed render must not hold the cycle")
}
