package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"vigil/models"

	"go.uber.org/zap"
)

// Classifier failure taxonomy. Both abort the current cycle only: no decision
// is produced, no actuation happens, the next cycle starts fresh.
var (
	ErrSignalConversion = errors.New("feature buffer cannot be framed as a signal")
	ErrInference        = errors.New("inference run failed")
)

// Classifier is the external model boundary: a flattened feature buffer in,
// a labeled score set out.
type Classifier interface {
	Shape() models.ModelShape
	Infer(ctx context.Context, features []float64) (models.ClassificationResult, error)
}

// HTTPClassifier talks to the inference sidecar over HTTP. The model's input
// shape and label set are fetched once at construction; labels are normalized
// into alias classes at that point so arbitration never re-parses strings.
type HTTPClassifier struct {
	logger     *zap.Logger
	apiURL     string
	httpClient *http.Client

	shape   models.ModelShape
	classes []models.LabelClass
}

type inferRequest struct {
	Features []float64 `json:"features"`
}

type inferResponse struct {
	Scores []float64 `json:"scores"`
}

// NewHTTPClassifier loads the model metadata from the inference service and
// prepares the normalized label table.
func NewHTTPClassifier(apiURL string, logger *zap.Logger) (*HTTPClassifier, error) {
	c := &HTTPClassifier{
		logger: logger,
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	shape, err := c.fetchShape()
	if err != nil {
		return nil, fmt.Errorf("failed to load model metadata: %w", err)
	}
	c.shape = shape

	c.classes = make([]models.LabelClass, len(shape.Labels))
	for i, label := range shape.Labels {
		c.classes[i] = models.ClassifyLabel(label)
	}

	logger.Info("classifier model loaded",
		zap.Int("frame_size", shape.FrameSize),
		zap.Int("samples_per_frame", shape.SamplesPerFrame),
		zap.Strings("labels", shape.Labels),
	)

	return c, nil
}

func (c *HTTPClassifier) fetchShape() (models.ModelShape, error) {
	var shape models.ModelShape

	resp, err := c.httpClient.Get(fmt.Sprintf("%s/api/v1/model", c.apiURL))
	if err != nil {
		return shape, fmt.Errorf("failed to reach inference service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return shape, fmt.Errorf("inference service returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(&shape); err != nil {
		return shape, fmt.Errorf("failed to decode model metadata: %w", err)
	}

	if shape.FrameSize <= 0 || shape.SamplesPerFrame <= 0 || len(shape.Labels) == 0 {
		return shape, fmt.Errorf("inference service declared an invalid model shape: %+v", shape)
	}

	return shape, nil
}

// Shape returns the model's declared input frame geometry and label set.
func (c *HTTPClassifier) Shape() models.ModelShape {
	return c.shape
}

// Infer runs one classification. A buffer that cannot be framed as a signal
// (wrong length, non-finite values) is ErrSignalConversion; any failure of
// the model run itself is ErrInference.
func (c *HTTPClassifier) Infer(ctx context.Context, features []float64) (models.ClassificationResult, error) {
	if len(features) != c.shape.FrameSize {
		return nil, fmt.Errorf("%w: got %d values, frame wants %d",
			ErrSignalConversion, len(features), c.shape.FrameSize)
	}
	for i, f := range features {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: non-finite value at slot %d", ErrSignalConversion, i)
		}
	}

	body, err := json.Marshal(inferRequest{Features: features})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignalConversion, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/v1/infer", c.apiURL), bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: inference service returned %s", ErrInference, resp.Status)
	}

	var out inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if len(out.Scores) != len(c.shape.Labels) {
		return nil, fmt.Errorf("%w: got %d scores for %d labels",
			ErrInference, len(out.Scores), len(c.shape.Labels))
	}

	// Scores are aligned with the label order the model declared at load
	// time, which keeps tie-breaking in arbitration deterministic.
	result := make(models.ClassificationResult, len(out.Scores))
	for i, score := range out.Scores {
		result[i] = models.LabelScore{
			Label: c.shape.Labels[i],
			Class: c.classes[i],
			Score: score,
		}
	}

	return result, nil
}
