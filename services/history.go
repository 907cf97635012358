package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vigil/config"
	"vigil/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// DecisionHistoryService batches decision records and writes them to the
// Firebase Realtime Database so operators can review what the node decided
// and why long after the cycle is gone.
type DecisionHistoryService struct {
	client *db.Client
	config *config.Config
	logger *zap.Logger

	buffer       []*models.DecisionRecord
	bufferMutex  sync.Mutex
	flushTimer   *time.Timer
	maxBatchSize int
	batchTimeout time.Duration
	shutdownChan chan bool
}

// NewDecisionHistoryService connects to Firebase and prepares the batch
// buffer.
func NewDecisionHistoryService(cfg *config.Config, logger *zap.Logger) (*DecisionHistoryService, error) {
	ctx := context.Background()

	conf := &firebase.Config{
		DatabaseURL: cfg.FirebaseDbUrl,
	}

	opt := option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON))
	app, err := firebase.NewApp(ctx, conf, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	hs := &DecisionHistoryService{
		client:       client,
		config:       cfg,
		logger:       logger,
		buffer:       make([]*models.DecisionRecord, 0, cfg.FirebaseBatchSize),
		maxBatchSize: cfg.FirebaseBatchSize,
		batchTimeout: time.Duration(cfg.FirebaseBatchTimeout) * time.Second,
		shutdownChan: make(chan bool, 1),
	}

	if err := hs.testConnection(); err != nil {
		logger.Error("Firebase connection test failed", zap.Error(err))
		return nil, fmt.Errorf("firebase connection test failed: %w", err)
	}

	return hs, nil
}

// testConnection reads the database root with retry to verify credentials.
func (hs *DecisionHistoryService) testConnection() error {
	ctx := context.Background()
	maxRetries := 3

	for attempt := 1; attempt <= maxRetries; attempt++ {
		hs.logger.Info("Testing Firebase connection",
			zap.Int("attempt", attempt), zap.Int("max_retries", maxRetries))

		ref := hs.client.NewRef("/")
		var data interface{}
		err := ref.Get(ctx, &data)

		if err == nil {
			hs.logger.Info("Firebase connection successful")
			return nil
		}

		hs.logger.Warn("Firebase connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	return fmt.Errorf("failed to connect to Firebase after %d attempts", maxRetries)
}

// Start consumes decision records until the context is cancelled, flushing
// on batch size or timeout, whichever comes first.
func (hs *DecisionHistoryService) Start(ctx context.Context, records <-chan *models.DecisionRecord) {
	hs.logger.Info("Starting decision history writer",
		zap.Int("max_batch_size", hs.maxBatchSize),
		zap.Duration("batch_timeout", hs.batchTimeout))

	hs.flushTimer = time.NewTimer(hs.batchTimeout)

	for {
		select {
		case <-ctx.Done():
			hs.logger.Info("Decision history writer received shutdown signal")
			hs.flushBuffer(ctx)
			hs.shutdownChan <- true
			return

		case record, ok := <-records:
			if !ok {
				hs.logger.Warn("Decision record channel closed")
				hs.flushBuffer(ctx)
				return
			}

			hs.bufferMutex.Lock()
			hs.buffer = append(hs.buffer, record)
			currentSize := len(hs.buffer)
			hs.bufferMutex.Unlock()

			if currentSize >= hs.maxBatchSize {
				hs.logger.Info("History buffer full, flushing",
					zap.Int("buffer_size", currentSize))

				if !hs.flushTimer.Stop() {
					select {
					case <-hs.flushTimer.C:
					default:
					}
				}

				hs.flushBuffer(ctx)
				hs.flushTimer.Reset(hs.batchTimeout)
			}

		case <-hs.flushTimer.C:
			hs.bufferMutex.Lock()
			currentSize := len(hs.buffer)
			hs.bufferMutex.Unlock()

			if currentSize > 0 {
				hs.logger.Info("History batch timeout reached, flushing",
					zap.Int("buffer_size", currentSize))
				hs.flushBuffer(ctx)
			}

			hs.flushTimer.Reset(hs.batchTimeout)
		}
	}
}

// flushBuffer writes the current buffer to Firebase with retry.
func (hs *DecisionHistoryService) flushBuffer(ctx context.Context) {
	hs.bufferMutex.Lock()

	if len(hs.buffer) == 0 {
		hs.bufferMutex.Unlock()
		return
	}

	batch := make([]*models.DecisionRecord, len(hs.buffer))
	copy(batch, hs.buffer)
	hs.buffer = hs.buffer[:0]

	hs.bufferMutex.Unlock()

	maxRetries := 3
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = hs.writeBatch(ctx, batch)
		if err == nil {
			hs.logger.Info("Successfully flushed decision batch",
				zap.Int("batch_size", len(batch)))
			return
		}

		hs.logger.Error("Failed to flush decision batch",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Int("batch_size", len(batch)),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	hs.logger.Error("Failed to flush decision batch after all retries, data lost",
		zap.Int("batch_size", len(batch)),
		zap.Error(err))
}

// writeBatch pushes each record under the decision-history node.
func (hs *DecisionHistoryService) writeBatch(ctx context.Context, batch []*models.DecisionRecord) error {
	ref := hs.client.NewRef("decision-history")

	for _, record := range batch {
		if _, err := ref.Push(ctx, record); err != nil {
			return fmt.Errorf("error pushing decision record: %w", err)
		}
	}

	return nil
}

// WaitForShutdown blocks until the writer drained its buffer or the timeout
// expires.
func (hs *DecisionHistoryService) WaitForShutdown(timeout time.Duration) bool {
	select {
	case <-hs.shutdownChan:
		return true
	case <-time.After(timeout):
		return false
	}
}
