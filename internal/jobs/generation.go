package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roominai/backend/internal/credits"
	"github.com/roominai/backend/internal/metrics"
	"github.com/roominai/backend/internal/models"
	"github.com/roominai/backend/internal/replicate"
	"github.com/roominai/backend/internal/storage"
	"github.com/roominai/backend/pkg/database"
)

// GenerationJob is the message the API publishes for each accepted
// generation request. One credit has already been reserved when the
// worker sees it.
type GenerationJob struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	ImageURL string `json:"image_url"`
	Theme    string `json:"theme"`
	Room     string `json:"room"`
}

// Generator is the image-generation API surface the handler needs.
type Generator interface {
	Submit(ctx context.Context, imageURL, theme, room string) (*replicate.Prediction, error)
	Wait(ctx context.Context, predictionID string, interval time.Duration, maxAttempts int) (string, error)
}

// Handler runs one generation attempt end-to-end: submit, poll until a
// terminal state, then reconcile the reserved credit.
type Handler struct {
	db              *database.Clients
	ledger          *credits.Ledger
	generator       Generator
	storage         storage.Storage
	tracker         *AttemptTracker
	pollInterval    time.Duration
	maxPollAttempts int
}

func NewHandler(db *database.Clients, ledger *credits.Ledger, generator Generator, store storage.Storage, pollInterval time.Duration, maxPollAttempts int) *Handler {
	return &Handler{
		db:              db,
		ledger:          ledger,
		generator:       generator,
		storage:         store,
		tracker:         NewAttemptTracker(),
		pollInterval:    pollInterval,
		maxPollAttempts: maxPollAttempts,
	}
}

// Tracker exposes the in-memory attempt tracker.
func (h *Handler) Tracker() *AttemptTracker {
	return h.tracker
}

// Process drives one attempt through the state machine
// pending -> {succeeded | failed | timed_out}. Any non-success terminal
// state refunds the reserved credit exactly once.
func (h *Handler) Process(ctx context.Context, job GenerationJob) error {
	h.tracker.UpdateStatus(job.ID, models.StatusPending, nil)

	prediction, err := h.generator.Submit(ctx, job.ImageURL, job.Theme, job.Room)
	if err != nil {
		slog.Error("Generation submission failed", "generationID", job.ID, "error", err)
		h.finishFailed(ctx, job, models.StatusFailed, err)
		return err
	}
	slog.Info("Generation submitted", "generationID", job.ID, "predictionID", prediction.ID)

	outputURL, err := h.generator.Wait(ctx, prediction.ID, h.pollInterval, h.maxPollAttempts)
	if err != nil {
		status := models.StatusFailed
		if errors.Is(err, replicate.ErrPollTimeout) {
			status = models.StatusTimedOut
		}
		slog.Error("Generation did not succeed", "generationID", job.ID, "status", status, "error", err)
		h.finishFailed(ctx, job, status, err)
		return err
	}

	// Keep a local copy for the download affordance; losing it is not
	// worth failing a generation the user already paid for.
	localPath := ""
	if h.storage != nil {
		localPath, err = h.storage.StoreFromURL(ctx, outputURL)
		if err != nil {
			slog.Error("Failed to cache generated image", "generationID", job.ID, "error", err)
			localPath = ""
		}
	}

	if err := h.updateGeneration(ctx, job.ID, models.StatusSucceeded, outputURL, localPath, ""); err != nil {
		slog.Error("Failed to persist generation success", "generationID", job.ID, "error", err)
		return err
	}
	h.setRedisStatus(ctx, job.ID, models.StatusSucceeded)
	h.tracker.UpdateStatus(job.ID, models.StatusSucceeded, nil)
	metrics.GenerationsTotal.WithLabelValues(models.StatusSucceeded).Inc()
	slog.Info("Generation succeeded", "generationID", job.ID, "output", outputURL)
	return nil
}

// finishFailed records the terminal state and returns the reserved
// credit. The refund is gated on the generations.refunded flag so a
// redelivered message cannot refund twice.
func (h *Handler) finishFailed(ctx context.Context, job GenerationJob, status string, cause error) {
	if err := h.updateGeneration(ctx, job.ID, status, "", "", cause.Error()); err != nil {
		slog.Error("Failed to persist generation failure", "generationID", job.ID, "error", err)
	}
	h.setRedisStatus(ctx, job.ID, status)
	h.tracker.UpdateStatus(job.ID, status, cause)
	metrics.GenerationsTotal.WithLabelValues(status).Inc()

	if err := h.refund(ctx, job); err != nil {
		// The user has paid for nothing. Nothing more can be done
		// automatically; leave a loud trail for manual reconciliation.
		slog.Error("REFUND FAILED, credits need manual reconciliation",
			"generationID", job.ID, "userID", job.UserID, "amount", models.GenerationCost, "error", err)
	}
}

func (h *Handler) refund(ctx context.Context, job GenerationJob) error {
	res, err := h.db.DB.ExecContext(ctx,
		"UPDATE generations SET refunded = TRUE WHERE id = $1 AND NOT refunded", job.ID)
	if err != nil {
		return fmt.Errorf("failed to mark refund: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark refund: %w", err)
	}
	if rows == 0 {
		// Already refunded by an earlier delivery of the same message.
		return nil
	}

	if err := h.ledger.Add(ctx, job.UserID, models.GenerationCost); err != nil {
		return err
	}
	h.tracker.MarkRefunded(job.ID)
	metrics.CreditsRefundedTotal.Inc()
	slog.Info("Reserved credit refunded", "generationID", job.ID, "userID", job.UserID)
	return nil
}

func (h *Handler) updateGeneration(ctx context.Context, id, status, outputURL, localPath, errMsg string) error {
	_, err := h.db.DB.ExecContext(ctx, `
		UPDATE generations
		SET status = $1, output_url = $2, local_path = $3, error = $4
		WHERE id = $5
	`, status, outputURL, localPath, errMsg, id)
	return err
}

func (h *Handler) setRedisStatus(ctx context.Context, id, status string) {
	key := fmt.Sprintf("generation:%s", id)
	if err := h.db.Redis.Set(ctx, key, status, 0).Err(); err != nil {
		slog.Error("Failed to update generation status in Redis", "generationID", id, "error", err)
	}
}
