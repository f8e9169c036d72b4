package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/IBM/sarama"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/roominai/backend/internal/credits"
	"github.com/roominai/backend/internal/jobs"
	"github.com/roominai/backend/internal/models"
)

type generateRequest struct {
	UserID   string `json:"user_id"`
	ImageURL string `json:"image_url"`
	Theme    string `json:"theme"`
	Room     string `json:"room"`
}

// handleGenerate accepts a generation request, reserves one credit
// atomically, and enqueues the attempt for the worker. The caller gets a
// generation id back immediately; the poll loop runs out of band.
func (s *Server) handleGenerate(c *fiber.Ctx) error {
	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := validateGenerateRequest(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Reserve the credit before anything touches the image API. The
	// conditional update is the funds check: a zero balance never
	// reaches the provider.
	if err := s.ledger.Debit(c.Context(), req.UserID, models.GenerationCost); err != nil {
		switch {
		case errors.Is(err, credits.ErrInsufficientCredits):
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error": "insufficient credits",
			})
		case errors.Is(err, credits.ErrProfileNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found",
			})
		default:
			s.logger.Error("Failed to reserve credit", "error", err, "user_id", req.UserID)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to reserve credit",
			})
		}
	}

	generationID := uuid.NewString()
	_, err := s.db.DB.ExecContext(c.Context(), `
		INSERT INTO generations (id, user_id, image_url, theme, room, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, generationID, req.UserID, req.ImageURL, req.Theme, req.Room, models.StatusPending)
	if err != nil {
		s.logger.Error("Failed to insert generation", "error", err, "user_id", req.UserID)
		s.releaseReservedCredit(c, req.UserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create generation",
		})
	}

	// Set initial status in Redis
	redisKey := fmt.Sprintf("generation:%s", generationID)
	if err := s.db.Redis.Set(c.Context(), redisKey, models.StatusPending, 0).Err(); err != nil {
		s.logger.Error("Failed to set generation status in Redis", "error", err)
		// Log error without blocking submission; the DB row is authoritative.
	}

	// Send to Kafka
	job := jobs.GenerationJob{
		ID:       generationID,
		UserID:   req.UserID,
		ImageURL: req.ImageURL,
		Theme:    req.Theme,
		Room:     req.Room,
	}
	jobBytes, _ := json.Marshal(job)
	msg := &sarama.ProducerMessage{
		Topic: s.cfg.Kafka.Topic,
		Value: sarama.StringEncoder(jobBytes),
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		s.logger.Error("Failed to queue generation", "error", err, "generation_id", generationID)
		s.abortGeneration(c, generationID, req.UserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to queue generation",
		})
	}

	return c.JSON(fiber.Map{
		"generation_id": generationID,
		"status":        models.StatusPending,
	})
}

// handleGetGeneration returns the attempt's current state. The Redis
// mirror wins when present; the row is the fallback.
func (s *Server) handleGetGeneration(c *fiber.Ctx) error {
	generationID := c.Params("id")

	var generation models.Generation
	err := s.db.DB.GetContext(c.Context(), &generation, `
		SELECT id, user_id, image_url, theme, room, status, output_url, local_path, refunded, error, created_at
		FROM generations WHERE id = $1
	`, generationID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Generation not found",
		})
	}

	// Update status from Redis
	redisKey := fmt.Sprintf("generation:%s", generation.ID)
	if redisStatus, err := s.db.Redis.Get(c.Context(), redisKey).Result(); err == nil {
		generation.Status = redisStatus
	}

	return c.JSON(fiber.Map{"generation": generation})
}

func validateGenerateRequest(req *generateRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if req.ImageURL == "" {
		return fmt.Errorf("image_url is required")
	}
	if _, err := url.ParseRequestURI(req.ImageURL); err != nil {
		return fmt.Errorf("invalid image URL")
	}
	if !models.ValidTheme(req.Theme) {
		return fmt.Errorf("unknown theme %q", req.Theme)
	}
	if !models.ValidRoom(req.Room) {
		return fmt.Errorf("unknown room %q", req.Room)
	}
	return nil
}

// releaseReservedCredit undoes the reservation when the attempt never
// made it into the pipeline (no generation row exists to gate on).
func (s *Server) releaseReservedCredit(c *fiber.Ctx, userID string) {
	if err := s.ledger.Add(c.Context(), userID, models.GenerationCost); err != nil {
		s.logger.Error("REFUND FAILED, credits need manual reconciliation",
			"user_id", userID, "amount", models.GenerationCost, "error", err)
	}
}

// abortGeneration marks an enqueue failure terminal and refunds through
// the refunded-flag gate, same as the worker's failure path.
func (s *Server) abortGeneration(c *fiber.Ctx, generationID, userID string) {
	res, err := s.db.DB.ExecContext(c.Context(), `
		UPDATE generations SET status = $1, error = $2, refunded = TRUE
		WHERE id = $3 AND NOT refunded
	`, models.StatusFailed, "failed to queue generation", generationID)
	if err != nil {
		s.logger.Error("Failed to mark generation aborted", "error", err, "generation_id", generationID)
		return
	}
	if rows, err := res.RowsAffected(); err != nil || rows == 0 {
		return
	}
	s.releaseReservedCredit(c, userID)
}
