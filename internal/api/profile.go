package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/roominai/backend/internal/credits"
	"github.com/roominai/backend/internal/models"
)

// handleCreateProfile creates the profile row the first time a user
// authenticates. The starting credit grant happens exactly once.
func (s *Server) handleCreateProfile(c *fiber.Ctx) error {
	var req models.NewProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	// Validate required fields
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	s.logger.Info("Creating profile for user", "user_id", req.UserID)

	// Check if profile already exists
	if _, err := s.ledger.GetProfile(c.Context(), req.UserID); err == nil {
		s.logger.Info("Profile already exists for user", "user_id", req.UserID)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Profile already exists for this user",
		})
	} else if !errors.Is(err, credits.ErrProfileNotFound) {
		s.logger.Error("Failed to check for existing profile", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check for existing profile",
		})
	}

	if err := s.ledger.CreateProfile(c.Context(), req.UserID, req.Email, req.AvatarURL); err != nil {
		s.logger.Error("Failed to create profile", "error", err, "user_id", req.UserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create profile",
		})
	}

	// Fetch the complete profile with defaults applied
	profile, err := s.ledger.GetProfile(c.Context(), req.UserID)
	if err != nil {
		s.logger.Error("Failed to fetch created profile", "error", err, "user_id", req.UserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch created profile",
		})
	}

	s.logger.Info("Profile created successfully", "user_id", profile.ID, "credits", profile.Credits)

	return c.Status(fiber.StatusCreated).JSON(models.NewProfileResponse{
		Profile: *profile,
		Success: true,
	})
}

// handleGetProfile returns the profile with its current credit balance.
func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	userID := c.Params("id")

	profile, err := s.ledger.GetProfile(c.Context(), userID)
	if err != nil {
		if errors.Is(err, credits.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found",
			})
		}
		s.logger.Error("Failed to fetch profile", "error", err, "user_id", userID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch profile",
		})
	}

	return c.JSON(fiber.Map{"profile": profile})
}
