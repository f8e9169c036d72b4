package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/roominai/backend/internal/credits"
)

type adminCreditRequest struct {
	AdminID string `json:"admin_id"`
	UserID  string `json:"user_id"`
	Credits int    `json:"credits"`
}

func (s *Server) requireAdmin(c *fiber.Ctx, adminID string) bool {
	isAdmin, err := s.ledger.IsAdmin(c.Context(), adminID)
	if err != nil || !isAdmin {
		return false
	}
	return true
}

// handleGrantCredits adds credits to a user's balance. Admin only.
func (s *Server) handleGrantCredits(c *fiber.Ctx) error {
	var req adminCreditRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Credits <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Credits must be positive",
		})
	}
	if !s.requireAdmin(c, req.AdminID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Admin access required",
		})
	}

	if err := s.ledger.Add(c.Context(), req.UserID, req.Credits); err != nil {
		if errors.Is(err, credits.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found",
			})
		}
		s.logger.Error("Failed to grant credits", "error", err, "user_id", req.UserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to grant credits",
		})
	}

	s.logger.Info("Credits granted by admin", "admin_id", req.AdminID,
		"user_id", req.UserID, "credits", req.Credits)
	return c.JSON(fiber.Map{"success": true})
}

// handleRevokeCredits removes credits from a user's balance, clamping
// at zero. Admin only.
func (s *Server) handleRevokeCredits(c *fiber.Ctx) error {
	var req adminCreditRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Credits <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Credits must be positive",
		})
	}
	if !s.requireAdmin(c, req.AdminID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Admin access required",
		})
	}

	if err := s.ledger.Revoke(c.Context(), req.UserID, req.Credits); err != nil {
		if errors.Is(err, credits.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found",
			})
		}
		s.logger.Error("Failed to revoke credits", "error", err, "user_id", req.UserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to revoke credits",
		})
	}

	s.logger.Info("Credits revoked by admin", "admin_id", req.AdminID,
		"user_id", req.UserID, "credits", req.Credits)
	return c.JSON(fiber.Map{"success": true})
}

// handleListProfiles lists every profile for the admin dashboard.
func (s *Server) handleListProfiles(c *fiber.Ctx) error {
	adminID := c.Query("admin_id")
	if !s.requireAdmin(c, adminID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Admin access required",
		})
	}

	profiles, err := s.ledger.ListProfiles(c.Context())
	if err != nil {
		s.logger.Error("Failed to list profiles", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list profiles",
		})
	}

	return c.JSON(fiber.Map{"profiles": profiles})
}
