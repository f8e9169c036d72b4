package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/roominai/backend/internal/credits"
	"github.com/roominai/backend/internal/models"
)

type checkoutRequest struct {
	PlanID string `json:"plan_id"`
	UserID string `json:"user_id"`
}

// handleListPlans returns the purchasable credit packages.
func (s *Server) handleListPlans(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"plans": models.CreditPlans})
}

// handleCreateCheckout opens a payment session for a credit plan. The
// metadata attached here is what the webhook reads back on completion.
func (s *Server) handleCreateCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	plan := models.FindPlan(req.PlanID)
	if plan == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Plan not found",
		})
	}

	if _, err := s.ledger.GetProfile(c.Context(), req.UserID); err != nil {
		if errors.Is(err, credits.ErrProfileNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		s.logger.Error("Failed to look up buyer", "error", err, "user_id", req.UserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to look up user",
		})
	}

	session, err := s.payments.CreateCheckoutSession(c.Context(), req.UserID, plan)
	if err != nil {
		s.logger.Error("Failed to create checkout session", "error", err, "plan_id", plan.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process payment",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": session.ID,
		"url":        session.URL,
	})
}
