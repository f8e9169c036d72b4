package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/roominai/backend/internal/metrics"
	"github.com/roominai/backend/internal/models"
	"github.com/roominai/backend/internal/payments"
)

// handleWebhook processes payment provider notifications. Policy: 400
// only when the signature or payload is bad; once the event parsed, the
// provider always gets a 200 so it never storms us with redeliveries.
// Internal failures are logged for manual reconciliation instead.
func (s *Server) handleWebhook(c *fiber.Ctx) error {
	body := c.Body()
	signature := c.Get("Stripe-Signature")

	err := payments.VerifySignature(body, signature, s.cfg.Stripe.WebhookSecret,
		s.cfg.Stripe.SignatureTolerance, time.Now())
	if err != nil {
		s.logger.Error("Webhook signature verification failed", "error", err)
		metrics.WebhookEventsTotal.WithLabelValues("rejected").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid signature",
		})
	}

	event, err := payments.ParseEvent(body)
	if err != nil {
		s.logger.Error("Webhook payload parse failed", "error", err)
		metrics.WebhookEventsTotal.WithLabelValues("rejected").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid payload",
		})
	}

	if event.Type != payments.EventCheckoutCompleted {
		metrics.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		return c.JSON(fiber.Map{"received": true})
	}

	if event.UserID == "" || event.Credits <= 0 {
		s.logger.Error("Payment event missing buyer or credit metadata", "event_id", event.ID)
		metrics.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		return c.JSON(fiber.Map{"received": true})
	}

	// Record the event id first; the primary key makes a replayed
	// delivery a no-op, so each payment grants credits exactly once.
	res, err := s.db.DB.NamedExecContext(c.Context(), `
		INSERT INTO payment_events (event_id, user_id, credits)
		VALUES (:event_id, :user_id, :credits)
		ON CONFLICT (event_id) DO NOTHING
	`, models.PaymentEvent{EventID: event.ID, UserID: event.UserID, Credits: event.Credits})
	if err != nil {
		s.logger.Error("Failed to record payment event", "event_id", event.ID, "error", err)
		metrics.WebhookEventsTotal.WithLabelValues("error").Inc()
		return c.JSON(fiber.Map{"received": true})
	}
	rows, err := res.RowsAffected()
	if err != nil {
		s.logger.Error("Failed to record payment event", "event_id", event.ID, "error", err)
		metrics.WebhookEventsTotal.WithLabelValues("error").Inc()
		return c.JSON(fiber.Map{"received": true})
	}
	if rows == 0 {
		s.logger.Info("Duplicate payment event ignored", "event_id", event.ID)
		metrics.WebhookEventsTotal.WithLabelValues("duplicate").Inc()
		return c.JSON(fiber.Map{"received": true})
	}

	if err := s.ledger.Add(c.Context(), event.UserID, event.Credits); err != nil {
		// The payment is real and recorded but the balance was not
		// updated. Needs manual reconciliation; do not 500, the
		// provider would only replay an event we already consumed.
		s.logger.Error("CREDIT GRANT FAILED after payment, needs manual reconciliation",
			"event_id", event.ID, "user_id", event.UserID, "credits", event.Credits, "error", err)
		metrics.WebhookEventsTotal.WithLabelValues("error").Inc()
		return c.JSON(fiber.Map{"received": true})
	}

	s.logger.Info("Credits granted for payment", "event_id", event.ID,
		"user_id", event.UserID, "credits", event.Credits)
	metrics.WebhookEventsTotal.WithLabelValues("processed").Inc()
	metrics.CreditsPurchasedTotal.Add(float64(event.Credits))
	return c.JSON(fiber.Map{"received": true})
}
