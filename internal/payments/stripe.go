package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roominai/backend/internal/models"
)

// EventCheckoutCompleted is the only provider event that grants credits.
const EventCheckoutCompleted = "checkout.session.completed"

var (
	// ErrInvalidSignature means the webhook payload failed the HMAC
	// check or its timestamp fell outside the tolerance window.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// CheckoutEvent is the parsed webhook payload the reconciliation path
// consumes: event id, type, and the metadata attached at session
// creation time.
type CheckoutEvent struct {
	ID      string
	Type    string
	UserID  string
	PlanID  string
	Credits int
}

type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// VerifySignature checks a Stripe-style signature header against the raw
// payload: header carries t=<unix> and v1=<hex hmac-sha256 of "t.payload">.
// now is injectable for tests.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return ErrInvalidSignature
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignPayload produces a valid signature header for payload. Used by
// tests and local tooling.
func SignPayload(payload []byte, secret string, now time.Time) string {
	timestamp := strconv.FormatInt(now.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

// ParseEvent decodes a verified webhook payload into a CheckoutEvent.
// Credits defaults to zero when the metadata is missing or malformed;
// the caller treats zero as "nothing to grant".
func ParseEvent(payload []byte) (*CheckoutEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	event := &CheckoutEvent{
		ID:     envelope.ID,
		Type:   envelope.Type,
		UserID: envelope.Data.Object.Metadata["userId"],
		PlanID: envelope.Data.Object.Metadata["planId"],
	}
	if raw, ok := envelope.Data.Object.Metadata["credits"]; ok {
		if credits, err := strconv.Atoi(raw); err == nil {
			event.Credits = credits
		}
	}
	return event, nil
}

// Client creates checkout sessions against the payment provider API.
type Client struct {
	baseURL    string
	secretKey  string
	successURL string
	cancelURL  string
	http       *http.Client
}

func NewClient(baseURL, secretKey, successURL, cancelURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		secretKey:  secretKey,
		successURL: successURL,
		cancelURL:  cancelURL,
		http:       &http.Client{Timeout: 15 * time.Second},
	}
}

// CheckoutSession is the subset of the session object the API returns
// that the frontend needs to redirect the buyer.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession opens a payment session for the given plan. The
// metadata bag carries user id and credit amount so the webhook can
// reconcile the purchase later.
func (c *Client) CreateCheckoutSession(ctx context.Context, userID string, plan *models.CreditPlan) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.successURL)
	form.Set("cancel_url", c.cancelURL)
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", "brl")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(plan.Price, 10))
	form.Set("line_items[0][price_data][product_data][name]", plan.Name)
	form.Set("line_items[0][price_data][product_data][description]",
		fmt.Sprintf("%d créditos - %s", plan.Credits, plan.Description))
	form.Set("metadata[userId]", userID)
	form.Set("metadata[planId]", plan.ID)
	form.Set("metadata[credits]", strconv.Itoa(plan.Credits))

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.secretKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error.Message != "" {
			return nil, fmt.Errorf("checkout session rejected: %s", apiErr.Error.Message)
		}
		return nil, fmt.Errorf("checkout session rejected: status %d", resp.StatusCode)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	return &session, nil
}
