package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/roominai/backend/internal/payments"
)

// 🔹 Test checkout session creation
func TestHandleCreateCheckout(t *testing.T) {
	server, mock, miniRedis := setupTestServer(t)
	defer miniRedis.Close()

	stripe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "user-1", r.PostForm.Get("metadata[userId]"))
		assert.Equal(t, "basic", r.PostForm.Get("metadata[planId]"))
		json.NewEncoder(w).Encode(payments.CheckoutSession{
			ID:  "cs_123",
			URL: "https://pay.example.com/cs_123",
		})
	}))
	defer stripe.Close()
	server.payments = payments.NewClient(stripe.URL, "sk_test", "https://app/success", "https://app/cancel")

	mock.ExpectQuery("SELECT (.+) FROM profiles").
		WithArgs("user-1").
		WillReturnRows(profileRows().AddRow("user-1", "a@b.com", "", 2, false, testTime, testTime))

	resp := postJSON(t, server, "/api/checkout", map[string]string{
		"plan_id": "basic",
		"user_id": "user-1",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "cs_123", result["session_id"])
	assert.Equal(t, "https://pay.example.com/cs_123", result["url"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleCreateCheckoutUnknownPlan(t *testing.T) {
	server, mock, miniRedis := setupTestServer(t)
	defer miniRedis.Close()

	resp := postJSON(t, server, "/api/checkout", map[string]string{
		"plan_id": "enterprise",
		"user_id": "user-1",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleCreateCheckoutUnknownUser(t *testing.T) {
	server, mock, miniRedis := setupTestServer(t)
	defer miniRedis.Close()

	mock.ExpectQuery("SELECT (.+) FROM profiles").
		WithArgs("ghost").
		WillReturnRows(profileRows())

	resp := postJSON(t, server, "/api/checkout", map[string]string{
		"plan_id": "basic",
		"user_id": "ghost",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleListPlans(t *testing.T) {
	server, _, miniRedis := setupTestServer(t)
	defer miniRedis.Close()

	req := httptest.NewRequest("GET", "/api/plans", nil)
	resp, err := server.app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Plans []struct {
			ID      string `json:"id"`
			Credits int    `json:"credits"`
			Price   int64  `json:"price"`
		} `json:"plans"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Len(t, result.Plans, 3)
	assert.Equal(t, "basic", result.Plans[0].ID)
	assert.Equal(t, 10, result.Plans[0].Credits)
	assert.Equal(t, int64(2990), result.Plans[0].Price)
}
