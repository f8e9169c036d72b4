package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/roominai/backend/internal/models"
)

// 🔹 Test profile creation
func TestHandleCreateProfile(t *testing.T) {
	server, mock, miniRedis := setupTestServer(t)
	defer miniRedis.Close()

	// No existing profile, insert, then read the row back with defaults
	mock.ExpectQuery("SELECT (.+) FROM profiles").
		WithArgs("user-1").
		WillReturnRows(profileRows())
	mock.ExpectExec("INSERT INTO profiles").
		WithArgs("user-1", "a@b.com", "https://cdn.example.com/a.png", models.StartingCredits).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM profiles").
		WithArgs("user-1").
		WillReturnRows(profileRows().AddRow("user-1", "a@b.com", "https://cdn.example.com/a.png",
			models.StartingCredits, false, testTime, testTime))

	resp := postJSON(t, server, "/api/profiles", map[string]string{
		"user_id":    "user-1",
		"email":      "a@b.com",
		"avatar_url": "https://cdn.example.com/a.png",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var result models.NewProfileResponse
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Equal(t, "user-1", result.Profile.ID)
	assert.Equal(t, models.StartingCredits, result.Profile.Credits, "new profiles start with the free credit")
	assert.False(t, result.Profile.IsAdmin)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleCreateProfileAlreadyExists(t *testing.T) {
	server, mock, miniRedis := setupTestServer(t)
	defer miniRedis.Close()

	mock.ExpectQuery("SELECT (.+) FROM profiles").
		WithArgs("user-1").
		WillReturnRows(profileRows().AddRow("user-1", "a@b.com", "", 4, false, testTime, testTime))

	resp := postJSON(t, server, "/api/profiles", map[string]string{
		"user_id": "user-1",
		"email":   "a@b.com",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// No insert: the starting credit is never granted twice.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleCreateProfileMissingUserID(t *testing.T) {
	server, mock, miniRedis := setupTestServer(t)
	defer miniRedis.Close()

	resp := postJSON(t, server, "/api/profiles", map[string]string{
		"email": "a@b.com",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 🔹 Test profile lookup
func TestHandleGetProfile(t *testing.T) {
	server, mock, miniRedis := setupTestServer(t)
	defer miniRedis.Close()

	mock.ExpectQuery("SELECT (.+) FROM profiles").
		WithArgs("user-1").
		WillReturnRows(profileRows().AddRow("user-1", "a@b.com", "", 12, false, testTime, testTime))

	req := httptest.NewRequest("GET", "/api/profiles/user-1", nil)
	resp, err := server.app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Profile models.Profile `json:"profile"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "user-1", result.Profile.ID)
	assert.Equal(t, 12, result.Profile.Credits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleGetProfileNotFound(t *testing.T) {
	server, mock, miniRedis := setupTestServer(t)
	defer miniRedis.Close()

	mock.ExpectQuery("SELECT (.+) FROM profiles").
		WithArgs("ghost").
		WillReturnRows(profileRows())

	req := httptest.NewRequest("GET", "/api/profiles/ghost", nil)
	resp, err := server.app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
