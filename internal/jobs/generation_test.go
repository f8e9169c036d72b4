package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/roominai/backend/internal/credits"
	"github.com/roominai/backend/internal/models"
	"github.com/roominai/backend/internal/replicate"
	"github.com/roominai/backend/pkg/database"
)

// MockGenerator simulates the image-generation API for testing.
type MockGenerator struct {
	SubmitErr   error
	WaitResult  string
	WaitErr     error
	SubmitCalls int
	WaitCalls   int
}

func (m *MockGenerator) Submit(ctx context.Context, imageURL, theme, room string) (*replicate.Prediction, error) {
	m.SubmitCalls++
	if m.SubmitErr != nil {
		return nil, m.SubmitErr
	}
	return &replicate.Prediction{ID: "pred-1", Status: "starting"}, nil
}

func (m *MockGenerator) Wait(ctx context.Context, predictionID string, interval time.Duration, maxAttempts int) (string, error) {
	m.WaitCalls++
	return m.WaitResult, m.WaitErr
}

// MockStorage returns a fixed local path without touching the network.
type MockStorage struct {
	Path string
	Err  error
}

func (m *MockStorage) StoreFromURL(ctx context.Context, url string) (string, error) {
	return m.Path, m.Err
}

func (m *MockStorage) Delete(ctx context.Context, path string) error {
	return nil
}

func setupTestHandler(t *testing.T, generator Generator, store *MockStorage) (*Handler, sqlmock.Sqlmock, *miniredis.Miniredis) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)

	db := sqlx.NewDb(mockDB, "sqlmock")

	miniRedis, err := miniredis.Run()
	assert.NoError(t, err)

	redisClient := redis.NewClient(&redis.Options{
		Addr: miniRedis.Addr(),
	})

	clients := &database.Clients{
		DB:    db,
		Redis: redisClient,
	}

	ledger := credits.NewLedger(db, nil)

	// A typed nil would still satisfy the interface's nil check, so only
	// pass the mock through when the test actually wants storage.
	if store == nil {
		return NewHandler(clients, ledger, generator, nil, time.Millisecond, 3), mock, miniRedis
	}
	return NewHandler(clients, ledger, generator, store, time.Millisecond, 3), mock, miniRedis
}

var testJob = GenerationJob{
	ID:       "gen-1",
	UserID:   "user-1",
	ImageURL: "https://example.com/room.jpg",
	Theme:    "Modern",
	Room:     "Bedroom",
}

func TestProcessSuccessDoesNotRefund(t *testing.T) {
	generator := &MockGenerator{WaitResult: "https://cdn.example.com/out.png"}
	store := &MockStorage{Path: "/tmp/roomin/out.png"}
	handler, mock, miniRedis := setupTestHandler(t, generator, store)
	defer miniRedis.Close()

	mock.ExpectExec("UPDATE generations").
		WithArgs(models.StatusSucceeded, "https://cdn.example.com/out.png", "/tmp/roomin/out.png", "", "gen-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := handler.Process(context.Background(), testJob)
	assert.NoError(t, err)
	assert.Equal(t, 1, generator.SubmitCalls)
	assert.Equal(t, 1, generator.WaitCalls)

	// Redis mirrors the terminal status for the polling endpoint.
	status, err := miniRedis.Get("generation:gen-1")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, status)

	update, err := handler.Tracker().GetStatus("gen-1")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, update.Status)
	assert.False(t, update.Refunded)

	// No refund query, no ledger update: the reserved credit stays spent.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessSubmissionFailureRefunds(t *testing.T) {
	generator := &MockGenerator{SubmitErr: replicate.ErrSubmission}
	handler, mock, miniRedis := setupTestHandler(t, generator, nil)
	defer miniRedis.Close()

	// Terminal state first, then the gated refund, then the credit back.
	mock.ExpectExec("UPDATE generations").
		WithArgs(models.StatusFailed, "", "", replicate.ErrSubmission.Error(), "gen-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE generations SET refunded").
		WithArgs("gen-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE profiles").
		WithArgs(models.GenerationCost, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := handler.Process(context.Background(), testJob)
	assert.ErrorIs(t, err, replicate.ErrSubmission)
	assert.Equal(t, 0, generator.WaitCalls)

	status, err := miniRedis.Get("generation:gen-1")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusFailed, status)

	update, err := handler.Tracker().GetStatus("gen-1")
	assert.NoError(t, err)
	assert.True(t, update.Refunded)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessPollTimeoutMarksTimedOut(t *testing.T) {
	generator := &MockGenerator{WaitErr: replicate.ErrPollTimeout}
	handler, mock, miniRedis := setupTestHandler(t, generator, nil)
	defer miniRedis.Close()

	mock.ExpectExec("UPDATE generations").
		WithArgs(models.StatusTimedOut, "", "", replicate.ErrPollTimeout.Error(), "gen-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE generations SET refunded").
		WithArgs("gen-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE profiles").
		WithArgs(models.GenerationCost, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := handler.Process(context.Background(), testJob)
	assert.ErrorIs(t, err, replicate.ErrPollTimeout)

	status, err := miniRedis.Get("generation:gen-1")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusTimedOut, status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// A redelivered failure must not produce a second refund: the refunded
// flag flips exactly once, and only the flip grants credits back.
func TestRefundIsIdempotent(t *testing.T) {
	generator := &MockGenerator{}
	handler, mock, miniRedis := setupTestHandler(t, generator, nil)
	defer miniRedis.Close()

	mock.ExpectExec("UPDATE generations SET refunded").
		WithArgs("gen-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE profiles").
		WithArgs(models.GenerationCost, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Second attempt: the flag is already set, no rows match, no grant.
	mock.ExpectExec("UPDATE generations SET refunded").
		WithArgs("gen-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, handler.refund(context.Background(), testJob))
	assert.NoError(t, handler.refund(context.Background(), testJob))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Losing the local cache copy is not worth failing a paid generation.
func TestProcessSucceedsWhenLocalCacheFails(t *testing.T) {
	generator := &MockGenerator{WaitResult: "https://cdn.example.com/out.png"}
	store := &MockStorage{Err: errors.New("disk full")}
	handler, mock, miniRedis := setupTestHandler(t, generator, store)
	defer miniRedis.Close()

	mock.ExpectExec("UPDATE generations").
		WithArgs(models.StatusSucceeded, "https://cdn.example.com/out.png", "", "", "gen-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := handler.Process(context.Background(), testJob)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
