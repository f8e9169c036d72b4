package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/roominai/backend/internal/models"
)

// AttemptMetrics tracks aggregate numbers about generation attempts
// processed by this worker.
type AttemptMetrics struct {
	// TotalCount is the total number of attempts started
	TotalCount int `json:"totalCount"`
	// SuccessCount is the number of attempts that produced an image
	SuccessCount int `json:"successCount"`
	// FailureCount is the number of attempts that failed or timed out
	FailureCount int `json:"failureCount"`
	// RefundCount is the number of reserved credits returned
	RefundCount int `json:"refundCount"`
	// AverageProcessingTimeMs is the average time to complete an attempt
	AverageProcessingTimeMs int64 `json:"averageProcessingTimeMs"`
	// TotalProcessingTimeMs is the total time spent on successful attempts
	TotalProcessingTimeMs int64 `json:"totalProcessingTimeMs"`
}

// AttemptUpdate represents a change in a generation attempt's status.
type AttemptUpdate struct {
	GenerationID string    `json:"generationID"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	Refunded     bool      `json:"refunded,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// AttemptTracker keeps the in-memory view of every generation attempt
// this worker has touched, and fans status changes out to subscribers.
type AttemptTracker struct {
	// statuses stores the latest update per generation
	statuses map[string]AttemptUpdate
	// metrics tracks overall attempt metrics
	metrics AttemptMetrics
	// statusSubscribers are channels that receive status updates
	statusSubscribers []chan<- AttemptUpdate
	// mutex protects concurrent access to the tracker's state
	mutex sync.RWMutex
}

// NewAttemptTracker creates a new instance of AttemptTracker
func NewAttemptTracker() *AttemptTracker {
	return &AttemptTracker{
		statuses: make(map[string]AttemptUpdate),
	}
}

// UpdateStatus records a status change for a generation attempt.
func (t *AttemptTracker) UpdateStatus(generationID, status string, err error) {
	t.mutex.Lock()

	update := AttemptUpdate{
		GenerationID: generationID,
		Status:       status,
		Timestamp:    time.Now(),
	}
	if err != nil {
		update.Error = err.Error()
	}
	prev, exists := t.statuses[generationID]
	if exists {
		update.Refunded = prev.Refunded
	}

	t.updateMetrics(update, prev, exists)
	t.statuses[generationID] = update

	// Local copy of subscribers to avoid holding the lock during notifications
	subscribers := make([]chan<- AttemptUpdate, len(t.statusSubscribers))
	copy(subscribers, t.statusSubscribers)

	t.mutex.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- update:
		default:
			// Channel is not ready to receive, skip it
		}
	}
}

// MarkRefunded records that the attempt's reserved credit was returned.
func (t *AttemptTracker) MarkRefunded(generationID string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	update, exists := t.statuses[generationID]
	if !exists || update.Refunded {
		return
	}
	update.Refunded = true
	t.statuses[generationID] = update
	t.metrics.RefundCount++
}

// GetStatus returns the current status of a generation attempt.
func (t *AttemptTracker) GetStatus(generationID string) (AttemptUpdate, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	status, exists := t.statuses[generationID]
	if !exists {
		return AttemptUpdate{}, fmt.Errorf("no status found for generation %s", generationID)
	}
	return status, nil
}

// GetMetrics returns the current metrics
func (t *AttemptTracker) GetMetrics() AttemptMetrics {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.metrics
}

// Subscribe adds a channel to receive status updates
func (t *AttemptTracker) Subscribe(ch chan<- AttemptUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.statusSubscribers = append(t.statusSubscribers, ch)
}

// Unsubscribe removes a channel from receiving status updates
func (t *AttemptTracker) Unsubscribe(ch chan<- AttemptUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for i, subscriber := range t.statusSubscribers {
		if subscriber == ch {
			t.statusSubscribers = append(t.statusSubscribers[:i], t.statusSubscribers[i+1:]...)
			return
		}
	}
}

func (t *AttemptTracker) updateMetrics(update AttemptUpdate, prev AttemptUpdate, exists bool) {
	if !exists {
		t.metrics.TotalCount++
	}

	switch update.Status {
	case models.StatusSucceeded:
		t.metrics.SuccessCount++
		if exists {
			processingTime := update.Timestamp.Sub(prev.Timestamp).Milliseconds()
			t.metrics.TotalProcessingTimeMs += processingTime
			if t.metrics.SuccessCount > 0 {
				t.metrics.AverageProcessingTimeMs = t.metrics.TotalProcessingTimeMs / int64(t.metrics.SuccessCount)
			}
		}
	case models.StatusFailed, models.StatusTimedOut:
		t.metrics.FailureCount++
	}
}
