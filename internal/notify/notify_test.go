package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func setupTestNotifier(t *testing.T) (*Notifier, *miniredis.Miniredis) {
	miniRedis, err := miniredis.Run()
	assert.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: miniRedis.Addr()})
	return NewNotifier(client), miniRedis
}

func TestPublishBalanceReachesSubscriber(t *testing.T) {
	notifier, miniRedis := setupTestNotifier(t)
	defer miniRedis.Close()

	ctx := context.Background()
	updates, cancel := notifier.Subscribe(ctx, "user-1")
	defer cancel()

	// Give the subscription a moment to register before publishing.
	time.Sleep(100 * time.Millisecond)

	notifier.PublishBalance(ctx, "user-1", 5)

	select {
	case update := <-updates:
		assert.Equal(t, "user-1", update.UserID)
		assert.Equal(t, 5, update.Credits)
	case <-time.After(2 * time.Second):
		t.Fatal("no balance update received")
	}
}

func TestSubscribeIsScopedToUser(t *testing.T) {
	notifier, miniRedis := setupTestNotifier(t)
	defer miniRedis.Close()

	ctx := context.Background()
	updates, cancel := notifier.Subscribe(ctx, "user-1")
	defer cancel()

	time.Sleep(100 * time.Millisecond)

	// A different user's balance change must not leak into this channel.
	notifier.PublishBalance(ctx, "user-2", 9)

	select {
	case update := <-updates:
		t.Fatalf("unexpected update for %s", update.UserID)
	case <-time.After(300 * time.Millisecond):
	}
}
