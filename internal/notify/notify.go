package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// BalanceUpdate is published whenever a profile's credit balance changes.
type BalanceUpdate struct {
	UserID  string `json:"user_id"`
	Credits int    `json:"credits"`
}

// Notifier pushes balance changes onto a per-user Redis channel so the
// presentation layer can refresh without polling the profile row.
type Notifier struct {
	client *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

func channelFor(userID string) string {
	return fmt.Sprintf("profile:credits:%s", userID)
}

// PublishBalance broadcasts the new balance for userID. Delivery is
// best-effort: a publish failure is logged, never surfaced to the caller.
func (n *Notifier) PublishBalance(ctx context.Context, userID string, credits int) {
	payload, err := json.Marshal(BalanceUpdate{UserID: userID, Credits: credits})
	if err != nil {
		slog.Error("Failed to marshal balance update", "userID", userID, "error", err)
		return
	}
	if err := n.client.Publish(ctx, channelFor(userID), payload).Err(); err != nil {
		slog.Error("Failed to publish balance update", "userID", userID, "error", err)
	}
}

// Subscribe returns a channel of balance updates for userID. The caller
// must call the returned cancel function when done.
func (n *Notifier) Subscribe(ctx context.Context, userID string) (<-chan BalanceUpdate, func()) {
	sub := n.client.Subscribe(ctx, channelFor(userID))
	out := make(chan BalanceUpdate, 8)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var update BalanceUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				slog.Error("Failed to decode balance update", "error", err)
				continue
			}
			select {
			case out <- update:
			default:
				// Slow subscriber, drop the update
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}
