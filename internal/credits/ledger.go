package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/roominai/backend/internal/models"
	"github.com/roominai/backend/internal/notify"
)

var (
	// ErrProfileNotFound is returned when no profile row exists for the user.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrInsufficientCredits is returned when a debit would drive the
	// balance below zero.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// Ledger owns every read and mutation of a user's credit balance. All
// mutations are single conditional UPDATEs so concurrent debits and
// credits for the same user serialize at the storage layer; the balance
// can never be observed negative.
type Ledger struct {
	db       *sqlx.DB
	notifier *notify.Notifier
}

func NewLedger(db *sqlx.DB, notifier *notify.Notifier) *Ledger {
	return &Ledger{db: db, notifier: notifier}
}

// GetBalance reads the current credit balance for userID.
func (l *Ledger) GetBalance(ctx context.Context, userID string) (int, error) {
	var credits int
	err := l.db.GetContext(ctx, &credits, "SELECT credits FROM profiles WHERE id = $1", userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProfileNotFound
		}
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return credits, nil
}

// HasEnough reports whether userID holds at least amount credits.
// Fail-closed: any lookup error reads as "not enough".
func (l *Ledger) HasEnough(ctx context.Context, userID string, amount int) bool {
	balance, err := l.GetBalance(ctx, userID)
	if err != nil {
		return false
	}
	return balance >= amount
}

// Debit atomically removes amount credits from userID. The conditional
// UPDATE only fires when the balance covers the amount, so two racing
// debits can never double-spend the same credit.
func (l *Ledger) Debit(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	res, err := l.db.ExecContext(ctx, `
		UPDATE profiles
		SET credits = credits - $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND credits >= $1
	`, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}
	if rows == 0 {
		// Either the profile is missing or the balance is short.
		if _, lookupErr := l.GetBalance(ctx, userID); lookupErr != nil {
			return lookupErr
		}
		return ErrInsufficientCredits
	}

	l.publishBalance(ctx, userID)
	return nil
}

// Add atomically grants amount credits to userID. Used for purchases and
// for refunding a reserved credit after a failed generation.
func (l *Ledger) Add(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("add amount must be positive, got %d", amount)
	}
	res, err := l.db.ExecContext(ctx, `
		UPDATE profiles
		SET credits = credits + $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to add credits: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to add credits: %w", err)
	}
	if rows == 0 {
		return ErrProfileNotFound
	}

	l.publishBalance(ctx, userID)
	return nil
}

// Revoke removes up to amount credits, clamping the balance at zero.
// Admin path only; normal spending goes through Debit.
func (l *Ledger) Revoke(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("revoke amount must be positive, got %d", amount)
	}
	res, err := l.db.ExecContext(ctx, `
		UPDATE profiles
		SET credits = GREATEST(0, credits - $1), updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke credits: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke credits: %w", err)
	}
	if rows == 0 {
		return ErrProfileNotFound
	}

	l.publishBalance(ctx, userID)
	return nil
}

// CreateProfile inserts a profile with the starting credit grant. The
// grant happens once: re-running the upsert for an existing profile
// changes nothing.
func (l *Ledger) CreateProfile(ctx context.Context, id, email, avatarURL string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, avatar_url, credits)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, id, email, avatarURL, models.StartingCredits)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetProfile reads the full profile row for userID.
func (l *Ledger) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := l.db.GetContext(ctx, &profile, `
		SELECT id, email, avatar_url, credits, is_admin, created_at, updated_at
		FROM profiles WHERE id = $1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return &profile, nil
}

// IsAdmin reports whether userID carries the admin flag. Fail-closed.
func (l *Ledger) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var isAdmin bool
	err := l.db.GetContext(ctx, &isAdmin, "SELECT is_admin FROM profiles WHERE id = $1", userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrProfileNotFound
		}
		return false, fmt.Errorf("failed to read admin flag: %w", err)
	}
	return isAdmin, nil
}

// ListProfiles returns every profile, newest first. Admin listing only.
func (l *Ledger) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	var profiles []models.Profile
	err := l.db.SelectContext(ctx, &profiles, `
		SELECT id, email, avatar_url, credits, is_admin, created_at, updated_at
		FROM profiles ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

func (l *Ledger) publishBalance(ctx context.Context, userID string) {
	if l.notifier == nil {
		return
	}
	balance, err := l.GetBalance(ctx, userID)
	if err != nil {
		slog.Error("Failed to read balance for notification", "userID", userID, "error", err)
		return
	}
	l.notifier.PublishBalance(ctx, userID, balance)
}
