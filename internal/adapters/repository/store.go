// Package repository defines the profile and record store interface and
// errors.
package repository

import (
	"context"

	"github.com/okian/aura/internal/domain/model"
)

// Store provides read/write access to user profiles and their ordered
// daily-record histories.
type Store interface {
	// CreateProfile registers a new user. Returns ErrAlreadyExists if the
	// user id is taken.
	CreateProfile(ctx context.Context, profile model.UserProfile) error

	// Profile returns the stored profile. Returns ErrNotFound for unknown
	// users.
	Profile(ctx context.Context, userID string) (model.UserProfile, error)

	// AppendRecord appends one daily record to a user's history and
	// returns the new history length.
	AppendRecord(ctx context.Context, userID string, record model.DailyRecord) (int, error)

	// Records returns the full ordered history for a user.
	Records(ctx context.Context, userID string) ([]model.DailyRecord, error)

	// UserIDs lists all registered users.
	UserIDs(ctx context.Context) []string

	// Count returns the number of registered users.
	Count(ctx context.Context) int
}
