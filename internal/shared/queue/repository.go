package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bkohler93/match-engine/internal/shared/clock"
)

type EnqueueRequest struct {
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

// Validate trims the request in place and returns the parsed difficulty.
func (e *EnqueueRequest) Validate() (Difficulty, error) {
	e.UserID = strings.TrimSpace(e.UserID)
	e.Username = strings.TrimSpace(e.Username)
	e.Category = strings.TrimSpace(e.Category)
	var missing []string
	if e.UserID == "" {
		missing = append(missing, "userId")
	}
	if e.Username == "" {
		missing = append(missing, "username")
	}
	if e.Category == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return ParseDifficulty(e.Difficulty)
}

// Repository holds the external triggers that write to the queue: enqueue and cancel.
type Repository struct {
	store Store
	clock clock.Clock
}

func NewRepository(store Store, c clock.Clock) *Repository {
	return &Repository{
		store: store,
		clock: c,
	}
}

// Enqueue creates or replaces the user's request. Only validation errors are user facing.
func (r *Repository) Enqueue(ctx context.Context, e EnqueueRequest) (MatchRequest, error) {
	difficulty, err := e.Validate()
	if err != nil {
		return MatchRequest{}, err
	}
	req := MatchRequest{
		UserID:     e.UserID,
		Username:   e.Username,
		Category:   e.Category,
		Difficulty: difficulty,
		CreatedAt:  r.clock.Now().UnixMilli(),
	}
	if err := r.store.Put(ctx, req); err != nil {
		return MatchRequest{}, fmt.Errorf("failed to enqueue %s: %w", req.UserID, err)
	}
	return req, nil
}

func (r *Repository) Cancel(ctx context.Context, userID string) error {
	if err := r.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to cancel %s: %w", userID, err)
	}
	return nil
}

// InQueue reports presence without consuming a match.
func (r *Repository) InQueue(ctx context.Context, userID string) (bool, error) {
	_, err := r.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
