package queue

import (
	"context"
	"errors"
	"fmt"
)

type State string

const (
	StateMatched State = "MATCHED"
	StateWaiting State = "WAITING"
	StateRemoved State = "REMOVED"
)

type Status struct {
	State              State
	PartnerID          string
	PartnerUsername    string
	CategoryAssigned   string
	DifficultyAssigned Difficulty
	MatchID            string
}

// Resolver answers polls. Seeing a match consumes the caller's own record, so MATCHED is
// returned at most once per side and later polls report REMOVED.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

const maxResolveAttempts = 3

func (r *Resolver) Resolve(ctx context.Context, userID string) (Status, error) {
	for range maxResolveAttempts {
		req, err := r.store.Get(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return Status{State: StateRemoved}, nil
		}
		if err != nil {
			return Status{}, fmt.Errorf("failed to read request for %s: %w", userID, err)
		}
		if !req.IsMatched {
			return Status{State: StateWaiting}, nil
		}

		consumed, err := r.store.DeleteMatched(ctx, userID, req.MatchID)
		if err != nil {
			return Status{}, fmt.Errorf("failed to consume match for %s: %w", userID, err)
		}
		if !consumed {
			// another poll consumed it or the user re-enqueued, look again
			continue
		}
		return Status{
			State:              StateMatched,
			PartnerID:          req.PartnerID,
			PartnerUsername:    req.PartnerUsername,
			CategoryAssigned:   req.CategoryAssigned,
			DifficultyAssigned: req.DifficultyAssigned,
			MatchID:            req.MatchID,
		}, nil
	}
	return Status{State: StateRemoved}, nil
}
