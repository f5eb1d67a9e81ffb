package queue

import (
	"context"
	"time"
)

// Store is the shared match queue. PairRequests is the only way a record becomes matched and
// must apply both sides or neither.
type Store interface {
	Put(ctx context.Context, req MatchRequest) error
	Get(ctx context.Context, userID string) (MatchRequest, error)
	Delete(ctx context.Context, userID string) error
	ScanUnmatched(ctx context.Context) ([]MatchRequest, error)
	PairRequests(ctx context.Context, update PairUpdate) error
	ListStale(ctx context.Context, cutoff time.Time) ([]string, error)
	ExpireIfStale(ctx context.Context, userID string, cutoff time.Time) (bool, error)
	DeleteMatched(ctx context.Context, userID string, matchID string) (bool, error)
}
