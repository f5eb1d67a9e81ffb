package queue

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps the queue in process. Every method holds the same lock, which makes
// PairRequests atomic for a single engine instance only.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string]MatchRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string]MatchRequest),
	}
}

func (s *MemoryStore) Put(ctx context.Context, req MatchRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.UserID] = req
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (MatchRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[userID]
	if !ok {
		return MatchRequest{}, ErrNotFound
	}
	return req, nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, userID)
	return nil
}

func (s *MemoryStore) ScanUnmatched(ctx context.Context) ([]MatchRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reqs := make([]MatchRequest, 0, len(s.requests))
	for _, r := range s.requests {
		if !r.IsMatched {
			reqs = append(reqs, r)
		}
	}
	slices.SortFunc(reqs, SortedByCreatedAtFunc)
	return reqs, nil
}

func (s *MemoryStore) PairRequests(ctx context.Context, update PairUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.claimable(update.A)
	if err != nil {
		return err
	}
	b, err := s.claimable(update.B)
	if err != nil {
		return err
	}
	s.requests[a.UserID] = update.A.apply(a, update.MatchID, update.MatchedAt)
	s.requests[b.UserID] = update.B.apply(b, update.MatchID, update.MatchedAt)
	return nil
}

func (s *MemoryStore) claimable(p PairPatch) (MatchRequest, error) {
	r, ok := s.requests[p.UserID]
	if !ok || r.IsMatched || r.CreatedAt != p.ExpectedCreatedAt {
		return r, &PairConflictError{UserID: p.UserID}
	}
	return r, nil
}

func (s *MemoryStore) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.requests {
		if !r.IsMatched && r.CreatedAt < cutoff.UnixMilli() {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *MemoryStore) ExpireIfStale(ctx context.Context, userID string, cutoff time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[userID]
	if !ok || r.IsMatched || r.CreatedAt >= cutoff.UnixMilli() {
		return false, nil
	}
	delete(s.requests, userID)
	return true, nil
}

func (s *MemoryStore) DeleteMatched(ctx context.Context, userID string, matchID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[userID]
	if !ok || !r.IsMatched || r.MatchID != matchID {
		return false, nil
	}
	delete(s.requests, userID)
	return true, nil
}
