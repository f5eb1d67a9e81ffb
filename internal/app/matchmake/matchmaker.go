package matchmake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bkohler93/match-engine/internal/shared/clock"
	"github.com/bkohler93/match-engine/internal/shared/config"
	"github.com/bkohler93/match-engine/internal/shared/logger"
	"github.com/bkohler93/match-engine/internal/shared/observability"
	"github.com/bkohler93/match-engine/internal/shared/queue"
	"github.com/bkohler93/match-engine/internal/shared/session"
	"github.com/bkohler93/match-engine/pkg/uuidstring"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
)

// minNotifiedSweepGap keeps a burst of enqueue notifications from turning into a burst of sweeps.
const minNotifiedSweepGap = 250 * time.Millisecond

type Matchmaker struct {
	Store   queue.Store
	Clock   clock.Clock
	Handoff session.Handoff // nil disables the session handoff
	Bus     *TransportBus   // nil disables early sweeps and match events
	Log     *logger.Logger
	Policy  config.Policy

	tiers []Tier
	newID func() uuidstring.ID

	handoffSlots *semaphore.Weighted
	pending      sync.WaitGroup
}

func New(store queue.Store, c clock.Clock, handoff session.Handoff, bus *TransportBus, log *logger.Logger, policy config.Policy) *Matchmaker {
	return &Matchmaker{
		Store:   store,
		Clock:   c,
		Handoff: handoff,
		Bus:     bus,
		Log:     log.With("service", "Matchmaker"),
		Policy:  policy,
		tiers:   Tiers(policy),

		handoffSlots: semaphore.NewWeighted(int64(max(1, policy.HandoffConcurrency))),
	}
}

type Pair struct {
	MatchID    string           `json:"matchId"`
	Tier       TierName         `json:"tier"`
	User1ID    string           `json:"user1Id"` // earlier created, its parameters were assigned
	User2ID    string           `json:"user2Id"`
	Category   string           `json:"category"`
	Difficulty queue.Difficulty `json:"difficulty"`
}

type SweepResult struct {
	Scanned   int    `json:"scanned"`
	Pairs     []Pair `json:"pairs"`
	Conflicts int    `json:"conflicts"`
}

// Start sweeps every MatchInterval, and early when a worker notification arrives, until ctx
// is cancelled. A failed sweep is logged and the next one runs on schedule.
func (m *Matchmaker) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.Policy.MatchInterval)
	defer ticker.Stop()

	var alertCh <-chan string
	var errCh <-chan error
	if m.Bus != nil {
		alertCh, errCh = m.Bus.ListenForMatchmakeWorkerNotifications(ctx)
	}

	var lastSweep time.Time
	run := func(trigger string) {
		lastSweep = time.Now()
		sweepCtx, cancel := context.WithTimeout(ctx, m.Policy.SweepTimeout)
		defer cancel()
		res, err := m.Sweep(sweepCtx)
		if err != nil {
			m.Log.Error("match sweep failed", "trigger", trigger, "error", err)
			return
		}
		if len(res.Pairs) > 0 || res.Conflicts > 0 {
			m.Log.Info("match sweep finished", "trigger", trigger, "scanned", res.Scanned, "pairs", len(res.Pairs), "conflicts", res.Conflicts)
		}
	}

	m.Log.Info("ready to sweep match requests", "interval", m.Policy.MatchInterval)
	for {
		select {
		case <-ctx.Done():
			m.Log.Info("shutting down gracefully")
			m.Wait()
			return nil
		case <-ticker.C:
			run("timer")
		case userID, ok := <-alertCh:
			if !ok {
				alertCh = nil
				continue
			}
			if time.Since(lastSweep) < minNotifiedSweepGap {
				continue
			}
			m.Log.Debug("sweeping early after enqueue", "userId", userID)
			run("notify")
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if errors.Is(err, context.Canceled) {
				m.Wait()
				return nil
			}
			m.Log.Warn("worker notification listener failed, continuing on timer only", "error", err)
			errCh = nil
		}
	}
}

// Sweep makes one pass over the unmatched requests. Each tier is run across the whole queue
// before the next one is considered, oldest requests first, so an exact pairing always wins
// over a relaxed one. A store failure ends the sweep; pairings already made stand.
// Handoffs for the pairs start once pairing is done and are not waited on, see Wait.
func (m *Matchmaker) Sweep(ctx context.Context) (SweepResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "matchmake.sweep")
	defer span.End()

	var res SweepResult
	reqs, err := m.Store.ScanUnmatched(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return res, fmt.Errorf("failed to scan unmatched requests: %w", err)
	}
	res.Scanned = len(reqs)
	now := m.Clock.Now()

	defer func() {
		m.dispatch(ctx, res.Pairs)
		span.SetAttributes(
			attribute.Int("match.scanned", res.Scanned),
			attribute.Int("match.pairs", len(res.Pairs)),
			attribute.Int("match.conflicts", res.Conflicts),
		)
	}()

	tiers := m.tiers
	if tiers == nil {
		tiers = Tiers(m.Policy)
	}
	taken := make(map[string]bool, len(reqs))
	for _, tier := range tiers {
		for _, u := range reqs {
			if taken[u.UserID] || !tier.eligible(u, now) {
				continue
			}
			pair, err := m.pairFirstCandidate(ctx, tier, u, reqs, taken, now, &res)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "pairing failed")
				return res, err
			}
			if pair == nil {
				continue
			}
			res.Pairs = append(res.Pairs, *pair)
		}
	}
	return res, nil
}

// pairFirstCandidate walks candidates oldest first and stops at the first pairing the store
// accepts. A conflict on a candidate moves on to the next one, a conflict on u ends the search.
func (m *Matchmaker) pairFirstCandidate(ctx context.Context, tier Tier, u queue.MatchRequest, reqs []queue.MatchRequest, taken map[string]bool, now time.Time, res *SweepResult) (*Pair, error) {
	for _, v := range reqs {
		if taken[v.UserID] || !tier.Accepts(u, v, now) {
			continue
		}
		matchID := uuidstring.NewID()
		if m.newID != nil {
			matchID = m.newID()
		}
		update := queue.NewPairUpdate(matchID.String(), now, u, v)
		err := m.Store.PairRequests(ctx, update)
		if errors.Is(err, queue.ErrPairConflict) {
			res.Conflicts++
			claimed := queue.ConflictingUser(err)
			taken[claimed] = true
			m.Log.Debug("pair conflict", "userId", u.UserID, "candidateId", v.UserID, "claimed", claimed)
			if claimed == u.UserID {
				return nil, nil
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to pair %s with %s: %w", u.UserID, v.UserID, err)
		}

		taken[u.UserID] = true
		taken[v.UserID] = true
		first, second := u, v
		if v.CreatedBefore(u) {
			first, second = v, u
		}
		return &Pair{
			MatchID:    update.MatchID,
			Tier:       tier.Name,
			User1ID:    first.UserID,
			User2ID:    second.UserID,
			Category:   first.Category,
			Difficulty: first.Difficulty,
		}, nil
	}
	return nil, nil
}

// dispatch announces each pair on its own goroutine. Announcements from every sweep share
// HandoffConcurrency slots.
func (m *Matchmaker) dispatch(ctx context.Context, pairs []Pair) {
	ctx = context.WithoutCancel(ctx)
	for _, p := range pairs {
		m.pending.Add(1)
		go func() {
			defer m.pending.Done()
			if err := m.handoffSlots.Acquire(ctx, 1); err != nil {
				return
			}
			defer m.handoffSlots.Release(1)
			m.announce(ctx, p)
		}()
	}
}

// Wait blocks until every pair handed to dispatch has been announced. Each handoff is bounded
// by HandoffTimeout.
func (m *Matchmaker) Wait() {
	m.pending.Wait()
}

// announce runs the session handoff and publishes the match event. Neither can undo the pairing.
func (m *Matchmaker) announce(ctx context.Context, p Pair) {
	log := m.Log.With("matchId", p.MatchID, "user1Id", p.User1ID, "user2Id", p.User2ID)
	log.Info("paired match requests", "tier", p.Tier, "category", p.Category, "difficulty", p.Difficulty)

	if m.Handoff != nil {
		hctx, cancel := context.WithTimeout(ctx, m.Policy.HandoffTimeout)
		sessionID, err := m.Handoff.CreateSession(hctx, session.Request{
			MatchID:    p.MatchID,
			User1ID:    p.User1ID,
			User2ID:    p.User2ID,
			Category:   p.Category,
			Difficulty: string(p.Difficulty),
		})
		cancel()
		if err != nil {
			log.Warn("session handoff failed, match stands", "error", err)
		} else {
			log.Info("session created", "sessionId", sessionID)
		}
	}

	if m.Bus != nil {
		err := m.Bus.PublishMatchEvent(ctx, MatchEvent{
			MatchID:    p.MatchID,
			User1ID:    p.User1ID,
			User2ID:    p.User2ID,
			Category:   p.Category,
			Difficulty: string(p.Difficulty),
			Tier:       string(p.Tier),
		})
		if err != nil {
			log.Warn("failed to publish match event", "error", err)
		}
	}
}
