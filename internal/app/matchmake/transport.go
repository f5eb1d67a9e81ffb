package matchmake

import (
	"context"
	"encoding/json"

	"github.com/bkohler93/match-engine/internal/shared/logger"
	"github.com/bkohler93/match-engine/internal/shared/transport"
	"github.com/bkohler93/match-engine/internal/shared/utils/redisutils/rediskeys"
	"github.com/redis/go-redis/v9"
)

const (
	MatchmakeWorkerNotifier       transport.BroadcastProducerType = "MatchmakeWorkerNotifier"
	MatchmakeWorkerNotifyReceiver transport.BroadcastConsumerType = "MatchmakeWorkerNotifyReceiver"
	MatchEventPublisher           transport.BroadcastProducerType = "MatchEventPublisher"
	MatchEventReceiver            transport.BroadcastConsumerType = "MatchEventReceiver"
)

// MatchEvent is broadcast once per pairing so push clients can poll right away.
type MatchEvent struct {
	MatchID    string `json:"matchId"`
	User1ID    string `json:"user1Id"`
	User2ID    string `json:"user2Id"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
	Tier       string `json:"tier"`
}

func (e MatchEvent) Involves(userID string) bool {
	return e.User1ID == userID || e.User2ID == userID
}

type workerNotification struct {
	UserID string `json:"userId"`
}

type TransportBus struct {
	transportBus *transport.Bus
	log          *logger.Logger
}

func NewBus(workerNotifier transport.BroadcastProducer, workerNotifyReceiver transport.BroadcastConsumer, matchEventPublisher transport.BroadcastProducer, matchEventReceiver transport.BroadcastConsumer) *TransportBus {
	b := &TransportBus{
		transportBus: &transport.Bus{},
		log:          logger.Nop(),
	}
	b.transportBus.AddBroadcastProducer(MatchmakeWorkerNotifier, workerNotifier)
	b.transportBus.AddBroadcastConsumer(MatchmakeWorkerNotifyReceiver, workerNotifyReceiver)
	b.transportBus.AddBroadcastProducer(MatchEventPublisher, matchEventPublisher)
	b.transportBus.AddBroadcastConsumer(MatchEventReceiver, matchEventReceiver)
	return b
}

func NewRedisBus(rdb *redis.Client) *TransportBus {
	return NewBus(
		transport.NewRedisBroadcastProducer(rdb, rediskeys.MatchmakeNotifyWorkersPubSub),
		transport.NewRedisBroadcastConsumer(rdb, rediskeys.MatchmakeNotifyWorkersPubSub),
		transport.NewRedisBroadcastProducer(rdb, rediskeys.MatchEventsPubSub),
		transport.NewRedisBroadcastConsumer(rdb, rediskeys.MatchEventsPubSub),
	)
}

// NewLocalBus is the in-process variant used with the memory queue backend.
func NewLocalBus() *TransportBus {
	workers := transport.NewLocalBroadcaster()
	events := transport.NewLocalBroadcaster()
	return NewBus(workers, workers, events, events)
}

func (b *TransportBus) SetLogger(log *logger.Logger) {
	b.log = log.With("component", "TransportBus")
}

// NotifyMatchmakeWorkers asks running sweepers to sweep early because userID just enqueued.
func (b *TransportBus) NotifyMatchmakeWorkers(ctx context.Context, userID string) error {
	return b.transportBus.Publish(ctx, MatchmakeWorkerNotifier, workerNotification{UserID: userID})
}

func (b *TransportBus) ListenForMatchmakeWorkerNotifications(ctx context.Context) (<-chan string, <-chan error) {
	dataCh, errCh := b.transportBus.Subscribe(ctx, MatchmakeWorkerNotifyReceiver)
	return forwardDecoded(ctx, dataCh, func(data []byte) (string, bool) {
		var n workerNotification
		if err := json.Unmarshal(data, &n); err != nil {
			b.log.Warn("received invalid worker notification", "error", err)
			return "", false
		}
		return n.UserID, true
	}), errCh
}

func (b *TransportBus) PublishMatchEvent(ctx context.Context, e MatchEvent) error {
	return b.transportBus.Publish(ctx, MatchEventPublisher, e)
}

func (b *TransportBus) ListenForMatchEvents(ctx context.Context) (<-chan MatchEvent, <-chan error) {
	dataCh, errCh := b.transportBus.Subscribe(ctx, MatchEventReceiver)
	return forwardDecoded(ctx, dataCh, func(data []byte) (MatchEvent, bool) {
		var e MatchEvent
		if err := json.Unmarshal(data, &e); err != nil {
			b.log.Warn("received invalid match event", "error", err)
			return e, false
		}
		return e, true
	}), errCh
}

func forwardDecoded[T any](ctx context.Context, dataCh <-chan []byte, decode func([]byte) (T, bool)) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-dataCh:
				if !ok {
					return
				}
				v, ok := decode(data)
				if !ok {
					continue
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
