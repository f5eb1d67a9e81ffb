package transport

import (
	"context"
	"encoding/json"
	"sync"
)

// LocalBroadcaster fans messages out to in-process subscribers. Used with the memory queue
// backend where no redis is available.
type LocalBroadcaster struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{subs: make(map[chan []byte]struct{})}
}

func (l *LocalBroadcaster) Publish(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs {
		select {
		case ch <- data:
		default:
			// slow subscriber, drop
		}
	}
	return nil
}

func (l *LocalBroadcaster) Subscribe(ctx context.Context) (<-chan []byte, <-chan error) {
	ch := make(chan []byte, 16)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()
	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.subs, ch)
		l.mu.Unlock()
	}()
	return ch, make(chan error)
}
