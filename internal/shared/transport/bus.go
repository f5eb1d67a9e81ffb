package transport

import (
	"context"
	"fmt"
)

// Bus groups the broadcast channels a service uses under a name each.
type Bus struct {
	broadcastConsumers map[BroadcastConsumerType]BroadcastConsumer
	broadcastProducers map[BroadcastProducerType]BroadcastProducer
}

func genericAdd[K comparable, V any](m *map[K]V, key K, value V) {
	if *m == nil {
		*m = make(map[K]V)
	}
	(*m)[key] = value
}

func (m *Bus) AddBroadcastConsumer(t BroadcastConsumerType, consumer BroadcastConsumer) {
	genericAdd(&m.broadcastConsumers, t, consumer)
}

func (m *Bus) AddBroadcastProducer(t BroadcastProducerType, producer BroadcastProducer) {
	genericAdd(&m.broadcastProducers, t, producer)
}

func (m *Bus) Publish(ctx context.Context, producerType BroadcastProducerType, msg any) error {
	p, ok := m.broadcastProducers[producerType]
	if !ok {
		return fmt.Errorf("no broadcast producer registered for %s", producerType)
	}
	return p.Publish(ctx, msg)
}

func (m *Bus) Subscribe(ctx context.Context, consumerType BroadcastConsumerType) (<-chan []byte, <-chan error) {
	c, ok := m.broadcastConsumers[consumerType]
	if !ok {
		errCh := make(chan error, 1)
		errCh <- fmt.Errorf("no broadcast consumer registered for %s", consumerType)
		return nil, errCh
	}
	return c.Subscribe(ctx)
}
