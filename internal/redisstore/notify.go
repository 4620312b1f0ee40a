package redisstore

import (
	"context"
	"fmt"
)

// Changes subscribes to the track's changes channel. Signals are coalesced the
// same way the file store does it: at most one pending signal is buffered.
// The channel is closed when ctx is done.
func (s *Store) Changes(ctx context.Context) (<-chan struct{}, error) {
	pubsub := s.rdb.Subscribe(ctx, ChangesChannel(s.track))

	// Wait for the subscription confirmation so no publish after return is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
