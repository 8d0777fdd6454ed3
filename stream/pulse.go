package stream

import (
	"context"
	"encoding/json"
	"sync"

	pulsestream "goa.design/pulse/streaming"
	"goa.design/pulse/streaming/options"
)

// PulseSink publishes events onto a Pulse stream named after the execution
// id, so a cluster of workers sharing a Redis-backed Pulse client can fan
// events out to external subscribers (SSE/WebSocket bridges). Grounded on
// runtime/toolregistry/executor's use of goa.design/pulse/streaming for
// tool-result delivery.
type PulseSink struct {
	client *pulsestream.Client

	mu      sync.Mutex
	streams map[string]*pulsestream.Stream
}

// NewPulseSink constructs a PulseSink backed by an already-configured Pulse
// streaming client (itself backed by a Redis connection).
func NewPulseSink(client *pulsestream.Client) *PulseSink {
	return &PulseSink{client: client, streams: make(map[string]*pulsestream.Stream)}
}

func (s *PulseSink) streamFor(ctx context.Context, executionID string) (*pulsestream.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.streams[executionID]; ok {
		return st, nil
	}
	st, err := s.client.NewStream(ctx, executionID)
	if err != nil {
		return nil, err
	}
	s.streams[executionID] = st
	return st, nil
}

// Publish marshals event to JSON and adds it to the execution's Pulse
// stream.
func (s *PulseSink) Publish(ctx context.Context, event Event) error {
	st, err := s.streamFor(ctx, event.ExecutionID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = st.Add(ctx, string(event.Kind), payload)
	return err
}

// Subscribe opens a Pulse reader sink starting at the oldest retained event
// for executionID and forwards decoded events onto a channel.
func (s *PulseSink) Subscribe(ctx context.Context, executionID string) (<-chan Event, func()) {
	out := make(chan Event, 64)
	st, err := s.streamFor(ctx, executionID)
	if err != nil {
		close(out)
		return out, func() {}
	}

	sink, err := st.NewSink(ctx, "flowengine-"+executionID, options.WithSinkStartAtOldest())
	if err != nil {
		close(out)
		return out, func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case evs, ok := <-sink.C:
				if !ok {
					return
				}
				for _, ev := range evs {
					var decoded Event
					if json.Unmarshal(ev.Payload, &decoded) == nil {
						select {
						case out <- decoded:
						case <-done:
							return
						}
					}
					_ = sink.Ack(ctx, ev)
				}
			}
		}
	}()

	unsub := func() {
		close(done)
		_ = sink.Close()
	}
	return out, unsub
}

// Close is a no-op. Each subscription's reader is closed by its unsubscribe
// function; streams opened by the sink stay cached for its lifetime.
func (s *PulseSink) Close(context.Context) error { return nil }
