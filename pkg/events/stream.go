package events

import "context"

// Stream is the bounded event channel for one job. Emission blocks when the
// consumer stalls, which is the pipeline's backpressure mechanism: lead
// workers block on Emit rather than buffering without bound.
type Stream struct {
	ch chan Event
}

// NewStream creates a stream with the given channel capacity.
// Capacity 0 degenerates to a rendezvous channel.
func NewStream(capacity int) *Stream {
	if capacity < 0 {
		capacity = 0
	}
	return &Stream{ch: make(chan Event, capacity)}
}

// Emit delivers an event to the stream, blocking while the channel is full.
// Returns the context error if the caller is cancelled before delivery.
func (s *Stream) Emit(ctx context.Context, ev Event) error {
	select {
	case s.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the receive side of the stream.
func (s *Stream) Events() <-chan Event { return s.ch }

// Close closes the stream. Only the producer (the orchestrator) may call it,
// exactly once, after the final pipeline_end event.
func (s *Stream) Close() { close(s.ch) }
