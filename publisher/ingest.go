package publisher

import (
	"context"
	"fmt"
)

// RawEvent is the shape emitted by the raw-event source external
// collaborator (§6): the publisher does not implement the source itself
// (out of scope, §SPEC_FULL 5), only the queue and normalizer that consume
// it.
type RawEvent struct {
	SourceKind   string
	MarketID     string
	ObservedAtMs uint64
	Payload      []byte
	DedupeKey    string
}

// NormalizedEvent is what a Normalizer turns a RawEvent into: one i.i.d.
// sample draw from the (out-of-scope) model ensemble, naming which outcome
// it landed on. The bundle builder aggregates a tick's NormalizedEvents per
// market into per-outcome trial/success counts for the Wilson interval.
type NormalizedEvent struct {
	MarketID        string
	ObservedAtMs    uint64
	RealizedOutcome string
	QualityFlags    uint32
}

// Normalizer maps a RawEvent to a NormalizedEvent, per §6's external
// collaborator contract: "fails with Invalid(reason) for missing market id".
type Normalizer func(RawEvent) (NormalizedEvent, error)

// Normalize is the default normalizer: it does no feature engineering of
// its own (that belongs to the quantitative model library, out of scope per
// §SPEC_FULL 5) but enforces the one contractual precondition every
// downstream stage depends on — a non-empty market_id and realized outcome —
// reading the payload as the bare outcome_id string it's expected to carry.
func Normalize(ev RawEvent) (NormalizedEvent, error) {
	if ev.MarketID == "" {
		return NormalizedEvent{}, fmt.Errorf("invalid: missing market_id")
	}
	outcome := string(ev.Payload)
	if outcome == "" {
		return NormalizedEvent{}, fmt.Errorf("invalid: missing realized outcome for market %q", ev.MarketID)
	}
	return NormalizedEvent{
		MarketID:        ev.MarketID,
		ObservedAtMs:    ev.ObservedAtMs,
		RealizedOutcome: outcome,
		QualityFlags:    0,
	}, nil
}

// IngestQueue is the bounded multi-producer/single-consumer queue of §5:
// "a bounded multi-producer/single-consumer queue (default buffer 1024);
// backpressure is provided by the bounded queue (producers block on send
// when full)".
type IngestQueue struct {
	ch chan RawEvent
}

// DefaultIngestQueueSize is the §5 default buffer size.
const DefaultIngestQueueSize = 1024

func NewIngestQueue(size int) *IngestQueue {
	if size <= 0 {
		size = DefaultIngestQueueSize
	}
	return &IngestQueue{ch: make(chan RawEvent, size)}
}

// Send enqueues ev, blocking if the queue is full (the queue's backpressure
// mechanism) until ctx is done.
func (q *IngestQueue) Send(ctx context.Context, ev RawEvent) error {
	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain pulls up to max events currently buffered, without blocking for
// more once the queue runs dry. This bounds per-tick work to
// engine.max_markets_per_tick, as §5 requires of the consumer.
func (q *IngestQueue) Drain(max int) []RawEvent {
	out := make([]RawEvent, 0, max)
	for len(out) < max {
		select {
		case ev := <-q.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
	return out
}
