package publisher

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"cosmossdk.io/log"

	"github.com/oracleprotocol/publisher/cryptosig"
	"github.com/oracleprotocol/publisher/protocol"
	"github.com/oracleprotocol/publisher/protocol/store"
)

func setupTickLoopEngine(t *testing.T) (*protocol.Engine, ed25519.PrivateKey) {
	t.Helper()
	db, err := store.Open(t.TempDir(), "testnet")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	e := protocol.NewEngine(db, cryptosig.Ed25519Verifier{}, nil)
	if err := e.InitProtocol("A", 2, 0); err != nil {
		t.Fatalf("InitProtocol: %v", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var pubArr [32]byte
	copy(pubArr[:], pub)
	if _, err := e.RotateSignerSet("A", 1, [][32]byte{pubArr}, true, 0); err != nil {
		t.Fatalf("RotateSignerSet: %v", err)
	}
	if err := e.CreateMarket("A", "NBA_LAL_BOS", protocol.DomainSports, []string{"A", "B"}, true, 0); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	if _, err := e.OpenEpoch("A", "NBA_LAL_BOS", 0); err != nil {
		t.Fatalf("OpenEpoch: %v", err)
	}
	return e, priv
}

func newTestTickLoop(t *testing.T, e *protocol.Engine, priv ed25519.PrivateKey) (*TickLoop, *IngestQueue) {
	t.Helper()
	queue := NewIngestQueue(16)
	signer := NewLocalSignerDevice([]ed25519.PrivateKey{priv}, nil)
	loop := NewTickLoop(
		EngineConfig{TickMs: 50, MaxMarketsPerTick: 64, SchemaVersion: protocol.SchemaVersion},
		e, queue, Normalize, signer, NewReplayState(), log.NewNopLogger(),
		"NBA_LAL_BOS", "publisher-1", 1, 9500,
	)
	return loop, queue
}

func sendOutcome(t *testing.T, q *IngestQueue, outcome string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if err := q.Send(ctx, RawEvent{SourceKind: "test", MarketID: "NBA_LAL_BOS", ObservedAtMs: 1000, Payload: []byte(outcome)}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
}

func TestTickLoop_CommitsAfterDrain(t *testing.T) {
	e, priv := setupTickLoopEngine(t)
	loop, queue := newTestTickLoop(t, e, priv)

	sendOutcome(t, queue, "A", 6)
	sendOutcome(t, queue, "B", 4)

	ctx := context.Background()
	loop.slot = 1
	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	ep, err := e.Epoch("NBA_LAL_BOS", 1)
	if err != nil {
		t.Fatalf("Epoch: %v", err)
	}
	if ep.PublishSequence != 0 {
		t.Fatalf("publish_sequence = %d, want 0 (not yet revealed)", ep.PublishSequence)
	}
	if loop.pending == nil {
		t.Fatalf("expected a pending reveal after committing")
	}
}

func TestTickLoop_RevealsAfterDelay(t *testing.T) {
	e, priv := setupTickLoopEngine(t)
	loop, queue := newTestTickLoop(t, e, priv)

	sendOutcome(t, queue, "A", 6)
	sendOutcome(t, queue, "B", 4)

	ctx := context.Background()
	loop.slot = 1
	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("commit tick: %v", err)
	}

	// default_reveal_delay_slots is 2; advance past it.
	loop.slot = 3
	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("reveal tick: %v", err)
	}

	if loop.pending != nil {
		t.Fatalf("expected pending reveal to clear once revealed")
	}
	ep, err := e.Epoch("NBA_LAL_BOS", 1)
	if err != nil {
		t.Fatalf("Epoch: %v", err)
	}
	if ep.PublishSequence != 1 {
		t.Fatalf("publish_sequence = %d, want 1", ep.PublishSequence)
	}
}

func TestTickLoop_NoEventsSkipsCommit(t *testing.T) {
	e, priv := setupTickLoopEngine(t)
	loop, _ := newTestTickLoop(t, e, priv)

	loop.slot = 1
	if err := loop.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if loop.pending != nil {
		t.Fatalf("expected no pending reveal when the queue was empty")
	}
}

func TestTickLoop_SkipsCommitWhileRevealPending(t *testing.T) {
	e, priv := setupTickLoopEngine(t)
	loop, queue := newTestTickLoop(t, e, priv)

	sendOutcome(t, queue, "A", 3)
	ctx := context.Background()
	loop.slot = 1
	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	first := loop.pending

	sendOutcome(t, queue, "B", 3)
	loop.slot = 2
	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if loop.pending != first {
		t.Fatalf("expected the in-flight reveal to be left untouched while still pending")
	}
}

func TestTickLoop_RunStopsOnContextCancel(t *testing.T) {
	e, priv := setupTickLoopEngine(t)
	loop, _ := newTestTickLoop(t, e, priv)
	loop.cfg.TickMs = 5

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
}

func TestRandomSalt_Distinct(t *testing.T) {
	a, err := randomSalt()
	if err != nil {
		t.Fatalf("randomSalt: %v", err)
	}
	b, err := randomSalt()
	if err != nil {
		t.Fatalf("randomSalt: %v", err)
	}
	if a == b {
		t.Fatalf("expected two distinct random salts")
	}
}
