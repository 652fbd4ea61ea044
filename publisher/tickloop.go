package publisher

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"

	"github.com/oracleprotocol/publisher/protocol"
)

// pendingReveal is a bundle that has been committed and is waiting out its
// reveal delay.
type pendingReveal struct {
	bundle       *protocol.Bundle
	bundleBytes  []byte
	salt         [32]byte
	epochID      uint64
	revealAtSlot uint64
}

// TickLoop is the tick-driven scheduler of §4.7/§5: single market per loop,
// draining the ingest queue, building and committing a bundle, then
// revealing it once its delay has elapsed. Grounded on node/sync.go's
// engine-struct-with-config shape: a single struct wrapping its config and
// collaborators, exposing one long-running method instead of a bare
// goroutine function.
type TickLoop struct {
	cfg           EngineConfig
	engine        *protocol.Engine
	queue         *IngestQueue
	normalize     Normalizer
	signer        SignerDevice
	replay        *ReplayState
	logger        log.Logger
	marketID      string
	committer     string
	signerSetID   uint64
	confidenceBps uint32

	mu      sync.Mutex
	slot    uint64
	pending *pendingReveal
}

func NewTickLoop(
	cfg EngineConfig,
	engine *protocol.Engine,
	queue *IngestQueue,
	normalize Normalizer,
	signer SignerDevice,
	replay *ReplayState,
	logger log.Logger,
	marketID, committer string,
	signerSetID uint64,
	confidenceBps uint32,
) *TickLoop {
	if normalize == nil {
		normalize = Normalize
	}
	return &TickLoop{
		cfg: cfg, engine: engine, queue: queue, normalize: normalize,
		signer: signer, replay: replay, logger: logger,
		marketID: marketID, committer: committer,
		signerSetID: signerSetID, confidenceBps: confidenceBps,
	}
}

// Run drives the ticker until ctx is canceled, returning nil on a clean
// shutdown. A terminal (non-transient) tick error stops the loop; a
// transient one is logged and the loop continues to the next tick.
func (t *TickLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.mu.Lock()
			t.slot++
			t.mu.Unlock()
			if err := t.Tick(ctx); err != nil {
				if IsTransient(err) {
					t.logger.Error("tick failed, retrying next tick", "err", err)
					continue
				}
				return err
			}
		}
	}
}

// Tick runs one iteration: reveal anything whose delay has elapsed, then
// drain up to max_markets_per_tick ingest events and commit a new bundle if
// there was enough data and no reveal already in flight.
func (t *TickLoop) Tick(ctx context.Context) error {
	if err := t.revealReady(ctx); err != nil {
		return err
	}
	return t.commitNext(ctx)
}

func (t *TickLoop) commitNext(ctx context.Context) error {
	t.mu.Lock()
	busy := t.pending != nil
	t.mu.Unlock()
	if busy {
		return nil
	}

	raw := t.queue.Drain(t.cfg.MaxMarketsPerTick)
	if len(raw) == 0 {
		return nil
	}

	samples := map[string]*OutcomeSample{}
	var trials uint64
	var observedAtMs uint64
	for _, ev := range raw {
		norm, err := t.normalize(ev)
		if err != nil {
			t.logger.Error("dropping unnormalizable event", "err", err)
			continue
		}
		if norm.MarketID != t.marketID {
			continue
		}
		trials++
		s, ok := samples[norm.RealizedOutcome]
		if !ok {
			s = &OutcomeSample{OutcomeID: norm.RealizedOutcome}
			samples[norm.RealizedOutcome] = s
		}
		s.Successes++
		observedAtMs = norm.ObservedAtMs
	}
	if trials == 0 {
		return nil
	}
	sampleList := make([]OutcomeSample, 0, len(samples))
	for _, s := range samples {
		s.Trials = trials
		sampleList = append(sampleList, *s)
	}

	m, err := t.engine.Market(t.marketID)
	if err != nil {
		return Transientf("load market %q: %v", t.marketID, err)
	}
	epochID := m.CurrentEpochID

	tickIndex := t.replay.Next(t.marketID)
	reveal, err := BuildMarketReveal(t.marketID, epochID, tickIndex, tickIndex, observedAtMs, sampleList, t.confidenceBps)
	if err != nil {
		return fmt.Errorf("build market reveal: %w", err)
	}

	bundle := BuildBundle(t.cfg.SchemaVersion, t.signerSetID, epochID, uint64(time.Now().UnixMilli()), reveal)
	bundleBytes := protocol.EncodeBundle(bundle)
	ch := protocol.ContentHash(bundleBytes)
	salt, err := randomSalt()
	if err != nil {
		return fmt.Errorf("draw salt: %w", err)
	}
	commitHash := protocol.CommitHash(ch, salt)

	t.mu.Lock()
	slot := t.slot
	t.mu.Unlock()

	if err := t.engine.CommitPrediction(t.committer, t.marketID, epochID, commitHash, 0, slot); err != nil {
		return fmt.Errorf("commit_prediction: %w", err)
	}

	cfg, err := t.engine.Config()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	t.mu.Lock()
	t.pending = &pendingReveal{
		bundle: bundle, bundleBytes: bundleBytes, salt: salt,
		epochID: epochID, revealAtSlot: slot + cfg.DefaultRevealDelaySlots,
	}
	t.mu.Unlock()
	return nil
}

// revealReady submits the pending reveal once its delay has elapsed. The
// signature is computed over a speculative sequence number — current
// publish_sequence + 1 — since the authoritative sequence is only assigned
// inside reveal_prediction itself (§4.5 step 5). If another reveal landed
// first and consumed that sequence, verification fails with
// SignatureVerificationFailed; this is treated as a benign race and retried
// next tick with a freshly read sequence, not surfaced as a fatal error.
func (t *TickLoop) revealReady(ctx context.Context) error {
	t.mu.Lock()
	p := t.pending
	slot := t.slot
	t.mu.Unlock()
	if p == nil || slot < p.revealAtSlot {
		return nil
	}

	ep, err := t.engine.Epoch(t.marketID, p.epochID)
	if err != nil {
		return Transientf("load epoch: %v", err)
	}
	speculativeSeq := ep.PublishSequence + 1
	ch := protocol.ContentHash(p.bundleBytes)
	msg := protocol.SigMessage(ch, t.signerSetID, p.epochID, speculativeSeq)

	sigs, err := t.signer.Sign(ctx, msg)
	if err != nil {
		return fmt.Errorf("signer device: %w", err)
	}

	seq, err := t.engine.RevealPrediction(protocol.RevealRequest{
		Committer: t.committer, MarketID: t.marketID, EpochID: p.epochID,
		Bundle: p.bundle, BundleBytes: p.bundleBytes, Salt: p.salt,
		Sigs: sigs, Slot: slot,
	})
	if err != nil {
		if protocol.CodeOf(err) == protocol.ErrSignatureVerificationFailed {
			t.logger.Info("reveal lost race on sequence, retrying", "market", t.marketID)
			return nil
		}
		return err
	}

	t.logger.Info("revealed bundle", "market", t.marketID, "sequence", seq)
	t.mu.Lock()
	t.pending = nil
	t.mu.Unlock()
	return nil
}

func randomSalt() ([32]byte, error) {
	var salt [32]byte
	_, err := rand.Read(salt[:])
	return salt, err
}
