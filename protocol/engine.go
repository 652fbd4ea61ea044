package protocol

import (
	"bytes"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/oracleprotocol/publisher/cryptosig"
	"github.com/oracleprotocol/publisher/protocol/store"
)

// Event is delivered for every state transition the engine commits. Sinks
// that need ordering guarantees can rely on events being emitted in the same
// order operations were applied, once per successful call.
type EventSink func(Event)

func noopSink(Event) {}

// Engine applies the ten protocol instructions (§4.5/§6) against a store.DB,
// grounded on node/sync.go's precondition-then-mutate method shape: each
// method loads what it needs inside a single db.Update transaction, runs its
// gate checks in order, and only mutates state once every gate has passed.
// A gate failure returns early and the whole transaction rolls back, so a
// rejected call never leaves partial state behind.
type Engine struct {
	db       *store.DB
	verifier cryptosig.SignerVerifier
	emit     EventSink
}

func NewEngine(db *store.DB, verifier cryptosig.SignerVerifier, emit EventSink) *Engine {
	if emit == nil {
		emit = noopSink
	}
	return &Engine{db: db, verifier: verifier, emit: emit}
}

func requireAuthority(cfg *ProtocolConfig, caller string) error {
	if caller != cfg.Authority {
		return protoerr(ErrUnauthorized, "caller is not the protocol authority")
	}
	return nil
}

func requireNotPaused(cfg *ProtocolConfig) error {
	if cfg.Paused {
		return protoerr(ErrPaused, "protocol is paused")
	}
	return nil
}

// InitProtocol sets up the singleton ProtocolConfig record. Fails with
// ErrAlreadyInitialized if called twice.
func (e *Engine) InitProtocol(authority string, defaultRevealDelaySlots uint64, slot uint64) error {
	if authority == "" {
		return protoerr(ErrInvalidParameter, "authority required")
	}
	if defaultRevealDelaySlots == 0 {
		defaultRevealDelaySlots = DefaultRevealDelaySlots
	}
	var evt Event
	err := e.db.Update(func(tx *bolt.Tx) error {
		existing, ok, err := getConfig(tx)
		if err != nil {
			return err
		}
		if ok && existing.Initialized {
			return protoerr(ErrAlreadyInitialized, "protocol already initialized")
		}
		cfg := &ProtocolConfig{
			Initialized:             true,
			Authority:               authority,
			Paused:                  false,
			NextMarketNonce:         0,
			NextSignerSetID:         1,
			DefaultRevealDelaySlots: defaultRevealDelaySlots,
		}
		if err := putConfig(tx, cfg); err != nil {
			return err
		}
		evt = ProtocolInitialized{Address: ProtocolAddress(), Authority: authority, Slot: slot}
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(evt)
	return nil
}

// CreateMarket registers a new market under the given domain with a fixed
// outcome set. The market starts inactive unless active is true.
func (e *Engine) CreateMarket(caller, marketID string, domain Domain, outcomes []string, active bool, slot uint64) error {
	if err := ValidateMarketID(marketID); err != nil {
		return err
	}
	if err := ValidateOutcomes(outcomes); err != nil {
		return err
	}
	if !validDomain(domain) {
		return protoerr(ErrInvalidParameter, "unknown domain")
	}

	var evt Event
	err := e.db.Update(func(tx *bolt.Tx) error {
		cfg, ok, err := getConfig(tx)
		if err != nil {
			return err
		}
		if !ok || !cfg.Initialized {
			return protoerr(ErrUnauthorized, "protocol not initialized")
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}
		if err := requireNotPaused(cfg); err != nil {
			return err
		}

		addr := MarketAddress(marketID)
		if _, ok, err := getMarket(tx, addr); err != nil {
			return err
		} else if ok {
			return protoerr(ErrMarketAlreadyExists, "market already exists")
		}

		m := &Market{
			MarketID:       marketID,
			Domain:         domain,
			Active:         active,
			Outcomes:       append([]string(nil), outcomes...),
			CurrentEpochID: 0,
			LastSequence:   0,
		}
		if err := putMarket(tx, addr, m); err != nil {
			return err
		}

		cfg.NextMarketNonce++
		if err := putConfig(tx, cfg); err != nil {
			return err
		}

		evt = MarketCreated{Address: addr, MarketID: marketID, Domain: domain, Slot: slot}
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(evt)
	return nil
}

func validDomain(d Domain) bool {
	switch d {
	case DomainSports, DomainPolitics, DomainMacro, DomainCrypto, DomainCustom:
		return true
	default:
		return false
	}
}

// UpdateMarket flips a market's active flag. Authority-gated, blocked while
// paused.
func (e *Engine) UpdateMarket(caller, marketID string, active bool, slot uint64) error {
	if err := ValidateMarketID(marketID); err != nil {
		return err
	}
	var evt Event
	err := e.db.Update(func(tx *bolt.Tx) error {
		cfg, ok, err := getConfig(tx)
		if err != nil {
			return err
		}
		if !ok || !cfg.Initialized {
			return protoerr(ErrUnauthorized, "protocol not initialized")
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}
		if err := requireNotPaused(cfg); err != nil {
			return err
		}

		addr := MarketAddress(marketID)
		m, ok, err := getMarket(tx, addr)
		if err != nil {
			return err
		}
		if !ok {
			return protoerrf(ErrInvalidMarketID, "unknown market %q", marketID)
		}
		m.Active = active
		if err := putMarket(tx, addr, m); err != nil {
			return err
		}
		evt = MarketUpdated{Address: addr, MarketID: marketID, Active: active, Slot: slot}
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(evt)
	return nil
}

// OpenEpoch opens the next sequential epoch for marketID. Fails with
// ErrEpochAlreadyOpen if the derived epoch address is already populated,
// which can only happen if CurrentEpochID wasn't bumped atomically with the
// prior open — a bug, not a user error, but handled the same way.
func (e *Engine) OpenEpoch(caller, marketID string, slot uint64) (uint64, error) {
	var evt Event
	var epochID uint64
	err := e.db.Update(func(tx *bolt.Tx) error {
		cfg, ok, err := getConfig(tx)
		if err != nil {
			return err
		}
		if !ok || !cfg.Initialized {
			return protoerr(ErrUnauthorized, "protocol not initialized")
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}
		if err := requireNotPaused(cfg); err != nil {
			return err
		}

		marketAddr := MarketAddress(marketID)
		m, ok, err := getMarket(tx, marketAddr)
		if err != nil {
			return err
		}
		if !ok {
			return protoerrf(ErrInvalidMarketID, "unknown market %q", marketID)
		}
		if !m.Active {
			return protoerr(ErrMarketNotActive, "market is not active")
		}

		epochID = m.CurrentEpochID + 1
		epochAddr := EpochAddress(marketAddr, epochID)
		if _, ok, err := getEpoch(tx, epochAddr); err != nil {
			return err
		} else if ok {
			return protoerr(ErrEpochAlreadyOpen, "epoch already open")
		}

		ep := &Epoch{
			Market:          marketID,
			EpochID:         epochID,
			Open:            true,
			OpenedAtSlot:    slot,
			FinalizedAtSlot: 0,
			PublishSequence: 0,
		}
		if err := putEpoch(tx, epochAddr, ep); err != nil {
			return err
		}

		m.CurrentEpochID = epochID
		if err := putMarket(tx, marketAddr, m); err != nil {
			return err
		}

		evt = EpochOpened{Address: epochAddr, Market: marketID, EpochID: epochID, Slot: slot}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.emit(evt)
	return epochID, nil
}

// CommitPrediction records a commitment hash for committer against an open
// epoch. revealDelaySlots overrides the protocol default when nonzero.
func (e *Engine) CommitPrediction(committer, marketID string, epochID uint64, commitHash [32]byte, revealDelaySlots uint64, slot uint64) error {
	var evt Event
	err := e.db.Update(func(tx *bolt.Tx) error {
		cfg, ok, err := getConfig(tx)
		if err != nil {
			return err
		}
		if !ok || !cfg.Initialized {
			return protoerr(ErrUnauthorized, "protocol not initialized")
		}
		if err := requireNotPaused(cfg); err != nil {
			return err
		}

		marketAddr := MarketAddress(marketID)
		m, ok, err := getMarket(tx, marketAddr)
		if err != nil {
			return err
		}
		if !ok {
			return protoerrf(ErrInvalidMarketID, "unknown market %q", marketID)
		}
		if !m.Active {
			return protoerr(ErrMarketNotActive, "market is not active")
		}

		epochAddr := EpochAddress(marketAddr, epochID)
		ep, ok, err := getEpoch(tx, epochAddr)
		if err != nil {
			return err
		}
		if !ok || !ep.Open {
			return protoerr(ErrEpochNotOpen, "epoch is not open")
		}

		commitAddr := CommitAddress(epochAddr, committer)
		if _, ok, err := getCommit(tx, commitAddr); err != nil {
			return err
		} else if ok {
			return protoerr(ErrCommitAlreadyExists, "commit already exists for this committer and epoch")
		}

		delay := revealDelaySlots
		if delay == 0 {
			delay = cfg.DefaultRevealDelaySlots
		}
		c := &CommitRecord{
			Market:          marketID,
			Epoch:           epochID,
			Committer:       committer,
			CommitHash:      commitHash,
			RevealAfterSlot: slot + delay,
			Revealed:        false,
		}
		if err := putCommit(tx, commitAddr, c); err != nil {
			return err
		}

		evt = PredictionCommitted{
			Address: commitAddr, Market: marketID, EpochID: epochID,
			Committer: committer, CommitHash: commitHash, Slot: slot,
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(evt)
	return nil
}

// RevealRequest carries everything reveal_prediction needs: the caller's
// view of the bundle (checked to match bundleBytes exactly), the raw bytes
// that were hashed and committed to, the commit salt, and the signature set
// attesting to the bundle under the signer set it names.
type RevealRequest struct {
	Committer   string
	MarketID    string
	EpochID     uint64
	Bundle      *Bundle
	BundleBytes []byte
	Salt        [32]byte
	Sigs        []cryptosig.SigCheck
	Slot        uint64
}

// RevealPrediction is the eight-step critical path (§4.5): verify the
// commitment opens correctly, verify the bundle content matches what was
// committed to and targets this market/epoch, bump the epoch's publish
// sequence, then verify the threshold signature over that exact sequence.
// The sequence bump happens before the signature check but inside the same
// transaction, so a signature failure rolls the bump back along with
// everything else — a forged-but-rejected reveal never advances the replay
// counter.
func (e *Engine) RevealPrediction(req RevealRequest) (uint64, error) {
	if req.Bundle == nil {
		return 0, protoerr(ErrBadBundle, "bundle required")
	}
	var evt Event
	var sequence uint64
	err := e.db.Update(func(tx *bolt.Tx) error {
		cfg, ok, err := getConfig(tx)
		if err != nil {
			return err
		}
		if !ok || !cfg.Initialized {
			return protoerr(ErrUnauthorized, "protocol not initialized")
		}
		if err := requireNotPaused(cfg); err != nil {
			return err
		}

		marketAddr := MarketAddress(req.MarketID)
		m, ok, err := getMarket(tx, marketAddr)
		if err != nil {
			return err
		}
		if !ok {
			return protoerrf(ErrInvalidMarketID, "unknown market %q", req.MarketID)
		}
		if !m.Active {
			return protoerr(ErrMarketNotActive, "market is not active")
		}

		epochAddr := EpochAddress(marketAddr, req.EpochID)
		ep, ok, err := getEpoch(tx, epochAddr)
		if err != nil {
			return err
		}
		if !ok || !ep.Open {
			return protoerr(ErrEpochNotOpen, "epoch is not open")
		}

		commitAddr := CommitAddress(epochAddr, req.Committer)
		c, ok, err := getCommit(tx, commitAddr)
		if err != nil {
			return err
		}
		if !ok {
			return protoerr(ErrCommitNotFound, "no commitment found")
		}
		if err := checkOneShotReveal(c); err != nil {
			return err
		}
		if err := checkRevealDelay(c, req.Slot); err != nil {
			return err
		}

		contentHash := ContentHash(req.BundleBytes)
		if CommitHash(contentHash, req.Salt) != c.CommitHash {
			return protoerr(ErrRevealMismatch, "revealed content does not match committed hash")
		}

		if !bytes.Equal(EncodeBundle(req.Bundle), req.BundleBytes) {
			return protoerr(ErrBundleHashMismatch, "bundle argument does not match bundle_bytes")
		}
		if !bundleTargets(req.Bundle, req.MarketID, req.EpochID) {
			return protoerr(ErrBundleHashMismatch, "bundle does not target this market and epoch")
		}

		sequence = bumpSequence(ep)
		if err := putEpoch(tx, epochAddr, ep); err != nil {
			return err
		}

		signerSetAddr := SignerSetAddress(req.Bundle.SignerSetID)
		ss, ok, err := getSignerSet(tx, signerSetAddr)
		if err != nil {
			return err
		}
		if !ok || !ss.Active {
			return protoerr(ErrSignerSetNotActive, "signer set is not active")
		}

		msg := SigMessage(contentHash, req.Bundle.SignerSetID, req.Bundle.PublishEpochID, sequence)
		if !e.verifier.VerifyThreshold(msg, ss.Pubkeys, req.Sigs, ss.Threshold) {
			return protoerr(ErrSignatureVerificationFailed, "threshold signature check failed")
		}

		if err := putAudit(tx, AuditAddress(epochAddr), &AuditLog{
			Market:             req.MarketID,
			Epoch:              req.EpochID,
			LastBundleHash:     contentHash,
			LastSequence:       sequence,
			LastRevealedAtSlot: req.Slot,
		}); err != nil {
			return err
		}

		c.Revealed = true
		if err := putCommit(tx, commitAddr, c); err != nil {
			return err
		}

		m.LastSequence = sequence
		if err := putMarket(tx, marketAddr, m); err != nil {
			return err
		}

		evt = PredictionRevealed{
			Address: commitAddr, Market: req.MarketID, EpochID: req.EpochID,
			Committer: req.Committer, Sequence: sequence, BundleHash: contentHash,
			SignerSetID: req.Bundle.SignerSetID, Slot: req.Slot,
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.emit(evt)
	return sequence, nil
}

func bundleTargets(b *Bundle, marketID string, epochID uint64) bool {
	for _, mr := range b.Markets {
		if mr.MarketID == marketID && mr.EpochID == epochID {
			return true
		}
	}
	return false
}

// FinalizeEpoch closes epochID for marketID, preventing further reveals.
func (e *Engine) FinalizeEpoch(caller, marketID string, epochID uint64, slot uint64) error {
	var evt Event
	err := e.db.Update(func(tx *bolt.Tx) error {
		cfg, ok, err := getConfig(tx)
		if err != nil {
			return err
		}
		if !ok || !cfg.Initialized {
			return protoerr(ErrUnauthorized, "protocol not initialized")
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}
		if err := requireNotPaused(cfg); err != nil {
			return err
		}

		marketAddr := MarketAddress(marketID)
		epochAddr := EpochAddress(marketAddr, epochID)
		ep, ok, err := getEpoch(tx, epochAddr)
		if err != nil {
			return err
		}
		if !ok || !ep.Open {
			return protoerr(ErrEpochNotOpen, "epoch is not open")
		}

		ep.Open = false
		ep.FinalizedAtSlot = slot
		if err := putEpoch(tx, epochAddr, ep); err != nil {
			return err
		}

		evt = EpochFinalized{Address: epochAddr, Market: marketID, EpochID: epochID, Slot: slot}
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(evt)
	return nil
}

// RotateSignerSet registers a new signer set and returns its assigned ID.
// When the new set is active, every previously active set is marked
// inactive, so only the newest active set authorizes reveals; older sets
// stay stored with their keys and threshold unchanged.
func (e *Engine) RotateSignerSet(caller string, threshold int, pubkeys [][32]byte, active bool, slot uint64) (uint64, error) {
	var evt Event
	var signerSetID uint64
	err := e.db.Update(func(tx *bolt.Tx) error {
		cfg, ok, err := getConfig(tx)
		if err != nil {
			return err
		}
		if !ok || !cfg.Initialized {
			return protoerr(ErrUnauthorized, "protocol not initialized")
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}
		if err := requireNotPaused(cfg); err != nil {
			return err
		}

		signerSetID = cfg.NextSignerSetID
		ss, err := NewSignerSet(signerSetID, threshold, pubkeys, active, slot)
		if err != nil {
			return err
		}
		if active {
			for id := uint64(1); id < signerSetID; id++ {
				prev, ok, err := getSignerSet(tx, SignerSetAddress(id))
				if err != nil {
					return err
				}
				if ok && prev.Active {
					prev.Active = false
					if err := putSignerSet(tx, SignerSetAddress(id), prev); err != nil {
						return err
					}
				}
			}
		}
		if err := putSignerSet(tx, SignerSetAddress(signerSetID), ss); err != nil {
			return err
		}

		cfg.NextSignerSetID++
		if err := putConfig(tx, cfg); err != nil {
			return err
		}

		evt = SignerSetRotated{Address: SignerSetAddress(signerSetID), SignerSetID: signerSetID, Threshold: threshold, Active: active, Slot: slot}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.emit(evt)
	return signerSetID, nil
}

// SetPaused toggles the protocol-wide pause flag. This is one of the two
// instructions (with UpgradeAdmin) that remain callable while paused, since
// pausing would otherwise be irreversible.
func (e *Engine) SetPaused(caller string, paused bool, slot uint64) error {
	var evt Event
	err := e.db.Update(func(tx *bolt.Tx) error {
		cfg, ok, err := getConfig(tx)
		if err != nil {
			return err
		}
		if !ok || !cfg.Initialized {
			return protoerr(ErrUnauthorized, "protocol not initialized")
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}
		cfg.Paused = paused
		if err := putConfig(tx, cfg); err != nil {
			return err
		}
		evt = PausedChanged{Address: ProtocolAddress(), Paused: paused, Slot: slot}
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(evt)
	return nil
}

// UpgradeAdmin transfers authority to a new address. Callable while paused.
func (e *Engine) UpgradeAdmin(caller, newAuthority string) error {
	if newAuthority == "" {
		return protoerr(ErrInvalidParameter, "new authority required")
	}
	return e.db.Update(func(tx *bolt.Tx) error {
		cfg, ok, err := getConfig(tx)
		if err != nil {
			return err
		}
		if !ok || !cfg.Initialized {
			return protoerr(ErrUnauthorized, "protocol not initialized")
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}
		cfg.Authority = newAuthority
		return putConfig(tx, cfg)
	})
}

// Config returns the current protocol configuration.
func (e *Engine) Config() (*ProtocolConfig, error) {
	var cfg *ProtocolConfig
	err := e.db.View(func(tx *bolt.Tx) error {
		c, ok, err := getConfig(tx)
		if err != nil {
			return err
		}
		if !ok {
			return protoerr(ErrUnauthorized, "protocol not initialized")
		}
		cfg = c
		return nil
	})
	return cfg, err
}

// Market returns a market record by ID.
func (e *Engine) Market(marketID string) (*Market, error) {
	var m *Market
	err := e.db.View(func(tx *bolt.Tx) error {
		rec, ok, err := getMarket(tx, MarketAddress(marketID))
		if err != nil {
			return err
		}
		if !ok {
			return protoerrf(ErrInvalidMarketID, "unknown market %q", marketID)
		}
		m = rec
		return nil
	})
	return m, err
}

// Epoch returns an epoch record by market and epoch ID.
func (e *Engine) Epoch(marketID string, epochID uint64) (*Epoch, error) {
	var ep *Epoch
	err := e.db.View(func(tx *bolt.Tx) error {
		rec, ok, err := getEpoch(tx, EpochAddress(MarketAddress(marketID), epochID))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unknown epoch %d for market %q", epochID, marketID)
		}
		ep = rec
		return nil
	})
	return ep, err
}

// AuditLogFor returns the audit record for a market/epoch, if one exists.
func (e *Engine) AuditLogFor(marketID string, epochID uint64) (*AuditLog, bool, error) {
	var a *AuditLog
	var ok bool
	err := e.db.View(func(tx *bolt.Tx) error {
		rec, found, err := getAudit(tx, AuditAddress(EpochAddress(MarketAddress(marketID), epochID)))
		if err != nil {
			return err
		}
		a, ok = rec, found
		return nil
	})
	return a, ok, err
}
