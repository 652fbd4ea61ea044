package protocol

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/oracleprotocol/publisher/protocol/store"
)

// These are on-disk JSON representations of the record types in state.go.
// JSON is used here (rather than a bespoke binary layout) because these
// records are never hashed or signed — only Bundle bytes are (§4.2); the
// store's internal encoding is free to be whatever is convenient.

type configDTO struct {
	Initialized             bool   `json:"initialized"`
	Authority               string `json:"authority"`
	Paused                  bool   `json:"paused"`
	NextMarketNonce         uint64 `json:"next_market_nonce"`
	NextSignerSetID         uint64 `json:"next_signer_set_id"`
	DefaultRevealDelaySlots uint64 `json:"default_reveal_delay_slots"`
}

func getConfig(tx *bolt.Tx) (*ProtocolConfig, bool, error) {
	v := tx.Bucket(store.BucketProtocolConfig).Get(ProtocolAddress()[:])
	if v == nil {
		return nil, false, nil
	}
	var dto configDTO
	if err := json.Unmarshal(v, &dto); err != nil {
		return nil, false, fmt.Errorf("decode protocol config: %w", err)
	}
	return &ProtocolConfig{
		Initialized:             dto.Initialized,
		Authority:               dto.Authority,
		Paused:                  dto.Paused,
		NextMarketNonce:         dto.NextMarketNonce,
		NextSignerSetID:         dto.NextSignerSetID,
		DefaultRevealDelaySlots: dto.DefaultRevealDelaySlots,
	}, true, nil
}

func putConfig(tx *bolt.Tx, cfg *ProtocolConfig) error {
	dto := configDTO{
		Initialized:             cfg.Initialized,
		Authority:               cfg.Authority,
		Paused:                  cfg.Paused,
		NextMarketNonce:         cfg.NextMarketNonce,
		NextSignerSetID:         cfg.NextSignerSetID,
		DefaultRevealDelaySlots: cfg.DefaultRevealDelaySlots,
	}
	b, err := json.Marshal(dto)
	if err != nil {
		return err
	}
	return tx.Bucket(store.BucketProtocolConfig).Put(ProtocolAddress()[:], b)
}

type marketDTO struct {
	MarketID       string   `json:"market_id"`
	Domain         string   `json:"domain"`
	Active         bool     `json:"active"`
	Outcomes       []string `json:"outcomes"`
	CurrentEpochID uint64   `json:"current_epoch_id"`
	LastSequence   uint64   `json:"last_sequence"`
}

func getMarket(tx *bolt.Tx, addr Address) (*Market, bool, error) {
	v := tx.Bucket(store.BucketMarkets).Get(addr[:])
	if v == nil {
		return nil, false, nil
	}
	var dto marketDTO
	if err := json.Unmarshal(v, &dto); err != nil {
		return nil, false, fmt.Errorf("decode market: %w", err)
	}
	return &Market{
		MarketID:       dto.MarketID,
		Domain:         Domain(dto.Domain),
		Active:         dto.Active,
		Outcomes:       dto.Outcomes,
		CurrentEpochID: dto.CurrentEpochID,
		LastSequence:   dto.LastSequence,
	}, true, nil
}

func putMarket(tx *bolt.Tx, addr Address, m *Market) error {
	dto := marketDTO{
		MarketID:       m.MarketID,
		Domain:         string(m.Domain),
		Active:         m.Active,
		Outcomes:       m.Outcomes,
		CurrentEpochID: m.CurrentEpochID,
		LastSequence:   m.LastSequence,
	}
	b, err := json.Marshal(dto)
	if err != nil {
		return err
	}
	return tx.Bucket(store.BucketMarkets).Put(addr[:], b)
}

type epochDTO struct {
	Market          string `json:"market"`
	EpochID         uint64 `json:"epoch_id"`
	Open            bool   `json:"open"`
	OpenedAtSlot    uint64 `json:"opened_at_slot"`
	FinalizedAtSlot uint64 `json:"finalized_at_slot"`
	PublishSequence uint64 `json:"publish_sequence"`
}

func getEpoch(tx *bolt.Tx, addr Address) (*Epoch, bool, error) {
	v := tx.Bucket(store.BucketEpochs).Get(addr[:])
	if v == nil {
		return nil, false, nil
	}
	var dto epochDTO
	if err := json.Unmarshal(v, &dto); err != nil {
		return nil, false, fmt.Errorf("decode epoch: %w", err)
	}
	return &Epoch{
		Market:          dto.Market,
		EpochID:         dto.EpochID,
		Open:            dto.Open,
		OpenedAtSlot:    dto.OpenedAtSlot,
		FinalizedAtSlot: dto.FinalizedAtSlot,
		PublishSequence: dto.PublishSequence,
	}, true, nil
}

func putEpoch(tx *bolt.Tx, addr Address, e *Epoch) error {
	dto := epochDTO{
		Market:          e.Market,
		EpochID:         e.EpochID,
		Open:            e.Open,
		OpenedAtSlot:    e.OpenedAtSlot,
		FinalizedAtSlot: e.FinalizedAtSlot,
		PublishSequence: e.PublishSequence,
	}
	b, err := json.Marshal(dto)
	if err != nil {
		return err
	}
	return tx.Bucket(store.BucketEpochs).Put(addr[:], b)
}

type commitDTO struct {
	Market          string `json:"market"`
	Epoch           uint64 `json:"epoch"`
	Committer       string `json:"committer"`
	CommitHash      string `json:"commit_hash"`
	RevealAfterSlot uint64 `json:"reveal_after_slot"`
	Revealed        bool   `json:"revealed"`
}

func getCommit(tx *bolt.Tx, addr Address) (*CommitRecord, bool, error) {
	v := tx.Bucket(store.BucketCommits).Get(addr[:])
	if v == nil {
		return nil, false, nil
	}
	var dto commitDTO
	if err := json.Unmarshal(v, &dto); err != nil {
		return nil, false, fmt.Errorf("decode commit: %w", err)
	}
	hashBytes, err := hex.DecodeString(dto.CommitHash)
	if err != nil || len(hashBytes) != 32 {
		return nil, false, fmt.Errorf("decode commit: bad commit_hash")
	}
	var ch [32]byte
	copy(ch[:], hashBytes)
	return &CommitRecord{
		Market:          dto.Market,
		Epoch:           dto.Epoch,
		Committer:       dto.Committer,
		CommitHash:      ch,
		RevealAfterSlot: dto.RevealAfterSlot,
		Revealed:        dto.Revealed,
	}, true, nil
}

func putCommit(tx *bolt.Tx, addr Address, c *CommitRecord) error {
	dto := commitDTO{
		Market:          c.Market,
		Epoch:           c.Epoch,
		Committer:       c.Committer,
		CommitHash:      hex.EncodeToString(c.CommitHash[:]),
		RevealAfterSlot: c.RevealAfterSlot,
		Revealed:        c.Revealed,
	}
	b, err := json.Marshal(dto)
	if err != nil {
		return err
	}
	return tx.Bucket(store.BucketCommits).Put(addr[:], b)
}

type signerSetDTO struct {
	SignerSetID   uint64   `json:"signer_set_id"`
	Threshold     int      `json:"threshold"`
	Pubkeys       []string `json:"pubkeys"`
	Active        bool     `json:"active"`
	CreatedAtSlot uint64   `json:"created_at_slot"`
}

func getSignerSet(tx *bolt.Tx, addr Address) (*SignerSet, bool, error) {
	v := tx.Bucket(store.BucketSignerSets).Get(addr[:])
	if v == nil {
		return nil, false, nil
	}
	var dto signerSetDTO
	if err := json.Unmarshal(v, &dto); err != nil {
		return nil, false, fmt.Errorf("decode signer set: %w", err)
	}
	pubkeys := make([][32]byte, len(dto.Pubkeys))
	for i, hx := range dto.Pubkeys {
		raw, err := hex.DecodeString(hx)
		if err != nil || len(raw) != 32 {
			return nil, false, fmt.Errorf("decode signer set: bad pubkey")
		}
		copy(pubkeys[i][:], raw)
	}
	return &SignerSet{
		SignerSetID:   dto.SignerSetID,
		Threshold:     dto.Threshold,
		Pubkeys:       pubkeys,
		Active:        dto.Active,
		CreatedAtSlot: dto.CreatedAtSlot,
	}, true, nil
}

func putSignerSet(tx *bolt.Tx, addr Address, s *SignerSet) error {
	pubkeys := make([]string, len(s.Pubkeys))
	for i, pk := range s.Pubkeys {
		pubkeys[i] = hex.EncodeToString(pk[:])
	}
	dto := signerSetDTO{
		SignerSetID:   s.SignerSetID,
		Threshold:     s.Threshold,
		Pubkeys:       pubkeys,
		Active:        s.Active,
		CreatedAtSlot: s.CreatedAtSlot,
	}
	b, err := json.Marshal(dto)
	if err != nil {
		return err
	}
	return tx.Bucket(store.BucketSignerSets).Put(addr[:], b)
}

type auditDTO struct {
	Market             string `json:"market"`
	Epoch              uint64 `json:"epoch"`
	LastBundleHash     string `json:"last_bundle_hash"`
	LastSequence       uint64 `json:"last_sequence"`
	LastRevealedAtSlot uint64 `json:"last_revealed_at_slot"`
}

func getAudit(tx *bolt.Tx, addr Address) (*AuditLog, bool, error) {
	v := tx.Bucket(store.BucketAuditLogs).Get(addr[:])
	if v == nil {
		return nil, false, nil
	}
	var dto auditDTO
	if err := json.Unmarshal(v, &dto); err != nil {
		return nil, false, fmt.Errorf("decode audit log: %w", err)
	}
	raw, err := hex.DecodeString(dto.LastBundleHash)
	if err != nil || len(raw) != 32 {
		return nil, false, fmt.Errorf("decode audit log: bad last_bundle_hash")
	}
	var bh [32]byte
	copy(bh[:], raw)
	return &AuditLog{
		Market:             dto.Market,
		Epoch:              dto.Epoch,
		LastBundleHash:     bh,
		LastSequence:       dto.LastSequence,
		LastRevealedAtSlot: dto.LastRevealedAtSlot,
	}, true, nil
}

func putAudit(tx *bolt.Tx, addr Address, a *AuditLog) error {
	dto := auditDTO{
		Market:             a.Market,
		Epoch:              a.Epoch,
		LastBundleHash:     hex.EncodeToString(a.LastBundleHash[:]),
		LastSequence:       a.LastSequence,
		LastRevealedAtSlot: a.LastRevealedAtSlot,
	}
	b, err := json.Marshal(dto)
	if err != nil {
		return err
	}
	return tx.Bucket(store.BucketAuditLogs).Put(addr[:], b)
}
