package protocol

// Bundle is the transient publish value produced by the publisher and
// consumed by the on-chain verifier (§3). Only its hash is retained after a
// successful reveal.
type Bundle struct {
	SchemaVersion  uint16
	SignerSetID    uint64
	PublishEpochID uint64
	CreatedAtMs    uint64
	BundleID       [16]byte
	Markets        []MarketReveal
}

// MarketReveal is one market's contribution to a Bundle.
type MarketReveal struct {
	MarketID     string
	EpochID      uint64
	TickIndex    uint64
	Sequence     uint64
	ObservedAtMs uint64
	RiskScore    uint16
	QualityFlags uint32
	Outcomes     []OutcomePoint
}

// OutcomePoint is a single outcome's calibrated probability and confidence
// interval, scaled per §4.2.
type OutcomePoint struct {
	OutcomeID    string
	PScaled      uint64
	CILowScaled  uint64
	CIHighScaled uint64
	CILevelBps   uint32
	QualityFlags uint32
}
