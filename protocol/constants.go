package protocol

// Domain constants. Changing any of these without a schema bump breaks
// wire and hash compatibility (§6).
const (
	SchemaVersion           uint16 = 1
	ProbScale               uint64 = 1_000_000_000
	MaxOutcomes             int    = 16
	MaxMarketIDLen          int    = 64
	MaxOutcomeIDLen         int    = 64
	DefaultRevealDelaySlots uint64 = 10
)
