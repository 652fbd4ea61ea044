package protocol

// Event is the common shape every mutation emits: the address of the
// mutated record, relevant ids, and the slot or hash observed (§4.8).
type Event interface {
	eventName() string
}

type ProtocolInitialized struct {
	Address   Address
	Authority string
	Slot      uint64
}

func (ProtocolInitialized) eventName() string { return "ProtocolInitialized" }

type MarketCreated struct {
	Address  Address
	MarketID string
	Domain   Domain
	Slot     uint64
}

func (MarketCreated) eventName() string { return "MarketCreated" }

type MarketUpdated struct {
	Address  Address
	MarketID string
	Active   bool
	Slot     uint64
}

func (MarketUpdated) eventName() string { return "MarketUpdated" }

type EpochOpened struct {
	Address Address
	Market  string
	EpochID uint64
	Slot    uint64
}

func (EpochOpened) eventName() string { return "EpochOpened" }

type PredictionCommitted struct {
	Address    Address
	Market     string
	EpochID    uint64
	Committer  string
	CommitHash [32]byte
	Slot       uint64
}

func (PredictionCommitted) eventName() string { return "PredictionCommitted" }

type PredictionRevealed struct {
	Address     Address
	Market      string
	EpochID     uint64
	Committer   string
	Sequence    uint64
	BundleHash  [32]byte
	SignerSetID uint64
	Slot        uint64
}

func (PredictionRevealed) eventName() string { return "PredictionRevealed" }

type EpochFinalized struct {
	Address Address
	Market  string
	EpochID uint64
	Slot    uint64
}

func (EpochFinalized) eventName() string { return "EpochFinalized" }

type SignerSetRotated struct {
	Address     Address
	SignerSetID uint64
	Threshold   int
	Active      bool
	Slot        uint64
}

func (SignerSetRotated) eventName() string { return "SignerSetRotated" }

type PausedChanged struct {
	Address Address
	Paused  bool
	Slot    uint64
}

func (PausedChanged) eventName() string { return "PausedChanged" }
