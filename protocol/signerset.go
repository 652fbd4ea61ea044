package protocol

// SignerSet is a versioned, threshold-validated set of public keys
// authorized to attest bundles (§4.3). Keys and threshold never change after
// creation; rotation mints a new record, and rotating in a new active set
// only clears Active on the older ones.
type SignerSet struct {
	SignerSetID   uint64
	Threshold     int
	Pubkeys       [][32]byte
	Active        bool
	CreatedAtSlot uint64
}

// validateSignerSet enforces §4.3: threshold must be in [1, len(pubkeys)]
// and pubkeys must be distinct.
func validateSignerSet(threshold int, pubkeys [][32]byte) error {
	if threshold == 0 || threshold > len(pubkeys) {
		return protoerrf(ErrInvalidThreshold, "threshold %d invalid for %d pubkeys", threshold, len(pubkeys))
	}
	seen := make(map[[32]byte]struct{}, len(pubkeys))
	for _, pk := range pubkeys {
		if _, dup := seen[pk]; dup {
			return protoerr(ErrInvalidParameter, "duplicate pubkey in signer set")
		}
		seen[pk] = struct{}{}
	}
	return nil
}

// NewSignerSet validates and constructs a SignerSet record. The caller
// supplies signerSetID (taken from config.next_signer_set_id and then
// incremented by the caller).
func NewSignerSet(signerSetID uint64, threshold int, pubkeys [][32]byte, active bool, createdAtSlot uint64) (*SignerSet, error) {
	if err := validateSignerSet(threshold, pubkeys); err != nil {
		return nil, err
	}
	cp := make([][32]byte, len(pubkeys))
	copy(cp, pubkeys)
	return &SignerSet{
		SignerSetID:   signerSetID,
		Threshold:     threshold,
		Pubkeys:       cp,
		Active:        active,
		CreatedAtSlot: createdAtSlot,
	}, nil
}

// HasPubkey reports whether pk is a member of the set.
func (s *SignerSet) HasPubkey(pk [32]byte) bool {
	for _, p := range s.Pubkeys {
		if p == pk {
			return true
		}
	}
	return false
}
