package cryptosig

// SignerVerifier is the narrow crypto interface the reveal path depends on:
// given a message and a candidate set of (pubkey, signature) pairs, decide
// whether at least threshold of them are valid and distinct (§4.5 step 6).
// Narrowed from the node's CryptoProvider interface, which also carried
// post-quantum verification methods this protocol has no use for.
type SignerVerifier interface {
	VerifyThreshold(message [32]byte, pubkeys [][32]byte, sigs []SigCheck, threshold int) bool
}

// SigCheck is one candidate (pubkey, signature) pair offered as evidence
// toward a threshold signature.
type SigCheck struct {
	Pubkey    [32]byte
	Signature [64]byte
}
