package cryptosig

import "crypto/ed25519"

// Ed25519Verifier is the in-program fallback path named in §4.5 step 6,
// used when the host environment does not provide a precompiled
// signature-verification instruction.
type Ed25519Verifier struct{}

// VerifyThreshold reports whether at least threshold of sigs verify against
// a distinct pubkey drawn from pubkeys, signing message. Each pubkey may be
// counted at most once even if sigs contains duplicate entries for it.
func (Ed25519Verifier) VerifyThreshold(message [32]byte, pubkeys [][32]byte, sigs []SigCheck, threshold int) bool {
	allowed := make(map[[32]byte]struct{}, len(pubkeys))
	for _, pk := range pubkeys {
		allowed[pk] = struct{}{}
	}

	counted := make(map[[32]byte]struct{}, len(sigs))
	valid := 0
	for _, sc := range sigs {
		if _, ok := allowed[sc.Pubkey]; !ok {
			continue
		}
		if _, already := counted[sc.Pubkey]; already {
			continue
		}
		if ed25519.Verify(ed25519.PublicKey(sc.Pubkey[:]), message[:], sc.Signature[:]) {
			counted[sc.Pubkey] = struct{}{}
			valid++
		}
	}
	return valid >= threshold
}
