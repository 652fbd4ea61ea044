package cryptosig

// PrecompileVerifier models the host-precompile path of §4.5 step 6: the
// runtime verifies (pubkey, message, signature) triples outside the program
// and co-submits them in the same atomic transaction, already-checked. The
// reveal handler only has to match declared triples against the signer set
// and count how many distinct members are covered — it never runs the
// curve math itself.
type PrecompileVerifier struct{}

// VerifyThreshold treats every entry in sigs as already verified by the
// host precompile (the Signature field is ignored; only Pubkey membership
// is consulted) and requires at least threshold distinct members of
// pubkeys to be present.
func (PrecompileVerifier) VerifyThreshold(message [32]byte, pubkeys [][32]byte, sigs []SigCheck, threshold int) bool {
	allowed := make(map[[32]byte]struct{}, len(pubkeys))
	for _, pk := range pubkeys {
		allowed[pk] = struct{}{}
	}

	counted := make(map[[32]byte]struct{}, len(sigs))
	for _, sc := range sigs {
		if _, ok := allowed[sc.Pubkey]; ok {
			counted[sc.Pubkey] = struct{}{}
		}
	}
	return len(counted) >= threshold
}
