package cryptosig

import (
	"crypto/ed25519"
	"testing"
)

func genKey(t *testing.T) (pub [32]byte, priv ed25519.PrivateKey) {
	t.Helper()
	p, s, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	copy(pub[:], p)
	return pub, s
}

func TestEd25519Verifier_ThresholdMet(t *testing.T) {
	var v Ed25519Verifier
	msg := [32]byte{1, 2, 3}

	pub1, priv1 := genKey(t)
	pub2, priv2 := genKey(t)

	var sig1, sig2 [64]byte
	copy(sig1[:], ed25519.Sign(priv1, msg[:]))
	copy(sig2[:], ed25519.Sign(priv2, msg[:]))

	pubkeys := [][32]byte{pub1, pub2}
	sigs := []SigCheck{{Pubkey: pub1, Signature: sig1}, {Pubkey: pub2, Signature: sig2}}

	if !v.VerifyThreshold(msg, pubkeys, sigs, 2) {
		t.Fatalf("expected threshold of 2 to be met")
	}
	if !v.VerifyThreshold(msg, pubkeys, sigs, 1) {
		t.Fatalf("expected threshold of 1 to be met")
	}
}

func TestEd25519Verifier_ThresholdNotMet(t *testing.T) {
	var v Ed25519Verifier
	msg := [32]byte{1, 2, 3}

	pub1, priv1 := genKey(t)
	pub2, _ := genKey(t)

	var sig1 [64]byte
	copy(sig1[:], ed25519.Sign(priv1, msg[:]))

	pubkeys := [][32]byte{pub1, pub2}
	sigs := []SigCheck{{Pubkey: pub1, Signature: sig1}}

	if v.VerifyThreshold(msg, pubkeys, sigs, 2) {
		t.Fatalf("expected threshold of 2 to not be met with only one valid sig")
	}
}

func TestEd25519Verifier_RejectsInvalidSignature(t *testing.T) {
	var v Ed25519Verifier
	msg := [32]byte{1, 2, 3}
	pub1, _ := genKey(t)

	var badSig [64]byte // all zeros, not a valid signature
	pubkeys := [][32]byte{pub1}
	sigs := []SigCheck{{Pubkey: pub1, Signature: badSig}}

	if v.VerifyThreshold(msg, pubkeys, sigs, 1) {
		t.Fatalf("expected invalid signature to not count toward threshold")
	}
}

func TestEd25519Verifier_DuplicatePubkeyCountedOnce(t *testing.T) {
	var v Ed25519Verifier
	msg := [32]byte{1, 2, 3}
	pub1, priv1 := genKey(t)

	var sig1 [64]byte
	copy(sig1[:], ed25519.Sign(priv1, msg[:]))

	pubkeys := [][32]byte{pub1}
	sigs := []SigCheck{{Pubkey: pub1, Signature: sig1}, {Pubkey: pub1, Signature: sig1}}

	if v.VerifyThreshold(msg, pubkeys, sigs, 2) {
		t.Fatalf("duplicate signatures from the same pubkey must not count twice")
	}
}

func TestPrecompileVerifier_ThresholdMet(t *testing.T) {
	var v PrecompileVerifier
	msg := [32]byte{1}
	pub1 := [32]byte{0xAA}
	pub2 := [32]byte{0xBB}
	pubkeys := [][32]byte{pub1, pub2}
	sigs := []SigCheck{{Pubkey: pub1}, {Pubkey: pub2}}
	if !v.VerifyThreshold(msg, pubkeys, sigs, 2) {
		t.Fatalf("expected threshold met via precompile triples")
	}
}

func TestPrecompileVerifier_IgnoresNonMemberPubkeys(t *testing.T) {
	var v PrecompileVerifier
	msg := [32]byte{1}
	pub1 := [32]byte{0xAA}
	notMember := [32]byte{0xCC}
	pubkeys := [][32]byte{pub1}
	sigs := []SigCheck{{Pubkey: notMember}}
	if v.VerifyThreshold(msg, pubkeys, sigs, 1) {
		t.Fatalf("non-member pubkey must not count toward threshold")
	}
}
