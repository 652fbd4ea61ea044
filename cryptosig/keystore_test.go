package cryptosig

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
)

func TestKeystoreWrapUnwrapRoundtrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	seed := priv.Seed()

	var kek [32]byte
	for i := range kek {
		kek[i] = byte(i)
	}

	ks, err := WrapKeystore(kek[:], pub, seed)
	if err != nil {
		t.Fatalf("WrapKeystore: %v", err)
	}
	if ks.Version != "RBKSv1" || ks.SuiteID != SuiteEd25519 {
		t.Fatalf("unexpected keystore header: %+v", ks)
	}

	got, err := UnwrapKeystore(kek[:], ks)
	if err != nil {
		t.Fatalf("UnwrapKeystore: %v", err)
	}
	if !got.Equal(priv) {
		t.Fatalf("unwrapped key does not match original")
	}
}

func TestUnwrapKeystoreRejectsWrongKEK(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var kek, wrongKek [32]byte
	for i := range kek {
		kek[i] = byte(i)
		wrongKek[i] = byte(255 - i)
	}
	ks, err := WrapKeystore(kek[:], pub, priv.Seed())
	if err != nil {
		t.Fatalf("WrapKeystore: %v", err)
	}
	if _, err := UnwrapKeystore(wrongKek[:], ks); err == nil {
		t.Fatalf("expected unwrap with wrong KEK to fail")
	}
}

func TestUnwrapKeystoreRejectsTamperedPubkey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var kek [32]byte
	ks, err := WrapKeystore(kek[:], pub, priv.Seed())
	if err != nil {
		t.Fatalf("WrapKeystore: %v", err)
	}
	ks.PubkeyHex = "00112233445566778899aabbccddeeff00112233445566778899aabbccddee"
	if _, err := UnwrapKeystore(kek[:], ks); err == nil {
		t.Fatalf("expected unwrap to detect pubkey/seed mismatch")
	}
}

func TestKeyIDDeterministic(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	a := KeyID(pub)
	b := KeyID(pub)
	if a != b {
		t.Fatalf("KeyID not deterministic")
	}
}
