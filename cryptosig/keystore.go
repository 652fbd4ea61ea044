package cryptosig

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// KeystoreV1 is the on-disk envelope for an operator's Ed25519 signer key,
// adapted from the teacher's post-quantum KeyStoreV1 (same version tag,
// same AES-256-KW wrap, only the key material and suite_id meaning changed).
type KeystoreV1 struct {
	Version       string `json:"version"` // "RBKSv1"
	SuiteID       uint8  `json:"suite_id"` // 0x01: Ed25519
	PubkeyHex     string `json:"pubkey_hex"`
	KeyIDHex      string `json:"key_id_hex"`
	WrapAlg       string `json:"wrap_alg"` // "AES-256-KW"
	WrappedSeedHex string `json:"wrapped_seed_hex"`
}

const SuiteEd25519 uint8 = 0x01

// KeyID is the non-normative SHA3-256 digest identifying a signer key by its
// public key, mirroring the teacher's key_id = SHA3-256(pubkey) convention.
func KeyID(pubkey []byte) [32]byte {
	return sha3.Sum256(pubkey)
}

// WrapKeystore wraps an Ed25519 seed (ed25519.SeedSize bytes) under kek
// (32-byte AES-256 key) into a KeystoreV1 envelope.
func WrapKeystore(kek []byte, pub ed25519.PublicKey, seed []byte) (KeystoreV1, error) {
	if len(seed) != ed25519.SeedSize {
		return KeystoreV1{}, fmt.Errorf("keystore: seed must be %d bytes", ed25519.SeedSize)
	}
	wrapped, err := AESKeyWrapRFC3394(kek, seed)
	if err != nil {
		return KeystoreV1{}, fmt.Errorf("keystore: wrap seed: %w", err)
	}
	keyID := KeyID(pub)
	return KeystoreV1{
		Version:        "RBKSv1",
		SuiteID:        SuiteEd25519,
		PubkeyHex:      hex.EncodeToString(pub),
		KeyIDHex:       hex.EncodeToString(keyID[:]),
		WrapAlg:        "AES-256-KW",
		WrappedSeedHex: hex.EncodeToString(wrapped),
	}, nil
}

// UnwrapKeystore recovers the Ed25519 private key from a KeystoreV1 envelope
// given the KEK it was wrapped under, verifying the embedded key_id and
// pubkey are internally consistent.
func UnwrapKeystore(kek []byte, ks KeystoreV1) (ed25519.PrivateKey, error) {
	if ks.Version != "RBKSv1" {
		return nil, fmt.Errorf("keystore: unsupported version %q", ks.Version)
	}
	if strings.ToUpper(ks.WrapAlg) != "AES-256-KW" {
		return nil, fmt.Errorf("keystore: unsupported wrap_alg %q", ks.WrapAlg)
	}
	pub, err := hex.DecodeString(ks.PubkeyHex)
	if err != nil {
		return nil, fmt.Errorf("keystore: pubkey_hex: %w", err)
	}
	wrapped, err := hex.DecodeString(ks.WrappedSeedHex)
	if err != nil {
		return nil, fmt.Errorf("keystore: wrapped_seed_hex: %w", err)
	}
	seed, err := AESKeyUnwrapRFC3394(kek, wrapped)
	if err != nil {
		return nil, fmt.Errorf("keystore: unwrap seed: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	derivedPub := priv.Public().(ed25519.PublicKey)
	if !derivedPub.Equal(ed25519.PublicKey(pub)) {
		return nil, fmt.Errorf("keystore: pubkey_hex does not match unwrapped seed")
	}
	keyID := KeyID(pub)
	gotHex := hex.EncodeToString(keyID[:])
	if ks.KeyIDHex != "" && !strings.EqualFold(ks.KeyIDHex, gotHex) {
		return nil, fmt.Errorf("keystore: key_id mismatch: embedded=%s computed=%s", ks.KeyIDHex, gotHex)
	}
	return priv, nil
}
