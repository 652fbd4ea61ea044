package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oracleprotocol/publisher/cryptosig"
	"github.com/oracleprotocol/publisher/protocol"
	"github.com/oracleprotocol/publisher/protocol/store"
)

// Grounded on cmd/gen-conformance-fixtures/runtime.go's approach of driving
// real cryptographic and state-machine logic and baking the resulting bytes
// into checked-in JSON fixtures, rather than hand-writing expected hashes.
// Where that generator patches pre-existing vectors in place, this one
// builds the S1-S6 scenarios from scratch against a real *protocol.Engine
// over a disposable store, and records what actually happened.

type scenarioFixture struct {
	ID          string `json:"id"`
	Description string `json:"description"`

	MarketID      string `json:"market_id"`
	SignerSetID   uint64 `json:"signer_set_id"`
	EpochID       uint64 `json:"epoch_id"`
	BundleHex     string `json:"bundle_hex"`
	SaltHex       string `json:"salt_hex"`
	ContentHash   string `json:"content_hash_hex"`
	CommitHashHex string `json:"commit_hash_hex"`
	SigMessageHex string `json:"sig_message_hex"`
	SignerPubHex  string `json:"signer_pubkey_hex"`
	SignatureHex  string `json:"signature_hex"`

	CommitErr string `json:"commit_error,omitempty"`
	RevealErr string `json:"reveal_error,omitempty"`
	Sequence  uint64 `json:"sequence,omitempty"`
}

func main() {
	out := flag.String("out", "conformance/fixtures/scenarios.json", "output path for generated fixtures")
	flag.Parse()

	fixtures, err := buildScenarios()
	if err != nil {
		fatalf("build scenarios: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		fatalf("mkdir %s: %v", filepath.Dir(*out), err)
	}
	b, err := json.MarshalIndent(fixtures, "", "  ")
	if err != nil {
		fatalf("marshal: %v", err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(*out, b, 0o600); err != nil {
		fatalf("write %s: %v", *out, err)
	}
	fmt.Printf("ok: wrote %d fixtures to %s\n", len(fixtures), *out)
}

func buildScenarios() ([]scenarioFixture, error) {
	var out []scenarioFixture

	f, err := s1HappyPath()
	if err != nil {
		return nil, fmt.Errorf("S1: %w", err)
	}
	out = append(out, f)

	f, err = s2EarlyReveal()
	if err != nil {
		return nil, fmt.Errorf("S2: %w", err)
	}
	out = append(out, f)

	f, err = s3SaltMismatch()
	if err != nil {
		return nil, fmt.Errorf("S3: %w", err)
	}
	out = append(out, f)

	f, err = s5Paused()
	if err != nil {
		return nil, fmt.Errorf("S5: %w", err)
	}
	out = append(out, f)

	f, err = s6InactiveSignerSet()
	if err != nil {
		return nil, fmt.Errorf("S6: %w", err)
	}
	out = append(out, f)

	return out, nil
}

// freshEngine sets up a single-signer, single-market engine identical to the
// shape exercised in protocol's engine tests: authority "A", market
// NBA_LAL_BOS with outcomes A/B, one open epoch.
func freshEngine() (*protocol.Engine, ed25519.PublicKey, ed25519.PrivateKey, error) {
	db, err := store.Open(mustTempDir(), "testnet")
	if err != nil {
		return nil, nil, nil, err
	}
	e := protocol.NewEngine(db, cryptosig.Ed25519Verifier{}, func(protocol.Event) {})

	if err := e.InitProtocol("A", 2, 0); err != nil {
		return nil, nil, nil, err
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, nil, err
	}
	var pubArr [32]byte
	copy(pubArr[:], pub)
	if _, err := e.RotateSignerSet("A", 1, [][32]byte{pubArr}, true, 0); err != nil {
		return nil, nil, nil, err
	}
	if err := e.CreateMarket("A", "NBA_LAL_BOS", protocol.DomainSports, []string{"A", "B"}, true, 0); err != nil {
		return nil, nil, nil, err
	}
	if _, err := e.OpenEpoch("A", "NBA_LAL_BOS", 0); err != nil {
		return nil, nil, nil, err
	}
	return e, pub, priv, nil
}

func sampleBundle(epochID, signerSetID uint64) (*protocol.Bundle, [32]byte) {
	b := &protocol.Bundle{
		SchemaVersion:  protocol.SchemaVersion,
		SignerSetID:    signerSetID,
		PublishEpochID: epochID,
		CreatedAtMs:    1000,
		BundleID:       [16]byte{1, 2, 3},
		Markets: []protocol.MarketReveal{
			{
				MarketID:     "NBA_LAL_BOS",
				EpochID:      epochID,
				TickIndex:    1,
				Sequence:     1,
				ObservedAtMs: 999,
				Outcomes: []protocol.OutcomePoint{
					{OutcomeID: "A", PScaled: 620_000_000, CILowScaled: 600_000_000, CIHighScaled: 640_000_000, CILevelBps: 9500},
					{OutcomeID: "B", PScaled: 380_000_000, CILowScaled: 360_000_000, CIHighScaled: 400_000_000, CILevelBps: 9500},
				},
			},
		},
	}
	var salt [32]byte
	for i := range salt {
		salt[i] = 7
	}
	return b, salt
}

func signMessage(priv ed25519.PrivateKey, msg [32]byte) cryptosig.SigCheck {
	var pub [32]byte
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	var sig [64]byte
	copy(sig[:], ed25519.Sign(priv, msg[:]))
	return cryptosig.SigCheck{Pubkey: pub, Signature: sig}
}

func s1HappyPath() (scenarioFixture, error) {
	e, pub, priv, err := freshEngine()
	if err != nil {
		return scenarioFixture{}, err
	}
	bundle, salt := sampleBundle(1, 1)
	bundleBytes := protocol.EncodeBundle(bundle)
	ch := protocol.ContentHash(bundleBytes)
	commitHash := protocol.CommitHash(ch, salt)
	sigMsg := protocol.SigMessage(ch, 1, 1, 1)

	fix := scenarioFixture{
		ID:            "S1_HAPPY_PATH",
		Description:   "commit then reveal after the default delay succeeds and assigns publish_sequence=1",
		MarketID:      "NBA_LAL_BOS",
		SignerSetID:   1,
		EpochID:       1,
		BundleHex:     hex.EncodeToString(bundleBytes),
		SaltHex:       hex.EncodeToString(salt[:]),
		ContentHash:   hex.EncodeToString(ch[:]),
		CommitHashHex: hex.EncodeToString(commitHash[:]),
		SigMessageHex: hex.EncodeToString(sigMsg[:]),
		SignerPubHex:  hex.EncodeToString(pub),
	}

	if err := e.CommitPrediction("U1", "NBA_LAL_BOS", 1, commitHash, 0, 100); err != nil {
		fix.CommitErr = string(protocol.CodeOf(err))
		return fix, nil
	}
	sig := signMessage(priv, sigMsg)
	fix.SignatureHex = hex.EncodeToString(sig.Signature[:])

	seq, err := e.RevealPrediction(protocol.RevealRequest{
		Committer: "U1", MarketID: "NBA_LAL_BOS", EpochID: 1,
		Bundle: bundle, BundleBytes: bundleBytes, Salt: salt,
		Sigs: []cryptosig.SigCheck{sig},
		Slot: 102,
	})
	if err != nil {
		fix.RevealErr = string(protocol.CodeOf(err))
		return fix, nil
	}
	fix.Sequence = seq
	return fix, nil
}

func s2EarlyReveal() (scenarioFixture, error) {
	e, pub, priv, err := freshEngine()
	if err != nil {
		return scenarioFixture{}, err
	}
	bundle, salt := sampleBundle(1, 1)
	bundleBytes := protocol.EncodeBundle(bundle)
	ch := protocol.ContentHash(bundleBytes)
	commitHash := protocol.CommitHash(ch, salt)
	sigMsg := protocol.SigMessage(ch, 1, 1, 1)

	fix := scenarioFixture{
		ID:            "S2_EARLY_REVEAL",
		Description:   "reveal submitted before the reveal delay has elapsed is rejected, publish_sequence stays 0",
		MarketID:      "NBA_LAL_BOS",
		SignerSetID:   1,
		EpochID:       1,
		BundleHex:     hex.EncodeToString(bundleBytes),
		SaltHex:       hex.EncodeToString(salt[:]),
		ContentHash:   hex.EncodeToString(ch[:]),
		CommitHashHex: hex.EncodeToString(commitHash[:]),
		SigMessageHex: hex.EncodeToString(sigMsg[:]),
		SignerPubHex:  hex.EncodeToString(pub),
	}

	if err := e.CommitPrediction("U1", "NBA_LAL_BOS", 1, commitHash, 0, 100); err != nil {
		return scenarioFixture{}, err
	}
	sig := signMessage(priv, sigMsg)
	fix.SignatureHex = hex.EncodeToString(sig.Signature[:])

	_, err = e.RevealPrediction(protocol.RevealRequest{
		Committer: "U1", MarketID: "NBA_LAL_BOS", EpochID: 1,
		Bundle: bundle, BundleBytes: bundleBytes, Salt: salt,
		Sigs: []cryptosig.SigCheck{sig},
		Slot: 101,
	})
	fix.RevealErr = string(protocol.CodeOf(err))
	return fix, nil
}

func s3SaltMismatch() (scenarioFixture, error) {
	e, pub, priv, err := freshEngine()
	if err != nil {
		return scenarioFixture{}, err
	}
	bundle, salt := sampleBundle(1, 1)
	bundleBytes := protocol.EncodeBundle(bundle)
	ch := protocol.ContentHash(bundleBytes)
	commitHash := protocol.CommitHash(ch, salt)
	sigMsg := protocol.SigMessage(ch, 1, 1, 1)

	var wrongSalt [32]byte
	for i := range wrongSalt {
		wrongSalt[i] = 8
	}

	fix := scenarioFixture{
		ID:            "S3_SALT_MISMATCH",
		Description:   "reveal with a salt that does not hash back to the committed commit_hash is rejected",
		MarketID:      "NBA_LAL_BOS",
		SignerSetID:   1,
		EpochID:       1,
		BundleHex:     hex.EncodeToString(bundleBytes),
		SaltHex:       hex.EncodeToString(wrongSalt[:]),
		ContentHash:   hex.EncodeToString(ch[:]),
		CommitHashHex: hex.EncodeToString(commitHash[:]),
		SigMessageHex: hex.EncodeToString(sigMsg[:]),
		SignerPubHex:  hex.EncodeToString(pub),
	}

	if err := e.CommitPrediction("U1", "NBA_LAL_BOS", 1, commitHash, 0, 100); err != nil {
		return scenarioFixture{}, err
	}
	sig := signMessage(priv, sigMsg)
	fix.SignatureHex = hex.EncodeToString(sig.Signature[:])

	_, err = e.RevealPrediction(protocol.RevealRequest{
		Committer: "U1", MarketID: "NBA_LAL_BOS", EpochID: 1,
		Bundle: bundle, BundleBytes: bundleBytes, Salt: wrongSalt,
		Sigs: []cryptosig.SigCheck{sig},
		Slot: 102,
	})
	fix.RevealErr = string(protocol.CodeOf(err))
	return fix, nil
}

func s5Paused() (scenarioFixture, error) {
	e, _, _, err := freshEngine()
	if err != nil {
		return scenarioFixture{}, err
	}
	if err := e.SetPaused("A", true, 50); err != nil {
		return scenarioFixture{}, err
	}

	fix := scenarioFixture{
		ID:          "S5_PAUSED",
		Description: "commit_prediction while the protocol is paused is rejected before touching any market state",
		MarketID:    "NBA_LAL_BOS",
		SignerSetID: 1,
		EpochID:     1,
	}
	err = e.CommitPrediction("U1", "NBA_LAL_BOS", 1, [32]byte{1}, 0, 100)
	fix.CommitErr = string(protocol.CodeOf(err))
	return fix, nil
}

func s6InactiveSignerSet() (scenarioFixture, error) {
	e, pub, priv, err := freshEngine()
	if err != nil {
		return scenarioFixture{}, err
	}
	pub2, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return scenarioFixture{}, err
	}
	var pubArr2 [32]byte
	copy(pubArr2[:], pub2)
	if _, err := e.RotateSignerSet("A", 1, [][32]byte{pubArr2}, true, 10); err != nil {
		return scenarioFixture{}, err
	}

	bundle, salt := sampleBundle(1, 1) // still bundled against signer_set_id=1, now superseded
	bundleBytes := protocol.EncodeBundle(bundle)
	ch := protocol.ContentHash(bundleBytes)
	commitHash := protocol.CommitHash(ch, salt)
	sigMsg := protocol.SigMessage(ch, 1, 1, 1)

	fix := scenarioFixture{
		ID:            "S6_INACTIVE_SIGNER_SET",
		Description:   "reveal bundled against a signer_set_id that has since been superseded is rejected",
		MarketID:      "NBA_LAL_BOS",
		SignerSetID:   1,
		EpochID:       1,
		BundleHex:     hex.EncodeToString(bundleBytes),
		SaltHex:       hex.EncodeToString(salt[:]),
		ContentHash:   hex.EncodeToString(ch[:]),
		CommitHashHex: hex.EncodeToString(commitHash[:]),
		SigMessageHex: hex.EncodeToString(sigMsg[:]),
		SignerPubHex:  hex.EncodeToString(pub),
	}

	if err := e.CommitPrediction("U1", "NBA_LAL_BOS", 1, commitHash, 0, 100); err != nil {
		return scenarioFixture{}, err
	}
	sig := signMessage(priv, sigMsg)
	fix.SignatureHex = hex.EncodeToString(sig.Signature[:])

	_, err = e.RevealPrediction(protocol.RevealRequest{
		Committer: "U1", MarketID: "NBA_LAL_BOS", EpochID: 1,
		Bundle: bundle, BundleBytes: bundleBytes, Salt: salt,
		Sigs: []cryptosig.SigCheck{sig},
		Slot: 102,
	})
	fix.RevealErr = string(protocol.CodeOf(err))
	return fix, nil
}

func mustTempDir() string {
	dir, err := os.MkdirTemp("", "oracle-conformance-*")
	if err != nil {
		fatalf("mkdtemp: %v", err)
	}
	return dir
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}
