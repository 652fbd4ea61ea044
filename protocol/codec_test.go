package protocol

import (
	"bytes"
	"testing"
)

func sampleBundle() *Bundle {
	return &Bundle{
		SchemaVersion:  SchemaVersion,
		SignerSetID:    1,
		PublishEpochID: 1,
		CreatedAtMs:    1700000000000,
		BundleID:       [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		Markets: []MarketReveal{
			{
				MarketID:     "NBA_LAL_BOS",
				EpochID:      1,
				TickIndex:    0,
				Sequence:     1,
				ObservedAtMs: 1700000000000,
				RiskScore:    0,
				QualityFlags: 0,
				Outcomes: []OutcomePoint{
					{OutcomeID: "A", PScaled: 620000000, CILowScaled: 600000000, CIHighScaled: 640000000, CILevelBps: 9500},
					{OutcomeID: "B", PScaled: 380000000, CILowScaled: 360000000, CIHighScaled: 400000000, CILevelBps: 9500},
				},
			},
		},
	}
}

func TestBundleRoundtrip(t *testing.T) {
	b := sampleBundle()
	encoded := EncodeBundle(b)
	decoded, err := DecodeBundle(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	reEncoded := EncodeBundle(decoded)
	if !bytes.Equal(encoded, reEncoded) {
		t.Fatalf("re-encoding changed bytes:\n%x\n%x", encoded, reEncoded)
	}
}

func TestDecodeBundle_TrailingBytes(t *testing.T) {
	encoded := EncodeBundle(sampleBundle())
	encoded = append(encoded, 0xFF)
	if _, err := DecodeBundle(encoded); CodeOf(err) != ErrBadBundle {
		t.Fatalf("expected BadBundle for trailing bytes, got %v", err)
	}
}

func TestDecodeBundle_Truncated(t *testing.T) {
	encoded := EncodeBundle(sampleBundle())
	if _, err := DecodeBundle(encoded[:len(encoded)-4]); CodeOf(err) != ErrBadBundle {
		t.Fatalf("expected BadBundle for truncated input, got %v", err)
	}
}

func TestDecodeBundle_EmptyOutcomes(t *testing.T) {
	b := sampleBundle()
	b.Markets[0].Outcomes = nil
	encoded := EncodeBundle(b)
	if _, err := DecodeBundle(encoded); CodeOf(err) != ErrBadBundle {
		t.Fatalf("expected BadBundle for empty outcomes, got %v", err)
	}
}

func TestDecodeBundle_TooManyOutcomes(t *testing.T) {
	b := sampleBundle()
	extra := make([]OutcomePoint, MaxOutcomes+1)
	for i := range extra {
		extra[i] = OutcomePoint{OutcomeID: "X", PScaled: 0, CILowScaled: 0, CIHighScaled: 0, CILevelBps: 0}
	}
	b.Markets[0].Outcomes = extra
	encoded := EncodeBundle(b)
	if _, err := DecodeBundle(encoded); CodeOf(err) != ErrBadBundle {
		t.Fatalf("expected BadBundle for outcome overflow, got %v", err)
	}
}

func TestDecodeBundle_ProbabilityOutOfRange(t *testing.T) {
	b := sampleBundle()
	b.Markets[0].Outcomes[0].PScaled = ProbScale + 1
	b.Markets[0].Outcomes[0].CIHighScaled = ProbScale + 1
	encoded := EncodeBundle(b)
	if _, err := DecodeBundle(encoded); CodeOf(err) != ErrBadBundle {
		t.Fatalf("expected BadBundle for out-of-range probability, got %v", err)
	}
}

func TestDecodeBundle_CIOrderingViolation(t *testing.T) {
	b := sampleBundle()
	b.Markets[0].Outcomes[0].CILowScaled = b.Markets[0].Outcomes[0].PScaled + 1
	encoded := EncodeBundle(b)
	if _, err := DecodeBundle(encoded); CodeOf(err) != ErrBadBundle {
		t.Fatalf("expected BadBundle for ci_low > p, got %v", err)
	}
}

func TestDecodeBundle_InvalidUTF8(t *testing.T) {
	b := sampleBundle()
	encoded := EncodeBundle(b)
	// Corrupt the market_id bytes (right after the 42-byte header + 4-byte
	// market count + 4-byte length prefix) with an invalid UTF-8 sequence.
	idOffset := 2 + 8 + 8 + 8 + 16 + 4 + 4
	encoded[idOffset] = 0xFF
	if _, err := DecodeBundle(encoded); CodeOf(err) != ErrBadBundle {
		t.Fatalf("expected BadBundle for invalid UTF-8, got %v", err)
	}
}

func FuzzBundleRoundtrip(f *testing.F) {
	f.Add(EncodeBundle(sampleBundle()))
	f.Fuzz(func(t *testing.T, data []byte) {
		b, err := DecodeBundle(data)
		if err != nil {
			return
		}
		re := EncodeBundle(b)
		b2, err := DecodeBundle(re)
		if err != nil {
			t.Fatalf("re-decode of valid bundle failed: %v", err)
		}
		if !bytes.Equal(re, EncodeBundle(b2)) {
			t.Fatalf("encode(decode(x)) is not stable under a second roundtrip")
		}
	})
}

func FuzzContentHash(f *testing.F) {
	f.Add([]byte("seed"))
	f.Fuzz(func(t *testing.T, data []byte) {
		h1 := ContentHash(data)
		h2 := ContentHash(data)
		if h1 != h2 {
			t.Fatalf("content hash not stable for identical input")
		}
	})
}
