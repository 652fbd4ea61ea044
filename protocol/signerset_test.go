package protocol

import "testing"

func TestNewSignerSet_ZeroThreshold(t *testing.T) {
	_, err := NewSignerSet(1, 0, [][32]byte{{1}}, true, 0)
	if CodeOf(err) != ErrInvalidThreshold {
		t.Fatalf("expected InvalidThreshold, got %v", err)
	}
}

func TestNewSignerSet_ThresholdExceedsPubkeys(t *testing.T) {
	_, err := NewSignerSet(1, 2, [][32]byte{{1}}, true, 0)
	if CodeOf(err) != ErrInvalidThreshold {
		t.Fatalf("expected InvalidThreshold, got %v", err)
	}
}

func TestNewSignerSet_DuplicatePubkeys(t *testing.T) {
	_, err := NewSignerSet(1, 1, [][32]byte{{1}, {1}}, true, 0)
	if CodeOf(err) != ErrInvalidParameter {
		t.Fatalf("expected InvalidParameter, got %v", err)
	}
}

func TestNewSignerSet_Valid(t *testing.T) {
	ss, err := NewSignerSet(1, 1, [][32]byte{{1}, {2}}, true, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ss.HasPubkey([32]byte{2}) {
		t.Fatalf("expected pubkey 2 to be a member")
	}
	if ss.HasPubkey([32]byte{3}) {
		t.Fatalf("did not expect pubkey 3 to be a member")
	}
}
