package main

import "testing"

func TestBuildScenariosCoversFixtureScenarios(t *testing.T) {
	fixtures, err := buildScenarios()
	if err != nil {
		t.Fatalf("buildScenarios: %v", err)
	}
	if len(fixtures) != 5 {
		t.Fatalf("len(fixtures) = %d, want 5 (S4 concurrent-reveals needs two committers and is exercised at the engine test level, not as a single fixture)", len(fixtures))
	}

	want := map[string]struct {
		commitErr bool
		revealErr bool
		sequence  uint64
	}{
		"S1_HAPPY_PATH":          {sequence: 1},
		"S2_EARLY_REVEAL":        {revealErr: true},
		"S3_SALT_MISMATCH":       {revealErr: true},
		"S5_PAUSED":              {commitErr: true},
		"S6_INACTIVE_SIGNER_SET": {revealErr: true},
	}

	seen := map[string]bool{}
	for _, f := range fixtures {
		seen[f.ID] = true
		w, ok := want[f.ID]
		if !ok {
			t.Fatalf("unexpected fixture id %q", f.ID)
		}
		if w.commitErr && f.CommitErr == "" {
			t.Fatalf("%s: expected a commit error", f.ID)
		}
		if w.revealErr && f.RevealErr == "" {
			t.Fatalf("%s: expected a reveal error", f.ID)
		}
		if w.sequence != 0 && f.Sequence != w.sequence {
			t.Fatalf("%s: sequence = %d, want %d", f.ID, f.Sequence, w.sequence)
		}
	}
	for id := range want {
		if !seen[id] {
			t.Fatalf("missing fixture id %q", id)
		}
	}
}
