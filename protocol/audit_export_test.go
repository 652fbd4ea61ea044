package protocol

import (
	"testing"

	"github.com/oracleprotocol/publisher/cryptosig"
)

func TestExportAuditLog_EmptyStoreProducesStableDigest(t *testing.T) {
	e, _, _ := setupS1(t)
	exp, err := e.ExportAuditLog()
	if err != nil {
		t.Fatalf("ExportAuditLog: %v", err)
	}
	if len(exp.Records) != 0 {
		t.Fatalf("expected no audit records before any reveal, got %d", len(exp.Records))
	}
	ok, err := VerifyAuditExportDigest(exp)
	if err != nil {
		t.Fatalf("VerifyAuditExportDigest: %v", err)
	}
	if !ok {
		t.Fatalf("expected digest to verify")
	}
}

func TestExportAuditLog_IncludesRevealedEpoch(t *testing.T) {
	e, _, priv := setupS1(t)

	bundle, salt := s1Bundle(t, 1, 1)
	bundleBytes := EncodeBundle(bundle)
	ch := ContentHash(bundleBytes)
	commitHash := CommitHash(ch, salt)

	if err := e.CommitPrediction("U1", "NBA_LAL_BOS", 1, commitHash, 0, 100); err != nil {
		t.Fatalf("CommitPrediction: %v", err)
	}
	if _, err := e.RevealPrediction(RevealRequest{
		Committer: "U1", MarketID: "NBA_LAL_BOS", EpochID: 1,
		Bundle: bundle, BundleBytes: bundleBytes, Salt: salt,
		Sigs: []cryptosig.SigCheck{signMessage(priv, SigMessage(ch, 1, 1, 1))},
		Slot: 102,
	}); err != nil {
		t.Fatalf("RevealPrediction: %v", err)
	}

	exp, err := e.ExportAuditLog()
	if err != nil {
		t.Fatalf("ExportAuditLog: %v", err)
	}
	if len(exp.Records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(exp.Records))
	}
	if exp.Records[0].Market != "NBA_LAL_BOS" || exp.Records[0].Epoch != 1 || exp.Records[0].LastSequence != 1 {
		t.Fatalf("unexpected record: %+v", exp.Records[0])
	}

	ok, err := VerifyAuditExportDigest(exp)
	if err != nil {
		t.Fatalf("VerifyAuditExportDigest: %v", err)
	}
	if !ok {
		t.Fatalf("expected digest to verify")
	}

	exp.Records[0].LastSequence = 99
	if ok, _ := VerifyAuditExportDigest(exp); ok {
		t.Fatalf("expected digest to fail after tampering with a record")
	}
}
