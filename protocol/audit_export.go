package protocol

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/crypto/sha3"

	"github.com/oracleprotocol/publisher/protocol/store"
)

// AuditExportRecord is one audit log entry in the exported dump, addressed
// by its (market, epoch) pair rather than its internal PDA bytes.
type AuditExportRecord struct {
	Market             string `json:"market"`
	Epoch              uint64 `json:"epoch"`
	LastBundleHash     string `json:"last_bundle_hash_hex"`
	LastSequence       uint64 `json:"last_sequence"`
	LastRevealedAtSlot uint64 `json:"last_revealed_at_slot"`
}

// AuditExport is the full dump produced by Engine.ExportAuditLog: every
// audit log record currently in the store, plus a non-normative SHA3-256
// digest over the exported JSON rows so a downstream consumer can detect
// an export that was altered in transit. The digest plays no role in
// protocol consensus; it exists purely so an exported file can be checked
// for tampering after it leaves the store.
type AuditExport struct {
	Records   []AuditExportRecord `json:"records"`
	DigestHex string              `json:"digest_sha3_256_hex"`
}

// ExportAuditLog walks every AuditLog record in bucket order and returns a
// deterministic, digest-stamped export. Records are sorted by (market,
// epoch) before digesting so the digest doesn't depend on bbolt's
// key-derived iteration order.
func (e *Engine) ExportAuditLog() (*AuditExport, error) {
	var records []AuditExportRecord
	err := e.db.ForEach(store.BucketAuditLogs, func(_ [32]byte, value []byte) error {
		var dto auditDTO
		if err := json.Unmarshal(value, &dto); err != nil {
			return fmt.Errorf("decode audit log: %w", err)
		}
		records = append(records, AuditExportRecord{
			Market:             dto.Market,
			Epoch:              dto.Epoch,
			LastBundleHash:     dto.LastBundleHash,
			LastSequence:       dto.LastSequence,
			LastRevealedAtSlot: dto.LastRevealedAtSlot,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Market != records[j].Market {
			return records[i].Market < records[j].Market
		}
		return records[i].Epoch < records[j].Epoch
	})

	digestInput, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("digest encode: %w", err)
	}
	digest := sha3.Sum256(digestInput)

	return &AuditExport{
		Records:   records,
		DigestHex: hex.EncodeToString(digest[:]),
	}, nil
}

// VerifyAuditExportDigest recomputes the export's digest and reports
// whether it still matches DigestHex.
func VerifyAuditExportDigest(exp *AuditExport) (bool, error) {
	digestInput, err := json.Marshal(exp.Records)
	if err != nil {
		return false, fmt.Errorf("digest encode: %w", err)
	}
	digest := sha3.Sum256(digestInput)
	return hex.EncodeToString(digest[:]) == exp.DigestHex, nil
}
