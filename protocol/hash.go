package protocol

import "crypto/sha256"

// Domain separation tags for the three hash families. Fixed ASCII literals;
// changing any of them is a hard fork.
const (
	tagCommit     = "M0_COMMIT_V1"
	tagContent    = "M0_BUNDLE_CONTENT_V1"
	tagSigMessage = "M0_SIGMSG_V1"
)

// ContentHash computes content_hash(bytes) = SHA256(tagContent || bytes).
func ContentHash(bundleBytes []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(tagContent))
	h.Write(bundleBytes)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CommitHash computes commit_hash(content_hash, salt) = SHA256(tagCommit || content_hash || salt).
func CommitHash(contentHash [32]byte, salt [32]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(tagCommit))
	h.Write(contentHash[:])
	h.Write(salt[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SigMessage computes the message a threshold signature must cover:
// SHA256(tagSigMessage || content_hash || LE64(signer_set_id) || LE64(publish_epoch_id) || LE64(sequence)).
func SigMessage(contentHash [32]byte, signerSetID, publishEpochID, sequence uint64) [32]byte {
	buf := make([]byte, 0, len(tagSigMessage)+32+8+8+8)
	buf = append(buf, []byte(tagSigMessage)...)
	buf = append(buf, contentHash[:]...)
	buf = AppendU64le(buf, signerSetID)
	buf = AppendU64le(buf, publishEpochID)
	buf = AppendU64le(buf, sequence)

	h := sha256.Sum256(buf)
	return h
}
