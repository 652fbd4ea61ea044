package protocol

// bumpSequence advances an epoch's publish_sequence by exactly one and
// returns the new value. It must be called inside the same storage
// transaction as the signature check that follows it: if that check fails
// and the transaction is rolled back, the bump never lands on disk. This is
// the mechanism that makes §4.6's replay-protection invariant hold even
// though the bump happens before the signature is verified (§4.5 step 5).
func bumpSequence(e *Epoch) uint64 {
	e.PublishSequence++
	return e.PublishSequence
}

// checkOneShotReveal enforces the one-shot half of §4.6: a CommitRecord may
// be revealed at most once.
func checkOneShotReveal(c *CommitRecord) error {
	if c.Revealed {
		return protoerr(ErrCommitAlreadyRevealed, "commit already revealed")
	}
	return nil
}

// checkRevealDelay enforces the delay gate of §4.5 step 1.
func checkRevealDelay(c *CommitRecord, now uint64) error {
	if now < c.RevealAfterSlot {
		return protoerrf(ErrRevealTooEarly, "now=%d < reveal_after_slot=%d", now, c.RevealAfterSlot)
	}
	return nil
}
