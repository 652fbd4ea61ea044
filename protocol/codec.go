package protocol

import "unicode/utf8"

// EncodeBundle serializes b into the canonical byte format of §4.2: fixed
// field order, little-endian integers with declared widths, 32-bit LE
// length-prefixed strings and arrays. Re-encoding an accepted bundle always
// produces identical bytes, which is what makes content_hash equality mean
// anything.
func EncodeBundle(b *Bundle) []byte {
	out := make([]byte, 0, 128+64*len(b.Markets))
	out = AppendU16le(out, b.SchemaVersion)
	out = AppendU64le(out, b.SignerSetID)
	out = AppendU64le(out, b.PublishEpochID)
	out = AppendU64le(out, b.CreatedAtMs)
	out = append(out, b.BundleID[:]...)
	out = AppendU32le(out, uint32(len(b.Markets)))
	for _, m := range b.Markets {
		out = encodeMarketReveal(out, &m)
	}
	return out
}

func encodeMarketReveal(out []byte, m *MarketReveal) []byte {
	out = AppendLenPrefixed(out, []byte(m.MarketID))
	out = AppendU64le(out, m.EpochID)
	out = AppendU64le(out, m.TickIndex)
	out = AppendU64le(out, m.Sequence)
	out = AppendU64le(out, m.ObservedAtMs)
	out = AppendU16le(out, m.RiskScore)
	out = AppendU32le(out, m.QualityFlags)
	out = AppendU32le(out, uint32(len(m.Outcomes)))
	for _, o := range m.Outcomes {
		out = encodeOutcomePoint(out, &o)
	}
	return out
}

func encodeOutcomePoint(out []byte, o *OutcomePoint) []byte {
	out = AppendLenPrefixed(out, []byte(o.OutcomeID))
	out = AppendU64le(out, o.PScaled)
	out = AppendU64le(out, o.CILowScaled)
	out = AppendU64le(out, o.CIHighScaled)
	out = AppendU32le(out, o.CILevelBps)
	out = AppendU32le(out, o.QualityFlags)
	return out
}

const ciLevelBpsMax = 10000

// DecodeBundle parses the canonical byte format into a Bundle, failing with
// BadBundle (§4.2) on any structural or semantic violation: invalid UTF-8,
// a cap overrun, an out-of-range scaled probability, an outcome list that is
// empty or over MaxOutcomes, ci_low > p or p > ci_high, or trailing bytes.
func DecodeBundle(b []byte) (*Bundle, error) {
	c := newCursor(b)

	schemaVersion, err := c.readU16LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated schema_version")
	}
	signerSetID, err := c.readU64LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated signer_set_id")
	}
	publishEpochID, err := c.readU64LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated publish_epoch_id")
	}
	createdAtMs, err := c.readU64LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated created_at_ms")
	}
	bundleIDBytes, err := c.readExact(16)
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated bundle_id")
	}
	var bundleID [16]byte
	copy(bundleID[:], bundleIDBytes)

	marketCount, err := c.readU32LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated market count")
	}

	markets := make([]MarketReveal, 0, marketCount)
	for i := uint32(0); i < marketCount; i++ {
		m, err := decodeMarketReveal(c)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}

	if c.remaining() != 0 {
		return nil, protoerr(ErrBadBundle, "trailing bytes")
	}

	return &Bundle{
		SchemaVersion:  schemaVersion,
		SignerSetID:    signerSetID,
		PublishEpochID: publishEpochID,
		CreatedAtMs:    createdAtMs,
		BundleID:       bundleID,
		Markets:        markets,
	}, nil
}

func decodeMarketReveal(c *cursor) (*MarketReveal, error) {
	marketIDBytes, err := c.readLenPrefixedBytes(uint32(MaxMarketIDLen))
	if err != nil {
		return nil, protoerr(ErrBadBundle, "market_id: "+err.Error())
	}
	if !utf8.Valid(marketIDBytes) {
		return nil, protoerr(ErrBadBundle, "market_id is not valid UTF-8")
	}

	epochID, err := c.readU64LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated epoch_id")
	}
	tickIndex, err := c.readU64LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated tick_index")
	}
	sequence, err := c.readU64LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated sequence")
	}
	observedAtMs, err := c.readU64LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated observed_at_ms")
	}
	riskScore, err := c.readU16LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated risk_score")
	}
	qualityFlags, err := c.readU32LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated quality_flags")
	}
	outcomeCount, err := c.readU32LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated outcome count")
	}
	if outcomeCount == 0 || int(outcomeCount) > MaxOutcomes {
		return nil, protoerrf(ErrBadBundle, "outcome count %d out of range [1,%d]", outcomeCount, MaxOutcomes)
	}

	outcomes := make([]OutcomePoint, 0, outcomeCount)
	for i := uint32(0); i < outcomeCount; i++ {
		o, err := decodeOutcomePoint(c)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, *o)
	}

	return &MarketReveal{
		MarketID:     string(marketIDBytes),
		EpochID:      epochID,
		TickIndex:    tickIndex,
		Sequence:     sequence,
		ObservedAtMs: observedAtMs,
		RiskScore:    riskScore,
		QualityFlags: qualityFlags,
		Outcomes:     outcomes,
	}, nil
}

func decodeOutcomePoint(c *cursor) (*OutcomePoint, error) {
	outcomeIDBytes, err := c.readLenPrefixedBytes(uint32(MaxOutcomeIDLen))
	if err != nil {
		return nil, protoerr(ErrBadBundle, "outcome_id: "+err.Error())
	}
	if !utf8.Valid(outcomeIDBytes) {
		return nil, protoerr(ErrBadBundle, "outcome_id is not valid UTF-8")
	}

	pScaled, err := c.readU64LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated p_scaled")
	}
	ciLow, err := c.readU64LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated ci_low_scaled")
	}
	ciHigh, err := c.readU64LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated ci_high_scaled")
	}
	ciLevelBps, err := c.readU32LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated ci_level_bps")
	}
	qualityFlags, err := c.readU32LE()
	if err != nil {
		return nil, protoerr(ErrBadBundle, "truncated quality_flags")
	}

	if pScaled > ProbScale || ciLow > ProbScale || ciHigh > ProbScale {
		return nil, protoerr(ErrBadBundle, "scaled probability exceeds PROB_SCALE")
	}
	if ciLevelBps > ciLevelBpsMax {
		return nil, protoerrf(ErrBadBundle, "ci_level_bps %d exceeds %d", ciLevelBps, ciLevelBpsMax)
	}
	if ciLow > pScaled || pScaled > ciHigh {
		return nil, protoerr(ErrBadBundle, "ci_low <= p <= ci_high violated")
	}

	return &OutcomePoint{
		OutcomeID:    string(outcomeIDBytes),
		PScaled:      pScaled,
		CILowScaled:  ciLow,
		CIHighScaled: ciHigh,
		CILevelBps:   ciLevelBps,
		QualityFlags: qualityFlags,
	}, nil
}
