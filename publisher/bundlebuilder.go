package publisher

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/oracleprotocol/publisher/protocol"
)

// OutcomeSample is one outcome's raw observation count for a market tick:
// successes out of trials, e.g. "how many simulation paths/model votes
// landed on this outcome".
type OutcomeSample struct {
	OutcomeID string
	Successes uint64
	Trials    uint64
}

// zForConfidenceBps maps a confidence level to the two-sided normal z-score
// of the nearest tabled level at or below it (99%, 95% or 90%). Levels below
// 90% use the widest (99%) z. A level between two tiers, or above 99%, gets
// the z of the lower tier, so its interval is narrower than the nominal level.
func zForConfidenceBps(bps uint32) float64 {
	switch {
	case bps >= 9900:
		return 2.575829
	case bps >= 9500:
		return 1.959964
	case bps >= 9000:
		return 1.644854
	default:
		return 2.575829
	}
}

// WilsonInterval computes the Wilson score interval for a binomial
// proportion (successes out of trials) at the z-score implied by
// confidenceBps (§4.7: "CIs via Wilson interval from sample count"). Returns
// the point estimate and the interval bounds, all in [0,1].
func WilsonInterval(successes, trials uint64, confidenceBps uint32) (pHat, low, high float64, err error) {
	if trials == 0 {
		return 0, 0, 0, fmt.Errorf("wilson interval: zero trials")
	}
	if successes > trials {
		return 0, 0, 0, fmt.Errorf("wilson interval: successes %d exceeds trials %d", successes, trials)
	}
	n := float64(trials)
	p := float64(successes) / n
	z := zForConfidenceBps(confidenceBps)
	z2 := z * z

	denom := 1 + z2/n
	center := (p + z2/(2*n)) / denom
	margin := (z * math.Sqrt(p*(1-p)/n+z2/(4*n*n))) / denom

	low = math.Max(0, center-margin)
	high = math.Min(1, center+margin)
	return p, low, high, nil
}

// scaleToProbScale converts a [0,1] float into the fixed-point integer
// representation §4.2 requires (PROB_SCALE = 1e9), clamping to the valid
// range to absorb floating-point edge error at the boundaries.
func scaleToProbScale(x float64) uint64 {
	v := x * float64(protocol.ProbScale)
	if v < 0 {
		return 0
	}
	if v > float64(protocol.ProbScale) {
		return protocol.ProbScale
	}
	return uint64(math.Round(v))
}

// BuildMarketReveal turns a set of raw outcome samples into a MarketReveal,
// computing each outcome's Wilson interval and scaling it to PROB_SCALE.
// Outcomes are sorted by outcome_id lexical order before encoding, breaking
// ties deterministically the way §4.7 specifies ("ties broken by outcome-id
// lexical order").
func BuildMarketReveal(marketID string, epochID, tickIndex, sequence, observedAtMs uint64, samples []OutcomeSample, confidenceBps uint32) (protocol.MarketReveal, error) {
	if len(samples) == 0 {
		return protocol.MarketReveal{}, fmt.Errorf("no outcome samples for market %q", marketID)
	}
	sorted := append([]OutcomeSample(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OutcomeID < sorted[j].OutcomeID })

	outcomes := make([]protocol.OutcomePoint, 0, len(sorted))
	for _, s := range sorted {
		pHat, low, high, err := WilsonInterval(s.Successes, s.Trials, confidenceBps)
		if err != nil {
			return protocol.MarketReveal{}, fmt.Errorf("outcome %q: %w", s.OutcomeID, err)
		}
		outcomes = append(outcomes, protocol.OutcomePoint{
			OutcomeID:    s.OutcomeID,
			PScaled:      scaleToProbScale(pHat),
			CILowScaled:  scaleToProbScale(low),
			CIHighScaled: scaleToProbScale(high),
			CILevelBps:   confidenceBps,
		})
	}

	return protocol.MarketReveal{
		MarketID:     marketID,
		EpochID:      epochID,
		TickIndex:    tickIndex,
		Sequence:     sequence,
		ObservedAtMs: observedAtMs,
		Outcomes:     outcomes,
	}, nil
}

// BuildBundle assembles a Bundle around a single market's reveal, stamping a
// fresh random bundle_id (§3: `bundle_id: [u8;16]`). The publisher in this
// repo bundles one market per reveal cycle; nothing in §4.2 requires more
// than one, and a multi-market bundle is just a longer Markets slice built
// the same way.
func BuildBundle(schemaVersion uint16, signerSetID, publishEpochID, createdAtMs uint64, reveal protocol.MarketReveal) *protocol.Bundle {
	return &protocol.Bundle{
		SchemaVersion:  schemaVersion,
		SignerSetID:    signerSetID,
		PublishEpochID: publishEpochID,
		CreatedAtMs:    createdAtMs,
		BundleID:       uuid.New(),
		Markets:        []protocol.MarketReveal{reveal},
	}
}
