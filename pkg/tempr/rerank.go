package tempr

import (
	"context"
	"fmt"
)

// rerankFormat builds the text fed to the cross-encoder, per spec §4.8:
// "{text} (occurred {fmt(occurred_start, occurred_end)})" when the unit
// carries temporal metadata, else text alone.
func rerankFormat(u MemoryUnit) string {
	if u.OccurredStart == nil && u.OccurredEnd == nil {
		return u.Text
	}
	switch {
	case u.OccurredStart != nil && u.OccurredEnd != nil:
		return fmt.Sprintf("%s (occurred %s to %s)", u.Text, u.OccurredStart.Format("2006-01-02"), u.OccurredEnd.Format("2006-01-02"))
	case u.OccurredStart != nil:
		return fmt.Sprintf("%s (occurred %s)", u.Text, u.OccurredStart.Format("2006-01-02"))
	default:
		return fmt.Sprintf("%s (occurred until %s)", u.Text, u.OccurredEnd.Format("2006-01-02"))
	}
}

// rerank scores units with the caller-supplied cross-encoder hook and
// returns them sorted by score descending, with weight min-max normalised
// into [0,1] against the returned batch (spec §6: "weight is the
// post-rerank score ... after min-max normalisation against the returned
// batch"). A nil hook or hook error is a fail-open condition per spec §7:
// the caller falls back to RRF order and records a warning.
func rerank(ctx context.Context, hook CrossEncoderFn, query string, units []MemoryUnit) ([]ResultItem, bool) {
	if hook == nil || len(units) == 0 {
		return rrfOrderResults(units), false
	}
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = rerankFormat(u)
	}
	scores, err := hook(ctx, query, texts)
	if err != nil || len(scores) != len(units) {
		return rrfOrderResults(units), false
	}

	type pair struct {
		unit  MemoryUnit
		score float64
	}
	pairs := make([]pair, len(units))
	for i, u := range units {
		pairs[i] = pair{unit: u, score: scores[i]}
	}
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j].score > pairs[j-1].score; j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}

	minScore, maxScore := pairs[len(pairs)-1].score, pairs[0].score
	results := make([]ResultItem, len(pairs))
	for i, p := range pairs {
		results[i] = ResultItem{
			ID: p.unit.ID, Text: p.unit.Text, Context: p.unit.Context,
			EventDate: p.unit.EventDate(), Weight: minMaxNormalize(p.score, minScore, maxScore), FactType: p.unit.FactType,
		}
	}
	return results, true
}

func minMaxNormalize(v, min, max float64) float64 {
	if max == min {
		return 1.0
	}
	return (v - min) / (max - min)
}

// rrfOrderResults builds ResultItems preserving the caller's ordering
// (already RRF order), with weight linearly decaying by rank since no
// cross-encoder score is available to normalise.
func rrfOrderResults(units []MemoryUnit) []ResultItem {
	out := make([]ResultItem, len(units))
	n := len(units)
	for i, u := range units {
		weight := 1.0
		if n > 1 {
			weight = 1.0 - float64(i)/float64(n)
		}
		out[i] = ResultItem{ID: u.ID, Text: u.Text, Context: u.Context, EventDate: u.EventDate(), Weight: weight, FactType: u.FactType}
	}
	return out
}
