package frames

import (
	"cmp"
	"slices"

	"github.com/camden-git/clipcraft/quality"
)

// Rank drops rejected candidates, keeps those scoring at least minQuality
// (no filter when minQuality <= 0), orders by score descending with ties
// broken by ascending frame number, and keeps at most maxFrames (no cap
// when maxFrames <= 0). The input slice is not modified.
func Rank(scored []Candidate, minQuality float64, maxFrames int) []Candidate {
	kept := make([]Candidate, 0, len(scored))
	for _, c := range scored {
		if c.Verdict != quality.Accepted {
			continue
		}
		if minQuality > 0 && c.Metrics.QualityScore < minQuality {
			continue
		}
		kept = append(kept, c)
	}

	slices.SortStableFunc(kept, func(a, b Candidate) int {
		return compareFrames(a.Frame, b.Frame)
	})

	if maxFrames > 0 && len(kept) > maxFrames {
		kept = kept[:maxFrames]
	}
	return kept
}

func compareFrames(a, b Frame) int {
	if c := cmp.Compare(b.Metrics.QualityScore, a.Metrics.QualityScore); c != 0 {
		return c
	}
	return cmp.Compare(a.FrameNumber, b.FrameNumber)
}

// SortByQuality orders frames the same way Rank does.
func SortByQuality(list []Frame) {
	slices.SortStableFunc(list, compareFrames)
}
