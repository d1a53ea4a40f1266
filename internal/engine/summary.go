package engine

import (
	"github.com/velamed/velamed/internal/phi"
)

// Summary is the confidence-scored roll-up of one call.
type Summary struct {
	TotalDetected   int            `json:"totalDetected"`
	ConfidenceScore float64        `json:"confidenceScore"`
	ByType          map[string]int `json:"byType"`
}

// aggregate computes the length-weighted mean confidence and per-category
// counts over the resolved spans. Longer, more certain spans dominate the
// score. With no spans the score is 1.0: nothing was detected, nothing is
// uncertain. sum(ByType) always equals TotalDetected.
func aggregate(spans []phi.Span) Summary {
	s := Summary{
		TotalDetected: len(spans),
		ByType:        make(map[string]int, 8),
	}
	if len(spans) == 0 {
		s.ConfidenceScore = 1.0
		return s
	}

	var weighted, weight float64
	for _, sp := range spans {
		w := float64(sp.Len())
		if w <= 0 {
			w = 1
		}
		weighted += sp.Confidence * w
		weight += w
		s.ByType[string(sp.Category)]++
	}
	score := weighted / weight
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	s.ConfidenceScore = score
	return s
}
