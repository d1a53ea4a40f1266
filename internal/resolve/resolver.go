// Package resolve turns an overlapping candidate set into the final
// non-overlapping, offset-ordered span list.
package resolve

import (
	"sort"

	"github.com/velamed/velamed/internal/phi"
)

// Resolve sorts candidates by (start, -confidence, -length, -priority) and
// walks left to right keeping the first span of each conflict cluster. The
// ordering makes the greedy pass deterministic: on overlap the
// highest-confidence candidate wins, ties go to the longer match, remaining
// ties to the higher matcher priority.
func Resolve(candidates []phi.Span) []phi.Span {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]phi.Span, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Len() != b.Len() {
			return a.Len() > b.Len()
		}
		return a.Priority > b.Priority
	})

	resolved := make([]phi.Span, 0, len(sorted))
	for _, cand := range sorted {
		if len(resolved) == 0 {
			resolved = append(resolved, cand)
			continue
		}
		last := &resolved[len(resolved)-1]
		if cand.Start >= last.End {
			resolved = append(resolved, cand)
			continue
		}
		// Conflict with the kept span: keep the higher-confidence candidate,
		// then the longer one, then the higher matcher priority. Replacing
		// is safe: cand.Start >= last.Start, so the previous kept span (if
		// any) still ends before cand begins.
		if beats(cand, *last) {
			*last = cand
		}
	}
	return resolved
}

func beats(a, b phi.Span) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Len() != b.Len() {
		return a.Len() > b.Len()
	}
	return a.Priority > b.Priority
}

// Verify reports whether spans satisfy the non-overlap postcondition:
// for all adjacent pairs, span[i].End <= span[i+1].Start.
func Verify(spans []phi.Span) bool {
	for i := 1; i < len(spans); i++ {
		if spans[i-1].End > spans[i].Start {
			return false
		}
	}
	return true
}
