package engine

import (
	"testing"

	"github.com/velamed/velamed/internal/phi"
)

func TestAggregateLengthWeighting(t *testing.T) {
	spans := []phi.Span{
		{Category: phi.CategoryName, Start: 0, End: 10, Confidence: 0.5},
		{Category: phi.CategoryNationalID, Start: 20, End: 50, Confidence: 0.9},
	}
	s := aggregate(spans)
	// (0.5*10 + 0.9*30) / 40 = 0.8
	if s.ConfidenceScore < 0.79 || s.ConfidenceScore > 0.81 {
		t.Fatalf("ConfidenceScore = %v, want 0.8", s.ConfidenceScore)
	}
	if s.TotalDetected != 2 {
		t.Fatalf("TotalDetected = %d", s.TotalDetected)
	}
	if s.ByType["NAME"] != 1 || s.ByType["NATIONAL_ID"] != 1 {
		t.Fatalf("ByType = %v", s.ByType)
	}
}

func TestAggregateEmpty(t *testing.T) {
	s := aggregate(nil)
	if s.TotalDetected != 0 || s.ConfidenceScore != 1.0 {
		t.Fatalf("empty aggregate = %+v", s)
	}
}

func TestAggregateZeroLengthSpanCounts(t *testing.T) {
	s := aggregate([]phi.Span{{Category: phi.CategoryDate, Start: 3, End: 3, Confidence: 0.7}})
	if s.TotalDetected != 1 {
		t.Fatalf("TotalDetected = %d", s.TotalDetected)
	}
	if s.ConfidenceScore != 0.7 {
		t.Fatalf("ConfidenceScore = %v", s.ConfidenceScore)
	}
}
