package engine

import (
	"testing"

	"github.com/tstohn/scdemux/internal/dictionary"
	"github.com/tstohn/scdemux/internal/pattern"
)

func buildPattern(t *testing.T, patternLine, mismatchLine string, dictLines [][]string, payloadIndex int) (*pattern.Pattern, []*dictionary.Index) {
	t.Helper()
	pat, err := pattern.Build("t", patternLine, mismatchLine, dictLines, payloadIndex)
	if err != nil {
		t.Fatalf("pattern.Build: %v", err)
	}
	var indexes []*dictionary.Index
	for _, seg := range pat.Segments() {
		if seg.Kind != pattern.Variable {
			continue
		}
		idx, err := dictionary.New(seg.Candidates, -1)
		if err != nil {
			t.Fatalf("dictionary.New: %v", err)
		}
		indexes = append(indexes, idx)
	}
	return pat, indexes
}

// S1 — constant only, zero mismatches.
func TestScenarioS1(t *testing.T) {
	pat, indexes := buildPattern(t, "[ACGT]", "0", nil, -1)
	eng := New(pat, indexes, false)
	dr, fail := eng.Run("r1", "ACGT", "", nil)
	if fail != nil {
		t.Fatalf("unexpected failure: %+v", fail)
	}
	if !dr.IsPerfect || dr.ScoreSum != 0 {
		t.Errorf("got %+v", dr)
	}
	if dr.Segments[0].CanonicalID != "ACGT" {
		t.Errorf("canonical = %q", dr.Segments[0].CanonicalID)
	}
}

// S2 — variable with one mismatch.
func TestScenarioS2(t *testing.T) {
	pat, indexes := buildPattern(t, "[NNNN]", "1", [][]string{{"AAAA", "CCCC", "GGGG", "TTTT"}}, -1)
	eng := New(pat, indexes, false)
	dr, fail := eng.Run("r1", "AAAT", "", nil)
	if fail != nil {
		t.Fatalf("unexpected failure: %+v", fail)
	}
	if dr.Segments[0].CanonicalID != "AAAA" || dr.Segments[0].Score != 1 {
		t.Errorf("got %+v", dr.Segments[0])
	}
	if dr.IsPerfect {
		t.Error("expected moderate, not perfect match")
	}
}

// S3 — ambiguous.
func TestScenarioS3(t *testing.T) {
	pat, indexes := buildPattern(t, "[NNNN]", "2", [][]string{{"AAAA", "CCCC", "GGGG", "TTTT"}}, -1)
	eng := New(pat, indexes, false)
	reported := false
	dr, fail := eng.Run("r1", "AACC", "", func() { reported = true })
	if fail == nil {
		t.Fatalf("expected SegmentUnmatched failure, got %+v", dr)
	}
	if fail.Kind != SegmentUnmatched {
		t.Errorf("kind = %v, want SegmentUnmatched", fail.Kind)
	}
	if !reported {
		t.Error("expected ambiguity to be reported")
	}
}

// S4 — wildcard between anchors, absorbing a one-base insertion.
func TestScenarioS4(t *testing.T) {
	pat, indexes := buildPattern(t, "[ACGT][XXX][TTTT]", "0,0,0", nil, -1)
	eng := New(pat, indexes, false)
	dr, fail := eng.Run("r1", "ACGTGGGGTTTT", "", nil)
	if fail != nil {
		t.Fatalf("unexpected failure: %+v", fail)
	}
	if dr.Segments[0].CanonicalID != "ACGT" {
		t.Errorf("segment0 = %q", dr.Segments[0].CanonicalID)
	}
	if dr.Segments[1].CanonicalID != "GGGG" {
		t.Errorf("wildcard = %q, want GGGG", dr.Segments[1].CanonicalID)
	}
	if dr.Segments[2].CanonicalID != "TTTT" {
		t.Errorf("segment2 = %q", dr.Segments[2].CanonicalID)
	}
}

// S5 — indel in constant, left drift after wildcard.
func TestScenarioS5(t *testing.T) {
	pat, indexes := buildPattern(t, "[XXXX][ACGT]", "0,0", nil, -1)
	eng := New(pat, indexes, false)
	dr, fail := eng.Run("r1", "NNNNNACGT", "", nil)
	if fail != nil {
		t.Fatalf("unexpected failure: %+v", fail)
	}
	if dr.Segments[0].CanonicalID != "NNNNN" {
		t.Errorf("wildcard = %q, want NNNNN", dr.Segments[0].CanonicalID)
	}
	if dr.Segments[0].Start != 0 || dr.Segments[0].End != 5 {
		t.Errorf("wildcard span = [%d,%d), want [0,5)", dr.Segments[0].Start, dr.Segments[0].End)
	}
	if dr.Segments[1].CanonicalID != "ACGT" {
		t.Errorf("segment1 = %q", dr.Segments[1].CanonicalID)
	}
}

// S6 — truncated read.
func TestScenarioS6(t *testing.T) {
	pat, indexes := buildPattern(t, "[ACGT][ACGT]", "0,0", nil, -1)
	eng := New(pat, indexes, false)
	dr, fail := eng.Run("r1", "ACGT", "", nil)
	if fail == nil {
		t.Fatalf("expected TruncatedRead failure, got %+v", dr)
	}
	if fail.Kind != TruncatedRead {
		t.Errorf("kind = %v, want TruncatedRead", fail.Kind)
	}
}

func TestAnalyseUnmappedEmitsPartialRead(t *testing.T) {
	pat, indexes := buildPattern(t, "[ACGT][ACGT]", "0,0", nil, -1)
	eng := New(pat, indexes, true)
	dr, fail := eng.Run("r1", "ACGTTTTT", "", nil)
	if fail != nil {
		t.Fatalf("AnalyseUnmapped mode should never fail a read, got %+v", fail)
	}
	if dr.Segments[0].CanonicalID != "ACGT" || !dr.Segments[0].Matched {
		t.Errorf("segment0 = %+v", dr.Segments[0])
	}
	if dr.Segments[1].Matched {
		t.Errorf("segment1 should be unmatched, got %+v", dr.Segments[1])
	}
}

func TestPayloadExtraction(t *testing.T) {
	pat, indexes := buildPattern(t, "[ACGT][XXXX]", "0,0", nil, 1)
	eng := New(pat, indexes, false)
	dr, fail := eng.Run("r1", "ACGTGGCC", "IIIIIIII", nil)
	if fail != nil {
		t.Fatalf("unexpected failure: %+v", fail)
	}
	if dr.Payload == nil {
		t.Fatal("expected a payload")
	}
	if dr.Payload.Sequence != "GGCC" {
		t.Errorf("payload sequence = %q", dr.Payload.Sequence)
	}
	if dr.Payload.Quality != "IIII" {
		t.Errorf("payload quality = %q", dr.Payload.Quality)
	}
}
