package matcher

import (
	"testing"

	"github.com/tstohn/scdemux/internal/dictionary"
	"github.com/tstohn/scdemux/internal/pattern"
)

func TestMatchConstantExact(t *testing.T) {
	seg := pattern.Segment{Kind: pattern.Constant, Literal: "ACGT", Len: 4, Mismatches: 1, Name: "ACGT"}
	read := "GGACGTTT"
	res := Match(seg, read, 2, false, nil, nil)
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Start != 2 || res.End != 6 || res.Score != 0 {
		t.Errorf("got %+v", res)
	}
}

func TestMatchConstantWithMismatch(t *testing.T) {
	seg := pattern.Segment{Kind: pattern.Constant, Literal: "ACGT", Len: 4, Mismatches: 1, Name: "ACGT"}
	read := "GGACTTTT" // ACTT vs ACGT = 1 mismatch
	res := Match(seg, read, 2, false, nil, nil)
	if res == nil {
		t.Fatal("expected a match within budget")
	}
	if res.Score != 1 {
		t.Errorf("score = %d, want 1", res.Score)
	}
}

func TestMatchConstantOverBudgetFails(t *testing.T) {
	seg := pattern.Segment{Kind: pattern.Constant, Literal: "ACGT", Len: 4, Mismatches: 0, Name: "ACGT"}
	read := "GGACTTTT"
	if res := Match(seg, read, 2, false, nil, nil); res != nil {
		t.Errorf("expected no match, got %+v", res)
	}
}

func TestMatchTruncatedReadReturnsNil(t *testing.T) {
	seg := pattern.Segment{Kind: pattern.Constant, Literal: "ACGTACGT", Len: 8, Mismatches: 1, Name: "ACGTACGT"}
	read := "AC"
	if res := Match(seg, read, 0, false, nil, nil); res != nil {
		t.Errorf("expected nil on truncated read, got %+v", res)
	}
}

func TestMatchVariableUnique(t *testing.T) {
	idx, err := dictionary.New([]string{"AAAA", "CCCC", "GGGG"}, -1)
	if err != nil {
		t.Fatal(err)
	}
	seg := pattern.Segment{Kind: pattern.Variable, Len: 4, Mismatches: 1, Name: "BC1"}
	read := "TTAAAATT"
	res := Match(seg, read, 2, false, idx.Lookup, nil)
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.CanonicalID != "AAAA" {
		t.Errorf("canonical = %q, want AAAA", res.CanonicalID)
	}
}

func TestMatchVariableAmbiguousReturnsNilAndReports(t *testing.T) {
	idx, err := dictionary.New([]string{"AAAA", "AAAT"}, -1)
	if err != nil {
		t.Fatal(err)
	}
	seg := pattern.Segment{Kind: pattern.Variable, Len: 4, Mismatches: 1, Name: "BC1"}
	read := "TTAAAGTT" // 1 mismatch from both AAAA and AAAT
	reported := false
	res := Match(seg, read, 2, false, idx.Lookup, func() { reported = true })
	if res != nil {
		t.Errorf("expected nil on ambiguous lookup, got %+v", res)
	}
	if !reported {
		t.Error("expected onAmbiguous to be called")
	}
}

// TestMatchLaterAmbiguousProbeOverridesEarlierUniqueBest reproduces a
// cross-probe case a reviewer found uncovered: with left-drift enabled, an
// earlier-iterated start can latch a Unique result that a later-iterated
// start's Ambiguous tie actually beats. Segment len=4, m=3, dictionary
// {AGGA,ACTA,GGGT}; offset=1 with left-drift probes starts=[1,0]. At
// start=1, window "GTAG" scores {AGGA:4,ACTA:4,GGGT:3} -> sole-best
// Unique(GGGT,3), iterated first. At start=0, window "TGTA" scores
// {AGGA:2,ACTA:2,GGGT:3} -> tie at 2 -> Ambiguous(2), strictly better than
// the already-latched score of 3. Match must report Ambiguous, not the
// worse Unique(GGGT,3).
func TestMatchLaterAmbiguousProbeOverridesEarlierUniqueBest(t *testing.T) {
	seg := pattern.Segment{Kind: pattern.Variable, Len: 4, Mismatches: 3, Name: "BC1"}
	read := "TGTAGCC"
	lookup := func(window string, m int) dictionary.Result {
		switch window {
		case "GTAG": // start=1, length=4
			return dictionary.Result{Verdict: dictionary.Unique, Candidate: "GGGT", Score: 3}
		case "TGTA": // start=0, length=4
			return dictionary.Result{Verdict: dictionary.Ambiguous, Score: 2}
		default:
			return dictionary.Result{Verdict: dictionary.NoMatch}
		}
	}
	reported := false
	res := Match(seg, read, 1, true, lookup, func() { reported = true })
	if res != nil {
		t.Errorf("expected nil: the later, better-scoring Ambiguous probe should override the earlier Unique(GGGT,3), got %+v", res)
	}
	if !reported {
		t.Error("expected onAmbiguous to be called")
	}
}

func TestMatchWildcardReturnsNil(t *testing.T) {
	seg := pattern.Segment{Kind: pattern.Wildcard, Len: 4, Name: "WC1"}
	if res := Match(seg, "ACGTACGT", 0, false, nil, nil); res != nil {
		t.Errorf("Wildcard segments are never matched directly, got %+v", res)
	}
}
