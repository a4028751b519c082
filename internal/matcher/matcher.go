// Package matcher attempts to align a single pattern.Segment against a read
// at a given offset, tolerant of a single-base indel and, when a preceding
// wildcard left the boundary uncertain, a small amount of 5' drift
// (spec.md §4.2).
package matcher

import (
	"github.com/tstohn/scdemux/internal/dictionary"
	"github.com/tstohn/scdemux/internal/editdist"
	"github.com/tstohn/scdemux/internal/pattern"
)

// Result is one successful segment alignment: the absolute read span it
// covers, its edit-distance score, the canonical identity it resolved to,
// and how much the matched span's length fell short of the canonical
// sequence's own length (spec.md's length_delta).
type Result struct {
	Start, End  int
	Score       int
	CanonicalID string
	LengthDelta int
}

// DictionaryLookup resolves a Variable segment's window against its
// candidate set. PatternEngine supplies one per Variable segment, built
// once from its dictionary.Index at Pattern-construction time.
type DictionaryLookup func(window string, m int) dictionary.Result

// AmbiguousReporter receives a multi_barcode event when a Variable
// segment's best-scoring probe was Ambiguous rather than Unique.
type AmbiguousReporter func()

// Match attempts to align segment against read starting at offset.
// allowLeftDrift additionally probes start positions offset-1 and
// offset-2, for use immediately after a deferred wildcard. lookup is
// nil for Constant and Wildcard segments. It returns nil when no probe
// met the segment's mismatch budget.
func Match(seg pattern.Segment, read string, offset int, allowLeftDrift bool, lookup DictionaryLookup, onAmbiguous AmbiguousReporter) *Result {
	if seg.Kind == pattern.Wildcard {
		return nil
	}
	if offset+seg.MinProbeLength() > len(read) {
		return nil
	}

	starts := []int{offset}
	if allowLeftDrift {
		if offset-1 >= 0 {
			starts = append(starts, offset-1)
		}
		if offset-2 >= 0 {
			starts = append(starts, offset-2)
		}
	}

	var best *Result
	bestAmbiguous := false
	ambiguousSeen := false
	ambiguousScore := 0
	for _, start := range starts {
		for _, length := range []int{seg.Len - 1, seg.Len, seg.Len + 1} {
			if length <= 0 || start+length > len(read) {
				continue
			}
			window := read[start : start+length]

			switch seg.Kind {
			case pattern.Constant:
				score := scoreConstant(window, seg.Literal)
				if score > seg.Mismatches {
					continue
				}
				s, e := boundaryFor(start, start+length, window, seg.Literal)
				cand := &Result{
					Start:       s,
					End:         e,
					Score:       score,
					CanonicalID: seg.Literal,
					LengthDelta: lengthDelta(seg.Literal, e-s),
				}
				if betterConstant(cand, best, seg.Len) {
					best = cand
				}

			case pattern.Variable:
				res := lookup(window, seg.Mismatches)
				switch res.Verdict {
				case dictionary.Unique:
					s, e := boundaryFor(start, start+length, window, res.Candidate)
					cand := &Result{
						Start:       s,
						End:         e,
						Score:       res.Score,
						CanonicalID: res.Candidate,
						LengthDelta: lengthDelta(res.Candidate, e-s),
					}
					if betterConstant(cand, best, seg.Len) {
						best = cand
					}
				case dictionary.Ambiguous:
					if !ambiguousSeen || res.Score < ambiguousScore {
						ambiguousSeen = true
						ambiguousScore = res.Score
					}
				}
			}
		}
	}

	// An Ambiguous probe only overrides an already-latched Unique best if
	// its score is at least as good: the best-scoring probe across all
	// offsets/lengths determines the verdict, not whichever kind was
	// iterated first.
	if ambiguousSeen && (best == nil || ambiguousScore <= best.Score) {
		best = nil
		bestAmbiguous = true
	}

	if best == nil {
		if bestAmbiguous && onAmbiguous != nil {
			onAmbiguous()
		}
		return nil
	}
	return best
}

// scoreConstant scores window (length len(literal)-1, len(literal), or
// len(literal)+1) against literal, using the single-indel-bounded distance
// when lengths differ by one. The indel itself costs one edit, except when
// a longer window's extra base sits at either edge: boundaryFor then trims
// that base, and the score is that of the trimmed, full-length span.
// Adapted from grailbio-bio's downstream-extending Levenshtein: rather than
// growing the comparison into anchor bases dynamically, the fixed
// window-length probing already supplied by the caller plays that role, so
// only the single-skip alignment itself is needed here.
func scoreConstant(window, literal string) int {
	switch len(window) - len(literal) {
	case 0:
		return editdist.HammingN(window, literal)
	case -1:
		return editdist.IndelHammingN(window, literal) + 1
	case 1:
		score, skip := editdist.IndelHammingNWithSkip(literal, window)
		if skip != 0 && skip != len(window)-1 {
			score++
		}
		return score
	default:
		return len(literal) + 1
	}
}

// boundaryFor refines [start,end) for the case where window is one base
// longer than canonical: the probed window length absorbs a one-base
// insertion at an unknown position (spec.md §4.3's wildcard length-drift
// carry is exactly this case, when the preceding wildcard under-consumed
// by one base). When the best single-base-deletion alignment of canonical
// against window puts the extra base at either edge, the true boundary is
// one base further in; an interior extra base leaves the probed window's
// own edges as the best available estimate, since trimming either edge
// would be no more justified than the other.
func boundaryFor(start, end int, window, canonical string) (int, int) {
	if len(window)-len(canonical) != 1 {
		return start, end
	}
	_, skip := editdist.IndelHammingNWithSkip(canonical, window)
	switch skip {
	case 0:
		return start + 1, end
	case len(window) - 1:
		return start, end - 1
	default:
		return start, end
	}
}

func lengthDelta(canonical string, matchedLen int) int {
	d := len(canonical) - matchedLen
	if d < 0 {
		return 0
	}
	return d
}

// betterConstant applies spec.md §4.2's tie-break: smaller score first,
// then length == nominalLen, then smaller length.
func betterConstant(cand, best *Result, nominalLen int) bool {
	if best == nil {
		return true
	}
	if cand.Score != best.Score {
		return cand.Score < best.Score
	}
	candExact := (cand.End - cand.Start) == nominalLen
	bestExact := (best.End - best.Start) == nominalLen
	if candExact != bestExact {
		return candExact
	}
	return (cand.End - cand.Start) < (best.End - best.Start)
}
