// Package engine segments a full read against an ordered pattern.Pattern,
// producing a DemultiplexedRead or a classified failure (spec.md §4.3).
package engine

import (
	"github.com/tstohn/scdemux/internal/dictionary"
	"github.com/tstohn/scdemux/internal/matcher"
	"github.com/tstohn/scdemux/internal/pattern"
)

// FailureKind classifies why PatternEngine could not fully segment a read.
type FailureKind int

const (
	TruncatedRead FailureKind = iota
	SegmentUnmatched
)

// Failure reports a read that Engine.Run could not segment.
type Failure struct {
	Kind         FailureKind
	SegmentIndex int
}

// SegmentOutput is one resolved segment span: a wildcard resolved
// retroactively by its neighbors, or a scored Constant/Variable match.
type SegmentOutput struct {
	Start, End  int
	Score       int
	CanonicalID string
	LengthDelta int
	Matched     bool // false only in AnalyseUnmapped mode, for a segment that could not be matched
}

// Payload is the biological sequence extracted at the pattern's designated
// payload wildcard, if any.
type Payload struct {
	Sequence string
	Quality  string
}

// DemultiplexedRead is the ordered per-segment output of a successfully (or
// partially, under AnalyseUnmapped) segmented read.
type DemultiplexedRead struct {
	ReadID    string
	Segments  []SegmentOutput
	Payload   *Payload
	ScoreSum  int
	IsPerfect bool

	// AnyUnmatched is true iff at least one segment could not be matched
	// (only possible under AnalyseUnmapped) — ScoreSum/IsPerfect are not
	// meaningful for a read's mismatch statistics when this is set, so
	// callers must skip RecordMatch/RecordPerfect/RecordModerate for it.
	AnyUnmatched bool
}

// Engine segments reads against one Pattern, consulting one
// dictionary.Index per Variable segment (in pattern order).
type Engine struct {
	pat             *pattern.Pattern
	indexes         []*dictionary.Index
	analyseUnmapped bool
}

// New builds an Engine. indexes must have exactly one entry per Variable
// segment in pat, in pattern order.
func New(pat *pattern.Pattern, indexes []*dictionary.Index, analyseUnmapped bool) *Engine {
	return &Engine{pat: pat, indexes: indexes, analyseUnmapped: analyseUnmapped}
}

type wildcardState struct {
	segIndex int
	start    int
}

// Run segments readID/sequence against the Engine's pattern. onAmbiguous is
// invoked once per Variable segment whose best-scoring probe was Ambiguous.
// Returns exactly one of (*DemultiplexedRead, nil) or (nil, *Failure);
// under AnalyseUnmapped, a read that could not be fully segmented is still
// returned as a DemultiplexedRead with unmatched segments marked and
// ScoreSum meaningless — callers must not record statistics for it.
func (e *Engine) Run(readID, seq, qual string, onAmbiguous func()) (*DemultiplexedRead, *Failure) {
	segments := e.pat.Segments()
	outputs := make([]SegmentOutput, len(segments))

	offset := 0
	var pending *wildcardState
	scoreSum := 0
	varIdx := 0
	anyUnmatched := false

	for i, seg := range segments {
		if seg.Kind == pattern.Wildcard {
			pending = &wildcardState{segIndex: i, start: offset}
			offset += seg.Len
			continue
		}

		var lookup matcher.DictionaryLookup
		if seg.Kind == pattern.Variable {
			lookup = e.indexes[varIdx].Lookup
		}

		truncated := offset+seg.MinProbeLength() > len(seq)
		var res *matcher.Result
		if !truncated {
			res = matcher.Match(seg, seq, offset, pending != nil, lookup, onAmbiguous)
		}
		if seg.Kind == pattern.Variable {
			varIdx++
		}

		if res == nil {
			if !e.analyseUnmapped {
				if truncated {
					return nil, &Failure{Kind: TruncatedRead, SegmentIndex: i}
				}
				return nil, &Failure{Kind: SegmentUnmatched, SegmentIndex: i}
			}
			anyUnmatched = true
			outputs[i] = SegmentOutput{Matched: false}
			if pending != nil {
				outputs[pending.segIndex] = resolveWildcard(pending, offset, seq)
				pending = nil
			}
			continue
		}

		if pending != nil {
			outputs[pending.segIndex] = resolveWildcard(pending, res.Start, seq)
			pending = nil
		}
		outputs[i] = SegmentOutput{
			Start: res.Start, End: res.End, Score: res.Score,
			CanonicalID: res.CanonicalID, LengthDelta: res.LengthDelta, Matched: true,
		}
		scoreSum += res.Score
		offset = res.End
	}

	if pending != nil {
		outputs[pending.segIndex] = resolveWildcard(pending, len(seq), seq)
		pending = nil
	}

	dr := &DemultiplexedRead{
		ReadID:       readID,
		Segments:     outputs,
		ScoreSum:     scoreSum,
		IsPerfect:    scoreSum == 0 && !anyUnmatched,
		AnyUnmatched: anyUnmatched,
	}
	if e.pat.ContainsPayload() {
		for i, seg := range segments {
			if seg.Kind == pattern.Wildcard && seg.IsPayload {
				p := &Payload{Sequence: outputs[i].CanonicalID}
				if len(qual) == len(seq) {
					p.Quality = qual[outputs[i].Start:outputs[i].End]
				}
				dr.Payload = p
			}
		}
	}
	return dr, nil
}

func resolveWildcard(pending *wildcardState, end int, seq string) SegmentOutput {
	if end < pending.start {
		end = pending.start
	}
	return SegmentOutput{
		Start: pending.start, End: end, CanonicalID: seq[pending.start:end], Matched: true,
	}
}
