// Package pattern describes the ordered arrangement of constant, variable
// and wildcard segments that a read is matched against, and parses that
// arrangement from the pattern description language documented in
// SPEC_FULL.md §6.
package pattern

// Kind identifies which of the three segment shapes a Segment is.
type Kind int

const (
	// Constant matches a literal ACGT sequence within a mismatch budget.
	Constant Kind = iota
	// Variable matches one of a dictionary of equal-length candidates.
	Variable
	// Wildcard absorbs a fixed-length span with no scoring; its
	// boundaries are resolved by its neighbors.
	Wildcard
)

func (k Kind) String() string {
	switch k {
	case Constant:
		return "constant"
	case Variable:
		return "variable"
	case Wildcard:
		return "wildcard"
	default:
		return "unknown"
	}
}

// Segment is a single element of a Pattern. Name, Len and Mismatches apply
// to every Kind; Literal, Candidates and IsPayload are each meaningful for
// one Kind only — this is the tagged-variant model spec.md §9 calls for in
// place of the original's class hierarchy.
type Segment struct {
	Kind Kind

	// Name labels this segment in TSV output headers. Build sets it to the
	// literal sequence for Constant, to "BC<k>" (k-th Variable segment,
	// 1-based) for Variable, and to "WC<i>" (1-based segment position) or
	// "DNA" when it carries the payload for Wildcard.
	Name string

	// Literal holds the Constant segment's literal sequence (bases only,
	// upper-cased).
	Literal string

	// Candidates holds the Variable segment's dictionary, all entries of
	// equal length.
	Candidates []string

	// Len is the nominal length of the segment: len(Literal) for
	// Constant, the shared candidate length for Variable, or the
	// wildcard span width for Wildcard.
	Len int

	// Mismatches is the inclusive edit-distance budget m.
	Mismatches int

	// IsPayload marks a Wildcard segment as the biological payload to be
	// emitted to FASTQ; only one segment per Pattern may set this.
	IsPayload bool
}

// Validate checks the invariants spec.md §3 requires of a single Segment:
// m < len, candidates of equal length and distinct, and a positive
// wildcard length. It does not check the alphabet; ParsePatternString and
// ReadDictionaryFile reject non-ACGT bases when parsing.
func (s Segment) Validate() error {
	switch s.Kind {
	case Constant:
		if s.Mismatches >= len(s.Literal) {
			return errSegmentf("constant segment %q: mismatches %d >= length %d", s.Name, s.Mismatches, len(s.Literal))
		}
	case Variable:
		if len(s.Candidates) == 0 {
			return errSegmentf("variable segment %q: empty dictionary", s.Name)
		}
		seen := make(map[string]bool, len(s.Candidates))
		for _, d := range s.Candidates {
			if len(d) != s.Len {
				return errSegmentf("variable segment %q: candidate %q length %d != segment length %d", s.Name, d, len(d), s.Len)
			}
			if seen[d] {
				return errSegmentf("variable segment %q: duplicate candidate %q", s.Name, d)
			}
			seen[d] = true
			if s.Mismatches >= len(d) {
				return errSegmentf("variable segment %q: mismatches %d >= candidate length %d", s.Name, s.Mismatches, len(d))
			}
		}
	case Wildcard:
		if s.Len <= 0 {
			return errSegmentf("wildcard segment %q: non-positive length %d", s.Name, s.Len)
		}
	}
	return nil
}
