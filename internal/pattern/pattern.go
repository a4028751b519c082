package pattern

// Pattern is an ordered, immutable arrangement of Segments, identified by
// name, that a PatternEngine segments a read against.
type Pattern struct {
	name     string
	segments []Segment

	// containsPayload is true iff one Segment is a payload Wildcard.
	containsPayload bool
}

// New constructs a Pattern from an ordered slice of Segments, validating
// every segment's invariants and the "at most one payload wildcard" rule.
// The returned Pattern is immutable: segments is copied, never aliased.
func New(name string, segments []Segment) (*Pattern, error) {
	cp := make([]Segment, len(segments))
	copy(cp, segments)

	payloads := 0
	for i, s := range cp {
		if err := s.Validate(); err != nil {
			return nil, errSegmentf("pattern %q segment %d: %v", name, i, err)
		}
		if s.Kind == Wildcard && s.IsPayload {
			payloads++
		}
	}
	if payloads > 1 {
		return nil, errSegmentf("pattern %q: more than one payload wildcard segment", name)
	}

	return &Pattern{
		name:            name,
		segments:        cp,
		containsPayload: payloads == 1,
	}, nil
}

// Name returns the pattern's identity, used to name its output files.
func (p *Pattern) Name() string { return p.name }

// Segments returns the ordered, read-only view of the pattern's segments.
// Callers must not mutate the returned slice's elements by pointer — the
// Segment value itself is a copy-safe struct.
func (p *Pattern) Segments() []Segment { return p.segments }

// ContainsPayload reports whether this pattern designates one wildcard as
// the biological payload to be emitted to FASTQ.
func (p *Pattern) ContainsPayload() bool { return p.containsPayload }

// MinProbeLength returns the fewest bases a Segment needs to even attempt
// a match — used by SegmentMatcher/PatternEngine to detect a truncated
// read before probing.
func (s Segment) MinProbeLength() int {
	switch s.Kind {
	case Wildcard:
		return 0
	default:
		n := s.Len - 1
		if n < 1 {
			n = s.Len
		}
		return n
	}
}
