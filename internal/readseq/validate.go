package readseq

import "github.com/biogo/biogo/alphabet"

// ValidSequence reports whether every character of seq is a valid DNA
// letter under biogo's nucleic-acid alphabet (A/C/G/T, plus IUPAC
// ambiguity codes including N) — used to reject obviously corrupt input
// lines before they ever reach pattern matching (a ReadRejected, per
// spec.md §7, rather than a TruncatedRead/SegmentUnmatched from the
// matcher itself).
func ValidSequence(seq string) bool {
	for i := 0; i < len(seq); i++ {
		if !alphabet.DNA.IsValid(alphabet.Letter(seq[i])) {
			return false
		}
	}
	return true
}
