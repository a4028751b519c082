// Package editdist provides the N-aware distance primitives shared by
// SegmentMatcher and DictionaryIndex: plain Hamming distance for
// equal-length comparisons and a single-indel-bounded variant for the
// length-1/length+1 window probes spec.md §4.1/§4.2 call for.
package editdist

import "github.com/antzucaro/matchr"

// HammingN is the number of mismatching positions between two equal-length
// strings, treating 'N' as a mismatch against every base, including
// another 'N' (spec.md §3/§4.1, and DESIGN.md's resolution of the open
// question on N-vs-N). When neither string contains an 'N' this delegates
// to matchr.Hamming, the teacher pack's string-distance library
// (grailbio-bio/util tests it directly against its own barcode-aware
// Levenshtein); the 'N'-aware path below exists because matchr's notion of
// equality would otherwise treat 'N'=='N' as a match.
func HammingN(w, d string) int {
	if len(w) != len(d) {
		panic("editdist: HammingN arguments have unequal length")
	}
	if !containsN(w) && !containsN(d) {
		n, err := matchr.Hamming(w, d)
		if err == nil {
			return n
		}
	}
	count := 0
	for i := 0; i < len(w); i++ {
		if w[i] == 'N' || d[i] == 'N' || w[i] != d[i] {
			count++
		}
	}
	return count
}

func containsN(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 'N' {
			return true
		}
	}
	return false
}

// IndelHammingN computes the minimum 'N'-aware Hamming distance achievable
// by deleting exactly one base from longer so that it aligns with shorter
// (len(longer) == len(shorter)+1). This bounds the edit distance absorbed
// by a single insertion/deletion without the cost of a full alignment
// matrix, which spec.md's DictionaryIndex/SegmentMatcher probing scheme
// (fixed window lengths len-1/len/len+1) does not need — the window
// probing itself is what models the indel; this only scores the best
// single-base alignment within a probed window.
func IndelHammingN(shorter, longer string) int {
	score, _ := IndelHammingNWithSkip(shorter, longer)
	return score
}

// IndelHammingNWithSkip is IndelHammingN plus the index, within longer, of
// the base the best alignment treats as inserted. Callers use skip to tell
// whether the extra base fell at the boundary (skip == 0 or
// skip == len(longer)-1) — and therefore the true segment boundary sits one
// base further in — or in the interior, where the probed window's own
// start/end already is the best available boundary estimate.
func IndelHammingNWithSkip(shorter, longer string) (score, skip int) {
	if len(longer)-len(shorter) != 1 {
		panic("editdist: IndelHammingNWithSkip requires len(longer) == len(shorter)+1")
	}
	n := len(shorter)
	best := n + 1
	bestSkip := 0
	for s := 0; s <= len(longer)-1; s++ {
		d := 0
		for i := 0; i < n; i++ {
			j := i
			if i >= s {
				j = i + 1
			}
			if shorter[i] == 'N' || longer[j] == 'N' || shorter[i] != longer[j] {
				d++
			}
			if d >= best {
				break
			}
		}
		if d < best {
			best = d
			bestSkip = s
		}
	}
	return best, bestSkip
}
