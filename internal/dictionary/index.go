// Package dictionary holds the alternative sequences of a Variable segment
// and answers whether a read window matches one of them uniquely, several
// ambiguously, or none at all (spec.md §4.1).
package dictionary

import (
	"github.com/chmduquesne/rollinghash/buzhash32"
	"github.com/dgryski/go-farm"
	gods "github.com/golang-collections/go-datastructures/bitarray"
	"github.com/pkg/errors"

	"github.com/tstohn/scdemux/internal/editdist"
)

// Verdict is the three-way outcome DictionaryIndex reports for a query.
type Verdict int

const (
	NoMatch Verdict = iota
	Unique
	Ambiguous
)

// Result is the outcome of a single Lookup.
type Result struct {
	Verdict Verdict
	// Candidate is only meaningful when Verdict == Unique. Score is the
	// best tied score found and is meaningful for both Unique and
	// Ambiguous, so callers probing multiple windows can compare an
	// Ambiguous verdict's score against a Unique verdict latched from a
	// different probe.
	Candidate string
	Score     int
}

// Index holds one Variable segment's dictionary. Candidates must all share
// the same length (enforced by pattern.Segment.Validate before an Index is
// built from it). Above PrefilterThreshold candidates, Index builds a
// seed-based shortlist so Lookup need not score every candidate; below it,
// Lookup falls back to a plain linear scan, which is simplest and fast
// enough at the sizes muscato's own DictionaryIndex-equivalent (the
// bucketed hash target list in muscato_screen) targets without a filter.
type Index struct {
	candidates []string
	length     int

	prefilter *seedPrefilter
}

// New builds an Index. prefilterThreshold is the candidate-count cutoff
// above which a Bloom/seed prefilter is built (SPEC_FULL.md §4.1a);
// pass 0 to always build it, or a negative number to never build it.
func New(candidates []string, prefilterThreshold int) (*Index, error) {
	if len(candidates) == 0 {
		return nil, errors.New("dictionary: empty candidate set")
	}
	length := len(candidates[0])
	for _, c := range candidates {
		if len(c) != length {
			return nil, errors.Errorf("dictionary: candidate %q length %d != %d", c, len(c), length)
		}
	}

	idx := &Index{candidates: candidates, length: length}
	if prefilterThreshold >= 0 && len(candidates) > prefilterThreshold {
		idx.prefilter = buildSeedPrefilter(candidates, length)
	}
	return idx, nil
}

// Length returns the dictionary's shared candidate length.
func (idx *Index) Length() int { return idx.length }

// Lookup scores a read window w (of length Length(), Length()-1, or
// Length()+1) against every candidate within budget m and classifies the
// outcome per spec.md §4.1. N in w counts as a mismatch against any base,
// including N (editdist.HammingN's rule, applied identically here).
func (idx *Index) Lookup(w string, m int) Result {
	switch len(w) - idx.length {
	case 0:
		return idx.lookupEqualLength(w, m)
	case -1, 1:
		return idx.lookupIndel(w, m)
	default:
		return Result{Verdict: NoMatch}
	}
}

func (idx *Index) lookupEqualLength(w string, m int) Result {
	candidates := idx.candidates
	if idx.prefilter != nil {
		candidates = idx.prefilter.shortlist(w)
	}
	return scoreAll(candidates, w, m, func(c string) int {
		return editdist.HammingN(w, c)
	})
}

func (idx *Index) lookupIndel(w string, m int) Result {
	// Length-mismatched probes (the ±1 indel-absorbing windows) bypass the
	// seed prefilter: they are a minority of queries and the prefilter's
	// seed alignment assumes equal length. The indel costs one edit, except
	// when a longer window's extra base sits at either edge, where the
	// matcher trims it and the remaining span has the candidate's length.
	if len(w) < idx.length {
		return scoreAll(idx.candidates, w, m, func(c string) int {
			return editdist.IndelHammingN(w, c) + 1
		})
	}
	return scoreAll(idx.candidates, w, m, func(c string) int {
		score, skip := editdist.IndelHammingNWithSkip(c, w)
		if skip != 0 && skip != len(w)-1 {
			score++
		}
		return score
	})
}

func scoreAll(candidates []string, w string, m int, score func(string) int) Result {
	bestScore := m + 1
	bestCandidate := ""
	ties := 0
	for _, c := range candidates {
		s := score(c)
		if s > m {
			continue
		}
		switch {
		case s < bestScore:
			bestScore = s
			bestCandidate = c
			ties = 1
		case s == bestScore:
			ties++
		}
	}
	switch {
	case ties == 0:
		return Result{Verdict: NoMatch}
	case ties == 1:
		return Result{Verdict: Unique, Candidate: bestCandidate, Score: bestScore}
	default:
		return Result{Verdict: Ambiguous, Score: bestScore}
	}
}

// seedPrefilter partitions each equal-length candidate into k non-overlapping
// seeds and indexes each seed's farm.Hash64 into a bucket of candidate
// indices, backed by a bitarray.BitArray Bloom filter keyed by the seed's
// farm hash folded with a buzhash32 witness (bloomKey) to reject a seed
// with O(1) work before the bucket map is even consulted. Grounded on muscato_screen's rolling-hash
// bucket screen, generalized from k-mers-against-a-genome to
// seeds-against-a-barcode-dictionary.
type seedPrefilter struct {
	seedLen int
	nSeeds  int
	bloom   gods.BitArray
	bucket  map[uint64][]int
	cands   []string
}

func buildSeedPrefilter(candidates []string, length int) *seedPrefilter {
	// A correct match within budget m must leave at least one seed of this
	// many consecutive bases untouched by a mismatch, by pigeonhole over
	// the worst-case m we size for: treat every dictionary as sized for
	// up to length/4+1 mismatches, which keeps seedLen >= 2 for any
	// barcode of length >= 8 while staying conservative for shorter ones.
	maxM := length/4 + 1
	seedLen := length / (maxM + 1)
	if seedLen < 1 {
		seedLen = 1
	}
	nSeeds := length / seedLen

	pf := &seedPrefilter{
		seedLen: seedLen,
		nSeeds:  nSeeds,
		bloom:   gods.NewBitArray(uint64(len(candidates)) * 16),
		bucket:  make(map[uint64][]int, len(candidates)*nSeeds),
		cands:   candidates,
	}
	for ci, c := range candidates {
		for p := 0; p < nSeeds; p++ {
			seed := c[p*seedLen : (p+1)*seedLen]
			h := seedHash(seed)
			pf.bloom.SetBit(bloomKey(h, seed) % pf.bloom.Capacity())
			pf.bucket[h] = append(pf.bucket[h], ci)
		}
	}
	return pf
}

func seedHash(seed string) uint64 {
	return farm.Hash64([]byte(seed))
}

// bloomKey folds a cheap secondary witness computed with the rolling-hash
// library into the bloom bit position, so a single library's collision (a
// farm hash collision) does not alone produce a false positive.
func bloomKey(h uint64, seed string) uint64 {
	return h ^ uint64(buzhashCheck(seed))
}

func buzhashCheck(seed string) uint32 {
	bz := buzhash32.New()
	bz.Write([]byte(seed))
	return bz.Sum32()
}

func (pf *seedPrefilter) shortlist(w string) []string {
	if len(w) != pf.nSeeds*pf.seedLen {
		return pf.cands
	}
	seen := make(map[int]bool)
	var out []string
	for p := 0; p < pf.nSeeds; p++ {
		seed := w[p*pf.seedLen : (p+1)*pf.seedLen]
		h := seedHash(seed)
		ok, err := pf.bloom.GetBit(bloomKey(h, seed) % pf.bloom.Capacity())
		if err != nil || !ok {
			continue
		}
		for _, ci := range pf.bucket[h] {
			if !seen[ci] {
				seen[ci] = true
				out = append(out, pf.cands[ci])
			}
		}
	}
	if out == nil {
		// No seed survived the filter: no candidate can be within budget
		// on the pigeonhole argument used to size seedLen, but fall back
		// to a full scan rather than assert it — cheap insurance is not
		// needed here, correctness is: an unusual m can violate the bound.
		return pf.cands
	}
	return out
}
