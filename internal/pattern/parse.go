package pattern

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tstohn/scdemux/internal/apperr"
)

var upper = cases.Upper(language.Und)

// segSpec is the raw, unclassified form of one "[...]" chunk of the
// pattern description, mirroring the original's
// std::vector<std::pair<std::string, char>> patterns.
type segSpec struct {
	raw  string // the literal content between '[' and ']', upper-cased
	kind Kind
}

// ParsePatternString splits a pattern description of the form
// "[seg1][seg2]...[segN]" into its ordered segSpecs, classifying each
// chunk as Constant ('c'), Variable ('v' — all 'N') or Wildcard
// ('w' — all 'X'). Mixing N/X/bases within one segment, or whitespace
// inside a segment, is rejected — mirroring parseBarcodeData's checks.
func ParsePatternString(patternLine string) ([]segSpec, error) {
	var specs []segSpec
	rest := patternLine

	for len(rest) > 0 {
		if rest[0] != '[' {
			return nil, apperr.Configf("malformed pattern %q: expected '[' at %q", patternLine, rest)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, apperr.Configf("malformed pattern %q: unterminated '['", patternLine)
		}
		seg := upper.String(rest[1:end])
		rest = rest[end+1:]

		if seg == "" {
			return nil, apperr.Configf("malformed pattern %q: empty segment", patternLine)
		}

		kind, err := classify(seg)
		if err != nil {
			return nil, apperr.Config(errors.Wrapf(err, "pattern %q segment %q", patternLine, seg))
		}
		specs = append(specs, segSpec{raw: seg, kind: kind})
	}

	return specs, nil
}

// LastWildcardIndex returns the index of the last Wildcard segment in
// patternLine, or -1 if it has none. Build's caller uses this to default
// the payload wildcard to the pattern's final wildcard segment when it
// does not otherwise designate one.
func LastWildcardIndex(patternLine string) (int, error) {
	specs, err := ParsePatternString(patternLine)
	if err != nil {
		return -1, err
	}
	last := -1
	for i, s := range specs {
		if s.kind == Wildcard {
			last = i
		}
	}
	return last, nil
}

// classify determines whether a segment's characters are entirely bases
// (Constant), entirely 'N' (Variable) or entirely 'X' (Wildcard),
// rejecting whitespace and mixed alphabets.
func classify(seg string) (Kind, error) {
	var sawBase, sawN, sawX bool
	for _, c := range seg {
		switch {
		case c == 'A' || c == 'C' || c == 'G' || c == 'T':
			sawBase = true
		case c == 'N':
			sawN = true
		case c == 'X':
			sawX = true
		case c == ' ' || c == '\t' || c == '\n':
			return 0, errors.New("whitespace is not permitted inside a segment")
		default:
			return 0, errors.Errorf("character %q is not a base (A,C,G,T), N or X", c)
		}
	}

	n := 0
	if sawBase {
		n++
	}
	if sawN {
		n++
	}
	if sawX {
		n++
	}
	if n > 1 {
		return 0, errors.New("a segment may not mix bases, N and X")
	}

	switch {
	case sawN:
		return Variable, nil
	case sawX:
		return Wildcard, nil
	default:
		return Constant, nil
	}
}

// ParseMismatchLine splits a comma-separated list of non-negative integers.
func ParseMismatchLine(mismatchLine string) ([]int, error) {
	toks := strings.Split(mismatchLine, ",")
	out := make([]int, len(toks))
	for i, t := range toks {
		v, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil, apperr.Config(errors.Wrapf(err, "parsing mismatch value %q", t))
		}
		if v < 0 {
			return nil, apperr.Configf("mismatch value %d must be non-negative", v)
		}
		out[i] = v
	}
	return out, nil
}

// ReadDictionaryFile reads one comma-separated candidate line per variable
// segment, in order of occurrence, validating that every base is ACGT. It
// always reads the file fully into memory via the standard library.
func ReadDictionaryFile(path string) ([][]string, error) {
	return ReadDictionaryFileMmap(path, -1)
}

// ReadDictionaryFileMmap is ReadDictionaryFile's large-file counterpart:
// when path's size exceeds mmapThresholdBytes, the file is memory-mapped
// instead of copied into a read buffer, avoiding a full-file allocation
// for dictionaries too large to comfortably duplicate (SPEC_FULL.md's
// large-dictionary enrichment of spec §4.1). Pass a negative threshold to
// always use the buffered path.
func ReadDictionaryFileMmap(path string, mmapThresholdBytes int64) ([][]string, error) {
	fid, err := os.Open(path)
	if err != nil {
		return nil, apperr.IO(errors.Wrap(err, "opening dictionary file"))
	}
	defer fid.Close()

	var src io.Reader = fid
	if mmapThresholdBytes >= 0 {
		info, err := fid.Stat()
		if err != nil {
			return nil, apperr.IO(errors.Wrap(err, "statting dictionary file"))
		}
		if info.Size() > mmapThresholdBytes {
			m, err := mmap.Map(fid, mmap.RDONLY, 0)
			if err != nil {
				return nil, apperr.IO(errors.Wrap(err, "memory-mapping dictionary file"))
			}
			defer m.Unmap()
			src = bytes.NewReader(m)
		}
	}

	var lines [][]string
	sc := bufio.NewScanner(src)
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		toks := strings.Split(line, ",")
		for i, t := range toks {
			toks[i] = upper.String(strings.TrimSpace(t))
			if err := validateBases(toks[i]); err != nil {
				return nil, apperr.Config(errors.Wrapf(err, "dictionary file %s line %d", path, len(lines)+1))
			}
		}
		lines = append(lines, toks)
	}
	if err := sc.Err(); err != nil {
		return nil, apperr.IO(errors.Wrap(err, "reading dictionary file"))
	}
	return lines, nil
}

func validateBases(s string) error {
	if s == "" {
		return errors.New("empty candidate sequence")
	}
	for _, c := range s {
		if c != 'A' && c != 'C' && c != 'G' && c != 'T' {
			if c == ' ' || c == '\t' {
				return errors.New("whitespace in candidate sequence")
			}
			return errors.Errorf("character %q is not a base (A,C,G,T)", c)
		}
	}
	return nil
}

// Build assembles a Pattern from a pattern description, a mismatch list,
// and the dictionary lines read for its variable segments (in order),
// mirroring generate_barcode_patterns. payloadIndex, if >= 0, designates
// which Wildcard segment (by position among all segments) carries the
// biological payload; pass -1 for none.
func Build(name, patternLine, mismatchLine string, dictLines [][]string, payloadIndex int) (*Pattern, error) {
	specs, err := ParsePatternString(patternLine)
	if err != nil {
		return nil, err
	}
	mismatches, err := ParseMismatchLine(mismatchLine)
	if err != nil {
		return nil, err
	}
	if len(specs) != len(mismatches) {
		return nil, apperr.Configf("number of pattern segments (%d) does not match number of mismatch values (%d)", len(specs), len(mismatches))
	}

	varIdx := 0
	segs := make([]Segment, len(specs))
	for i, sp := range specs {
		s := Segment{Kind: sp.kind, Mismatches: mismatches[i]}
		switch sp.kind {
		case Constant:
			s.Literal = sp.raw
			s.Len = len(sp.raw)
			s.Name = sp.raw
		case Variable:
			if varIdx >= len(dictLines) {
				return nil, apperr.Configf("pattern %q: more variable segments than dictionary lines", name)
			}
			s.Candidates = dictLines[varIdx]
			if len(s.Candidates) > 0 {
				s.Len = len(s.Candidates[0])
			}
			s.Name = fmt.Sprintf("BC%d", varIdx+1)
			varIdx++
		case Wildcard:
			s.Len = len(sp.raw)
			if i == payloadIndex {
				s.IsPayload = true
				s.Name = "DNA"
			} else {
				s.Name = fmt.Sprintf("WC%d", i+1)
			}
		}
		segs[i] = s
	}
	if varIdx != len(dictLines) {
		return nil, apperr.Configf("pattern %q: %d variable segments but %d dictionary lines", name, varIdx, len(dictLines))
	}

	return New(name, segs)
}

// ShortName returns filepath.Base(name) when name looks like a path,
// mirroring OutputFileWriter.cpp's header-shortening behavior for
// dictionary-file-derived segment names.
func ShortName(name string) string {
	if strings.ContainsAny(name, "/\\") {
		return filepath.Base(name)
	}
	return name
}
