// Package readseq produces Reads from FASTQ or plain-text input, single or
// paired-end, optionally gzip-compressed (SPEC_FULL.md §2/§3 expansion),
// grounded on muscato's utils.ReadInSeq.
package readseq

import "strings"

// Read is one sequencing read: its identifier, base sequence, and quality
// string (synthesized when the source format carries none).
type Read struct {
	ID       string
	Sequence string
	Quality  string
}

func syntheticQuality(n int) string {
	return strings.Repeat("I", n) // Phred 40, matching the original's always-four-lines FASTQ convention
}

// RawRecord reconstructs the input text this Read was parsed from, for
// verbatim pass-through to a failed-lines stream (spec.md §4.5).
func (r Read) RawRecord(format Format) string {
	if format == PlainText {
		return r.Sequence
	}
	return "@" + r.ID + "\n" + r.Sequence + "\n+\n" + r.Quality
}
