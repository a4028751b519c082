// Package output writes DemultiplexedReads to per-worker temp streams —
// barcode TSV, payload FASTQ, failed-lines — and concatenates them into
// the final destination files at shutdown (spec.md §4.6).
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tstohn/scdemux/internal/apperr"
	"github.com/tstohn/scdemux/internal/engine"
	"github.com/tstohn/scdemux/internal/pattern"
)

// stream bundles a temp file's handle, its buffered/compressed writer, and
// the path so it can be reopened for concatenation once closed.
type stream struct {
	path string
	file *os.File
	w    io.Writer
	bw   *bufio.Writer
	sz   *snappy.Writer // nil unless compression is enabled
}

func openStream(dir, name string, compress bool) (*stream, error) {
	path := fmt.Sprintf("%s/%s.%s.tmp", dir, name, uuid.NewString())
	f, err := os.Create(path)
	if err != nil {
		return nil, apperr.IO(errors.Wrapf(err, "opening temp stream %s", name))
	}
	s := &stream{path: path, file: f}
	if compress {
		s.sz = snappy.NewBufferedWriter(f)
		s.w = s.sz
	} else {
		s.bw = bufio.NewWriter(f)
		s.w = s.bw
	}
	return s, nil
}

func (s *stream) writeLine(line string) error {
	_, err := io.WriteString(s.w, line)
	return err
}

func (s *stream) close() error {
	if s.sz != nil {
		if err := s.sz.Close(); err != nil {
			s.file.Close()
			return err
		}
	} else if s.bw != nil {
		if err := s.bw.Flush(); err != nil {
			s.file.Close()
			return err
		}
	}
	return s.file.Close()
}

// Sink is one worker's set of temp output streams for one Pattern.
// Exactly one Sink per (worker, pattern) pair is live at a time; WorkerPool
// owns the startup barrier that opens every worker's sinks before any read
// is dispatched.
type Sink struct {
	workerIdx   int
	patternName string
	pat         *pattern.Pattern
	compress    bool
	storeReal   bool

	tsv     *stream
	realTsv *stream
	fastq   *stream

	seqNum int
}

// Open creates all temp streams for one (workerIdx, pattern) pair in
// tmpDir.
func Open(tmpDir string, workerIdx int, pat *pattern.Pattern, storeReal, compress bool) (*Sink, error) {
	s := &Sink{workerIdx: workerIdx, patternName: pat.Name(), pat: pat, compress: compress, storeReal: storeReal}

	tag := fmt.Sprintf("%s.w%d", pat.Name(), workerIdx)

	var err error
	if s.tsv, err = openStream(tmpDir, tag+".tsv", compress); err != nil {
		return nil, err
	}
	// Only worker 0's stream carries the header: Concatenate merges every
	// worker's stream for a pattern in worker-index order into one file,
	// so a header written by every worker would repeat once per worker.
	if workerIdx == 0 {
		if err := s.tsv.writeLine(s.headerLine()); err != nil {
			return nil, apperr.IO(errors.Wrap(err, "writing TSV header"))
		}
	}
	if storeReal {
		if s.realTsv, err = openStream(tmpDir, tag+".real", compress); err != nil {
			return nil, err
		}
		if workerIdx == 0 {
			if err := s.realTsv.writeLine(s.headerLine()); err != nil {
				return nil, apperr.IO(errors.Wrap(err, "writing real-sequence TSV header"))
			}
		}
	}
	if pat.ContainsPayload() {
		if s.fastq, err = openStream(tmpDir, tag+".fastq", compress); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// headerLine builds the TSV header row: an optional leading READNAME
// column when the pattern carries a payload, followed by one column per
// non-payload segment holding its (possibly path-shortened) name, mirroring
// OutputFileWriter.cpp's initialize_output_for_pattern.
func (s *Sink) headerLine() string {
	var names []string
	for _, seg := range s.pat.Segments() {
		if seg.Kind == pattern.Wildcard && seg.IsPayload {
			continue
		}
		names = append(names, pattern.ShortName(seg.Name))
	}
	var b strings.Builder
	if s.pat.ContainsPayload() {
		b.WriteString("READNAME\t")
	}
	b.WriteString(strings.Join(names, "\t"))
	b.WriteByte('\n')
	return b.String()
}

// canonicalColumns is one column per non-payload segment, the corrected
// canonical_id, in pattern order.
func (s *Sink) canonicalColumns(segments []engine.SegmentOutput) []string {
	cols := make([]string, 0, len(segments)+1)
	for i, seg := range s.pat.Segments() {
		if seg.Kind == pattern.Wildcard && seg.IsPayload {
			continue
		}
		cols = append(cols, segments[i].CanonicalID)
	}
	return cols
}

// observedColumns is the StoreRealSequences counterpart: the as-observed
// read span for each non-payload segment, before Variable-segment
// correction to its dictionary entry (mapping.cpp's write_file).
func (s *Sink) observedColumns(segments []engine.SegmentOutput, readSeq string) []string {
	cols := make([]string, 0, len(segments)+1)
	for i, seg := range s.pat.Segments() {
		if seg.Kind == pattern.Wildcard && seg.IsPayload {
			continue
		}
		so := segments[i]
		if !so.Matched || so.Start < 0 || so.End > len(readSeq) || so.Start > so.End {
			cols = append(cols, "")
			continue
		}
		cols = append(cols, readSeq[so.Start:so.End])
	}
	return cols
}

// WriteRecord appends dr's TSV row and, if the pattern carries a payload,
// a FASTQ record named "{worker}_{seq}_{readID}". readSeq is the original
// read, needed only when StoreRealSequences is enabled.
func (s *Sink) WriteRecord(dr *engine.DemultiplexedRead, readSeq string) error {
	var b strings.Builder
	if s.pat.ContainsPayload() {
		b.WriteString(dr.ReadID)
		b.WriteByte('\t')
	}
	b.WriteString(strings.Join(s.canonicalColumns(dr.Segments), "\t"))
	b.WriteByte('\n')
	if err := s.tsv.writeLine(b.String()); err != nil {
		return apperr.IO(errors.Wrap(err, "writing TSV record"))
	}

	if s.storeReal {
		var rb strings.Builder
		if s.pat.ContainsPayload() {
			rb.WriteString(dr.ReadID)
			rb.WriteByte('\t')
		}
		rb.WriteString(strings.Join(s.observedColumns(dr.Segments, readSeq), "\t"))
		rb.WriteByte('\n')
		if err := s.realTsv.writeLine(rb.String()); err != nil {
			return apperr.IO(errors.Wrap(err, "writing real-sequence TSV record"))
		}
	}

	if dr.Payload != nil {
		name := fmt.Sprintf("%d_%d_%s", s.workerIdx, s.seqNum, dr.ReadID)
		s.seqNum++
		rec := fmt.Sprintf("@%s\n%s\n+\n%s\n", name, dr.Payload.Sequence, dr.Payload.Quality)
		if err := s.fastq.writeLine(rec); err != nil {
			return apperr.IO(errors.Wrap(err, "writing FASTQ record"))
		}
	}
	return nil
}

// Close flushes and closes every stream owned by this Sink. It does not
// delete the temp files — Concatenate does that once they've been merged.
func (s *Sink) Close() error {
	for _, st := range []*stream{s.tsv, s.realTsv, s.fastq} {
		if st == nil {
			continue
		}
		if err := st.close(); err != nil {
			return err
		}
	}
	return nil
}

// FailedSink is one worker's temp failed-lines stream(s): one file for
// single-end input, two (forward/reverse) for paired. It is independent of
// any Pattern — a read is routed here only once no configured Pattern
// matched it.
type FailedSink struct {
	streams []*stream
}

// OpenFailed creates the failed-lines temp stream(s) for one worker.
// nStreams is 1 for single-end input, 2 for paired.
func OpenFailed(tmpDir string, workerIdx, nStreams int, compress bool) (*FailedSink, error) {
	fs := &FailedSink{streams: make([]*stream, nStreams)}
	for i := range fs.streams {
		st, err := openStream(tmpDir, fmt.Sprintf("failed.w%d.%d", workerIdx, i), compress)
		if err != nil {
			return nil, err
		}
		fs.streams[i] = st
	}
	return fs, nil
}

// WriteFailed appends rawLine verbatim to the failed-lines stream at
// streamIdx (0 for single-end/forward, 1 for reverse in paired mode).
func (fs *FailedSink) WriteFailed(streamIdx int, rawLine string) error {
	if streamIdx >= len(fs.streams) {
		return errors.Errorf("output: failed-line stream index %d out of range", streamIdx)
	}
	if err := fs.streams[streamIdx].writeLine(rawLine + "\n"); err != nil {
		return apperr.IO(errors.Wrap(err, "writing failed line"))
	}
	return nil
}

// Close flushes and closes every failed-lines stream (one, or two when
// paired).
func (fs *FailedSink) Close() error {
	for _, st := range fs.streams {
		if err := st.close(); err != nil {
			return err
		}
	}
	return nil
}
