package readseq

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/tstohn/scdemux/internal/apperr"
)

// Format selects how Reader groups input lines into Reads.
type Format int

const (
	// FASTQ groups every four lines into one Read: name, sequence,
	// separator, quality (SPEC_FULL.md §2, grounded on
	// utils.ReadInSeq's j%4 line dispatch).
	FASTQ Format = iota
	// PlainText treats each line as one Read's sequence, synthesizing
	// both ID (the 1-based line number) and Quality.
	PlainText
)

// Reader reads Reads from one input file, transparently decompressing
// gzip-suffixed paths. It is not safe for concurrent use; WorkerPool
// partitions a single reader's output into batches before fan-out.
type Reader struct {
	closer  io.Closer
	scanner *bufio.Scanner
	format  Format
	lineNum int
}

// Open opens path for reading as format, transparently wrapping it in a
// gzip.Reader when the name ends in ".gz" (klauspost/compress/gzip; the
// OutputSink temp streams use snappy instead).
func Open(path string, format Format) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.IO(errors.Wrap(err, "opening read file"))
	}

	var src io.Reader = f
	var closer io.Closer = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, apperr.IO(errors.Wrap(err, "opening gzip read file"))
		}
		src = gz
		closer = multiCloser{gz, f}
	}

	sc := bufio.NewScanner(src)
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 16*1024*1024)

	return &Reader{closer: closer, scanner: sc, format: format}, nil
}

type multiCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (m multiCloser) Close() error {
	if err := m.gz.Close(); err != nil {
		m.f.Close()
		return err
	}
	return m.f.Close()
}

// Close releases the underlying file (and gzip reader, if any).
func (r *Reader) Close() error { return r.closer.Close() }

// Next reads one Read. It returns (Read{}, false, nil) at clean EOF.
func (r *Reader) Next() (Read, bool, error) {
	switch r.format {
	case FASTQ:
		return r.nextFastq()
	default:
		return r.nextPlainText()
	}
}

func (r *Reader) nextFastq() (Read, bool, error) {
	var lines [4]string
	for j := 0; j < 4; j++ {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return Read{}, false, apperr.IO(errors.Wrap(err, "reading FASTQ record"))
			}
			if j == 0 {
				return Read{}, false, nil
			}
			return Read{}, false, apperr.IO(errors.New("readseq: truncated FASTQ record at EOF"))
		}
		lines[j] = r.scanner.Text()
	}
	r.lineNum += 4

	name := strings.TrimPrefix(lines[0], "@")
	seq := lines[1]
	qual := lines[3]
	if qual == "" {
		qual = syntheticQuality(len(seq))
	}
	return Read{ID: name, Sequence: seq, Quality: qual}, true, nil
}

func (r *Reader) nextPlainText() (Read, bool, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return Read{}, false, apperr.IO(errors.Wrap(err, "reading plain-text read"))
		}
		return Read{}, false, nil
	}
	r.lineNum++
	seq := r.scanner.Text()
	return Read{ID: strconv.Itoa(r.lineNum), Sequence: seq, Quality: syntheticQuality(len(seq))}, true, nil
}
