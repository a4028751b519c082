package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tstohn/scdemux/internal/engine"
	"github.com/tstohn/scdemux/internal/pattern"
)

func buildTestPattern(t *testing.T, payload bool) *pattern.Pattern {
	t.Helper()
	segs := []pattern.Segment{
		{Kind: pattern.Constant, Name: "ACGT", Literal: "ACGT", Len: 4, Mismatches: 1},
		{Kind: pattern.Wildcard, Name: "*", Len: 4, IsPayload: payload},
	}
	p, err := pattern.New("test", segs)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSinkWritesTSVAndFastq(t *testing.T) {
	dir := t.TempDir()
	pat := buildTestPattern(t, true)
	s, err := Open(dir, 0, pat, true, false)
	if err != nil {
		t.Fatal(err)
	}

	dr := &engine.DemultiplexedRead{
		ReadID: "read1",
		Segments: []engine.SegmentOutput{
			{Start: 0, End: 4, Score: 0, CanonicalID: "ACGT", Matched: true},
			{Start: 4, End: 8, CanonicalID: "TTTT", Matched: true},
		},
		Payload: &engine.Payload{Sequence: "TTTT", Quality: "IIII"},
	}
	if err := s.WriteRecord(dr, "ACGTTTTT"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	tsvData, err := os.ReadFile(s.tsv.path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(tsvData), "read1\tACGT\n") {
		t.Errorf("unexpected tsv contents: %q", tsvData)
	}

	realData, err := os.ReadFile(s.realTsv.path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(realData), "read1\tACGT\n") {
		t.Errorf("unexpected real tsv contents: %q", realData)
	}

	fastqData, err := os.ReadFile(s.fastq.path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(fastqData), "TTTT\n+\nIIII\n") {
		t.Errorf("unexpected fastq contents: %q", fastqData)
	}

	os.Remove(s.tsv.path)
	os.Remove(s.realTsv.path)
	os.Remove(s.fastq.path)
}

func TestSinkWritesHeaderOnlyForWorkerZero(t *testing.T) {
	dir := t.TempDir()
	pat := buildTestPattern(t, true)

	s0, err := Open(dir, 0, pat, false, false)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(s0.tsv.path)
	defer os.Remove(s0.fastq.path)

	data0, err := os.ReadFile(s0.tsv.path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data0), "READNAME\tACGT\n") {
		t.Errorf("worker 0 tsv missing header, got %q", data0)
	}

	s1, err := Open(dir, 1, pat, false, false)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(s1.tsv.path)
	defer os.Remove(s1.fastq.path)

	data1, err := os.ReadFile(s1.tsv.path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data1) != 0 {
		t.Errorf("worker 1 tsv should start empty (no duplicate header), got %q", data1)
	}
}

func TestSinkHeaderOmitsReadnameWithoutPayload(t *testing.T) {
	dir := t.TempDir()
	pat := buildTestPattern(t, false)
	s, err := Open(dir, 0, pat, false, false)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(s.tsv.path)

	data, err := os.ReadFile(s.tsv.path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ACGT\t*\n" {
		t.Errorf("expected header without READNAME column, got %q", data)
	}
}

func TestSinkOmitsPayloadColumnFromTSV(t *testing.T) {
	dir := t.TempDir()
	pat := buildTestPattern(t, true)
	s, err := Open(dir, 0, pat, false, false)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(s.tsv.path)
	defer os.Remove(s.fastq.path)

	cols := s.canonicalColumns([]engine.SegmentOutput{
		{CanonicalID: "ACGT", Matched: true},
		{CanonicalID: "TTTT", Matched: true},
	})
	if len(cols) != 1 || cols[0] != "ACGT" {
		t.Errorf("expected only the non-payload column, got %v", cols)
	}
}

func TestFailedSinkSingleEnd(t *testing.T) {
	dir := t.TempDir()
	fs, err := OpenFailed(dir, 0, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.WriteFailed(0, "some raw line"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(fs.streams[0].path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "some raw line\n" {
		t.Errorf("got %q", data)
	}
	os.Remove(fs.streams[0].path)
}

func TestFailedSinkPairedHasTwoStreams(t *testing.T) {
	dir := t.TempDir()
	fs, err := OpenFailed(dir, 0, 2, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(fs.streams) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(fs.streams))
	}
	if err := fs.WriteFailed(2, "x"); err == nil {
		t.Error("expected out-of-range index to error")
	}
	for _, st := range fs.streams {
		st.close()
		os.Remove(st.path)
	}
}

func TestOpenStreamPathUnderDir(t *testing.T) {
	dir := t.TempDir()
	s, err := openStream(dir, "tag", false)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(s.path) != dir {
		t.Errorf("stream path %q not under dir %q", s.path, dir)
	}
	s.close()
	os.Remove(s.path)
}
