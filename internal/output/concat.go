package output

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/tstohn/scdemux/internal/apperr"
	"github.com/tstohn/scdemux/internal/stats"
)

// Concatenate merges every worker's temp streams for one pattern into the
// final destination files, in worker-index order (sinks must already be
// ordered by worker index), then deletes the temp files. Sinks must be
// Closed before calling this.
func Concatenate(sinks []*Sink, outPath, patternName string) error {
	if len(sinks) == 0 {
		return nil
	}
	if err := concatField(sinks, outPath, patternName+".tsv", func(s *Sink) *stream { return s.tsv }); err != nil {
		return err
	}
	if sinks[0].storeReal {
		if err := concatField(sinks, outPath, patternName+".real.tsv", func(s *Sink) *stream { return s.realTsv }); err != nil {
			return err
		}
	}
	if sinks[0].pat.ContainsPayload() {
		if err := concatField(sinks, outPath, patternName+".fastq", func(s *Sink) *stream { return s.fastq }); err != nil {
			return err
		}
	}
	return nil
}

// ConcatenateFailed merges every worker's failed-lines stream(s) into
// FailedLines.txt (single-end) or FailedLines_FW.txt/FailedLines_RV.txt
// (paired), in worker-index order, then deletes the temp files.
func ConcatenateFailed(sinks []*FailedSink, outPath string, paired bool) error {
	if len(sinks) == 0 {
		return nil
	}
	if !paired {
		return concatField(sinks, outPath, "FailedLines.txt", func(s *FailedSink) *stream { return s.streams[0] })
	}
	if err := concatField(sinks, outPath, "FailedLines_FW.txt", func(s *FailedSink) *stream { return s.streams[0] }); err != nil {
		return err
	}
	return concatField(sinks, outPath, "FailedLines_RV.txt", func(s *FailedSink) *stream { return s.streams[1] })
}

func concatField[T any](items []T, outPath, finalName string, pick func(T) *stream) error {
	dst, err := os.Create(fmt.Sprintf("%s/%s", outPath, finalName))
	if err != nil {
		return apperr.IO(errors.Wrapf(err, "creating final output %s", finalName))
	}
	defer dst.Close()

	for _, it := range items {
		st := pick(it)
		if st == nil {
			continue
		}
		if err := appendDecoded(dst, st); err != nil {
			return apperr.IO(errors.Wrapf(err, "concatenating %s", finalName))
		}
	}

	for _, it := range items {
		if st := pick(it); st != nil {
			os.Remove(st.path)
		}
	}
	return nil
}

func appendDecoded(dst io.Writer, s *stream) error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	var src io.Reader = f
	if s.sz != nil {
		src = snappy.NewReader(f)
	}
	_, err = io.Copy(dst, src)
	return err
}

// WriteMismatchHistograms writes BarcodeMismatches.txt: one row per
// canonical id, id<TAB>count_0<TAB>...<TAB>count_over (spec.md §6).
func WriteMismatchHistograms(outPath string, totals stats.Totals) error {
	f, err := os.Create(fmt.Sprintf("%s/BarcodeMismatches.txt", outPath))
	if err != nil {
		return apperr.IO(errors.Wrap(err, "creating BarcodeMismatches.txt"))
	}
	defer f.Close()

	for _, id := range sortedHistogramIDs(totals) {
		h := totals.Histograms[id]
		line := id
		for _, c := range h {
			line += fmt.Sprintf("\t%d", c)
		}
		if _, err := fmt.Fprintln(f, line); err != nil {
			return apperr.IO(errors.Wrap(err, "writing BarcodeMismatches.txt"))
		}
	}
	return nil
}

func sortedHistogramIDs(totals stats.Totals) []string {
	ids := make([]string, 0, len(totals.Histograms))
	for id := range totals.Histograms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
