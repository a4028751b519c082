// Package demux wires together config, pattern parsing, dictionary
// building, the pattern-matching engine, the worker pool and output
// writing into one end-to-end demultiplexing pass, mirroring the top-level
// sequencing of muscato's cmd/muscato/main.go (collapsed from a chain of
// exec'd binaries into direct function calls, since this module has no
// disk-staged multi-process pipeline to orchestrate).
package demux

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/pkg/profile"

	"github.com/tstohn/scdemux/internal/apperr"
	"github.com/tstohn/scdemux/internal/config"
	"github.com/tstohn/scdemux/internal/dictionary"
	"github.com/tstohn/scdemux/internal/engine"
	"github.com/tstohn/scdemux/internal/output"
	"github.com/tstohn/scdemux/internal/pattern"
	"github.com/tstohn/scdemux/internal/readseq"
	"github.com/tstohn/scdemux/internal/stats"
	"github.com/tstohn/scdemux/internal/worker"
)

// Summary is the run-wide outcome returned to the caller (and logged) once
// every batch has been processed and all output files written.
type Summary struct {
	ReadsProcessed int
	PerfectMatches int
	NoMatches      int
	MultiBarcode   int
	Elapsed        time.Duration
}

// Run executes one full demultiplexing pass as described by cfg, writing
// its outputs under cfg.OutPath and returning a Summary once finished.
func Run(cfg *config.Config) (*Summary, error) {
	if cfg.CPUProfile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(cfg.OutPath)).Stop()
	}

	logger, logFile, err := setupLog(cfg.OutPath)
	if err != nil {
		return nil, err
	}
	defer logFile.Close()

	start := time.Now()
	logger.Printf("starting demultiplexing run")

	targets, err := buildTargets(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "building pattern targets")
	}
	logger.Printf("built %d pattern target(s)", len(targets))

	format := readseq.FASTQ
	if cfg.PlainText {
		format = readseq.PlainText
	}
	paired := cfg.ReverseFileName != ""

	tmpDir, err := os.MkdirTemp(cfg.OutPath, "scdemux-tmp-")
	if err != nil {
		return nil, apperr.IO(errors.Wrap(err, "creating temp directory"))
	}
	defer os.RemoveAll(tmpDir)

	pool := &worker.Pool{
		NumWorkers: cfg.Threads,
		TmpDir:     tmpDir,
		Targets:    targets,
		Paired:     paired,
		Compress:   true,
		StoreReal:  cfg.StoreRealSequences,
	}

	allSinks := make(map[string][]*output.Sink, len(targets))
	var allFailed []*output.FailedSink
	runningTotals := stats.Totals{Histograms: make(map[string]stats.Histogram)}

	ctx := context.Background()
	err = forEachBatch(cfg, format, paired, func(batch []worker.Record) error {
		res, err := pool.Run(ctx, batch)
		if err != nil {
			return err
		}
		for name, sinks := range res.SinksByPattern {
			allSinks[name] = append(allSinks[name], sinks...)
		}
		allFailed = append(allFailed, res.FailedSinks...)
		runningTotals = stats.MergeTotals(runningTotals, res.Totals)
		logger.Printf("processed batch of %d reads (%s so far)", len(batch), humanize.Comma(int64(runningTotals.ReadsProcessed())))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if runningTotals.MultiBarcode > 0 {
		logger.Printf("%s reads had an ambiguous variable-segment match", humanize.Comma(int64(runningTotals.MultiBarcode)))
	}

	for _, t := range targets {
		if err := output.Concatenate(allSinks[t.Pattern.Name()], cfg.OutPath, t.Pattern.Name()); err != nil {
			return nil, errors.Wrapf(err, "concatenating pattern %s output", t.Pattern.Name())
		}
	}
	if err := output.ConcatenateFailed(allFailed, cfg.OutPath, paired); err != nil {
		return nil, errors.Wrap(err, "concatenating failed-lines output")
	}

	totals := runningTotals
	if err := output.WriteMismatchHistograms(cfg.OutPath, totals); err != nil {
		return nil, errors.Wrap(err, "writing mismatch histograms")
	}
	if cfg.PlotMismatches {
		plotPath := filepath.Join(cfg.OutPath, "BarcodeMismatches.png")
		if err := totals.PlotMismatchHistogram(plotPath); err != nil {
			logger.Printf("mismatch histogram plot skipped: %v", err)
		}
	}

	summary := &Summary{
		ReadsProcessed: totals.ReadsProcessed(),
		PerfectMatches: totals.PerfectMatches,
		NoMatches:      totals.NoMatches,
		MultiBarcode:   totals.MultiBarcode,
		Elapsed:        time.Since(start),
	}
	logger.Printf(
		"finished: %s reads processed, %s perfect matches, %s unmatched, elapsed %s",
		humanize.Comma(int64(summary.ReadsProcessed)),
		humanize.Comma(int64(summary.PerfectMatches)),
		humanize.Comma(int64(summary.NoMatches)),
		summary.Elapsed,
	)
	return summary, nil
}

func setupLog(outPath string) (*log.Logger, *os.File, error) {
	if err := os.MkdirAll(outPath, os.ModePerm); err != nil {
		return nil, nil, apperr.IO(errors.Wrap(err, "creating output directory"))
	}
	logName := filepath.Join(outPath, "scdemux.log")
	fid, err := os.Create(logName)
	if err != nil {
		return nil, nil, apperr.IO(errors.Wrap(err, "creating log file"))
	}
	return log.New(fid, "", log.Ltime), fid, nil
}

// buildTargets parses every configured pattern description, reads its
// dictionary file, builds one dictionary.Index per Variable segment, and
// wraps the result in a worker.Target.
func buildTargets(cfg *config.Config) ([]worker.Target, error) {
	specs := cfg.PatternSpecs()
	targets := make([]worker.Target, 0, len(specs))
	for _, spec := range specs {
		pat, indexes, err := buildPattern(spec, cfg.PrefilterThreshold, cfg.MmapThresholdBytes)
		if err != nil {
			return nil, errors.Wrapf(err, "pattern %q", spec.Name)
		}
		eng := engine.New(pat, indexes, cfg.AnalyseUnmappedPatterns)
		targets = append(targets, worker.Target{Pattern: pat, Engine: eng})
	}
	return targets, nil
}

func buildPattern(spec config.PatternSpec, prefilterThreshold int, mmapThresholdBytes int64) (*pattern.Pattern, []*dictionary.Index, error) {
	var dictLines [][]string
	if spec.BarcodeFile != "" {
		var err error
		dictLines, err = pattern.ReadDictionaryFileMmap(spec.BarcodeFile, mmapThresholdBytes)
		if err != nil {
			return nil, nil, err
		}
	}

	payloadIdx, err := pattern.LastWildcardIndex(spec.PatternLine)
	if err != nil {
		return nil, nil, err
	}
	pat, err := pattern.Build(spec.Name, spec.PatternLine, spec.MismatchLine, dictLines, payloadIdx)
	if err != nil {
		return nil, nil, err
	}

	var indexes []*dictionary.Index
	for _, seg := range pat.Segments() {
		if seg.Kind != pattern.Variable {
			continue
		}
		idx, err := dictionary.New(seg.Candidates, prefilterThreshold)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "building dictionary index for segment %q", seg.Name)
		}
		indexes = append(indexes, idx)
	}
	return pat, indexes, nil
}

