package demux

import (
	"github.com/pkg/errors"

	"github.com/tstohn/scdemux/internal/config"
	"github.com/tstohn/scdemux/internal/readseq"
	"github.com/tstohn/scdemux/internal/worker"
)

// forEachBatch streams cfg.ReadFileName (and, in paired mode,
// cfg.ReverseFileName) in cfg.BatchSize-sized chunks, invoking fn once per
// chunk — the contiguous-batch dispatch shape spec.md §4.5 describes,
// grounded on muscato_screen's scanner-driven main loop.
func forEachBatch(cfg *config.Config, format readseq.Format, paired bool, fn func([]worker.Record) error) error {
	if paired {
		return forEachPairedBatch(cfg, format, fn)
	}
	return forEachSingleBatch(cfg, format, fn)
}

func forEachSingleBatch(cfg *config.Config, format readseq.Format, fn func([]worker.Record) error) error {
	r, err := readseq.Open(cfg.ReadFileName, format)
	if err != nil {
		return errors.Wrap(err, "opening read file")
	}
	defer r.Close()

	batch := make([]worker.Record, 0, cfg.BatchSize)
	for {
		read, ok, err := r.Next()
		if err != nil {
			return errors.Wrap(err, "reading input")
		}
		if !ok {
			break
		}
		batch = append(batch, worker.Record{Fwd: read, RawFwd: read.RawRecord(format)})
		if len(batch) == cfg.BatchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

func forEachPairedBatch(cfg *config.Config, format readseq.Format, fn func([]worker.Record) error) error {
	pr, err := readseq.OpenPaired(cfg.ReadFileName, cfg.ReverseFileName, format)
	if err != nil {
		return errors.Wrap(err, "opening paired read files")
	}
	defer pr.Close()

	batch := make([]worker.Record, 0, cfg.BatchSize)
	for {
		fwd, rev, ok, err := pr.Next()
		if err != nil {
			return errors.Wrap(err, "reading paired input")
		}
		if !ok {
			break
		}
		batch = append(batch, worker.Record{
			Fwd: fwd, Rev: rev, Paired: true,
			RawFwd: fwd.RawRecord(format), RawRev: rev.RawRecord(format),
		})
		if len(batch) == cfg.BatchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
