// Package worker fans a batch of reads out across a fixed pool of
// goroutines, each running every configured Pattern's Engine against its
// own slice of the batch and writing to its own per-pattern Sink plus a
// shared-per-worker FailedSink (spec.md §4.5, mirroring muscato_screen's
// search/harvest goroutine fan-out, rebuilt on errgroup instead of a raw
// WaitGroup+channel pair).
package worker

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"modernc.org/mathutil"

	"github.com/tstohn/scdemux/internal/engine"
	"github.com/tstohn/scdemux/internal/output"
	"github.com/tstohn/scdemux/internal/pattern"
	"github.com/tstohn/scdemux/internal/readseq"
	"github.com/tstohn/scdemux/internal/stats"
)

// Record is one dispatch unit: a forward read and, in paired mode, its
// mate. RawFwd/RawRev are the verbatim input records, kept only so an
// unmatched Record can be written to the failed-lines stream unmodified.
type Record struct {
	Fwd, Rev       readseq.Read
	Paired         bool
	RawFwd, RawRev string
}

// Target is one configured Pattern ready to be run against a batch: its
// Engine and the name under which its output files are written.
type Target struct {
	Pattern *pattern.Pattern
	Engine  *engine.Engine
}

// Pool runs Targets against batches of Records across NumWorkers
// goroutines. TmpDir holds the per-worker temp streams Sinks create;
// Compress and StoreReal are forwarded to output.Open.
type Pool struct {
	NumWorkers int
	TmpDir     string
	Targets    []Target
	Paired     bool
	Compress   bool
	StoreReal  bool
}

// workerState is the per-worker resources opened once, under the startup
// barrier, before any batch is dispatched to that worker.
type workerState struct {
	idx    int
	sinks  map[string]*output.Sink // keyed by pattern name
	failed *output.FailedSink
	aggr   *stats.Aggregator
}

// Result is the run-wide outcome of Run: per-worker Sinks (ready for
// output.Concatenate), per-worker FailedSinks (ready for
// output.ConcatenateFailed) and the merged stats.Totals.
type Result struct {
	SinksByPattern map[string][]*output.Sink
	FailedSinks    []*output.FailedSink
	Totals         stats.Totals
}

// Run partitions batch into p.NumWorkers contiguous sub-slices (spec.md
// §4.5's "contiguous partition", not round-robin, so output order within
// a worker's temp stream matches input order) and processes each
// sub-slice on its own goroutine. Every worker's Sinks/FailedSink are
// opened before any goroutine begins matching reads, so a failure opening
// temp files aborts the whole batch rather than partially writing it.
func (p *Pool) Run(ctx context.Context, batch []Record) (*Result, error) {
	n := mathutil.Min(p.NumWorkers, len(batch))
	if n < 1 {
		n = 1
	}

	states := make([]*workerState, n)
	for i := range states {
		ws, err := p.openWorker(i)
		if err != nil {
			p.closeWorkers(states[:i])
			return nil, errors.Wrapf(err, "opening worker %d streams", i)
		}
		states[i] = ws
	}

	shares := partition(len(batch), n)
	eg, _ := errgroup.WithContext(ctx)
	offset := 0
	for i := 0; i < n; i++ {
		i := i
		lo, hi := offset, offset+shares[i]
		offset = hi
		eg.Go(func() error {
			return p.runWorker(states[i], batch[lo:hi])
		})
	}

	runErr := eg.Wait()
	closeErr := p.closeWorkers(states)
	if runErr != nil {
		return nil, runErr
	}
	if closeErr != nil {
		return nil, closeErr
	}

	return p.collect(states), nil
}

// partition splits total into n nearly-equal, contiguous shares.
func partition(total, n int) []int {
	shares := make([]int, n)
	base := total / n
	rem := total % n
	for i := range shares {
		shares[i] = base
		if i < rem {
			shares[i]++
		}
	}
	return shares
}

func (p *Pool) openWorker(idx int) (*workerState, error) {
	ws := &workerState{
		idx:   idx,
		sinks: make(map[string]*output.Sink, len(p.Targets)),
		aggr:  stats.New(),
	}
	for _, t := range p.Targets {
		s, err := output.Open(p.TmpDir, idx, t.Pattern, p.StoreReal, p.Compress)
		if err != nil {
			return nil, err
		}
		ws.sinks[t.Pattern.Name()] = s
	}
	nFailedStreams := 1
	if p.Paired {
		nFailedStreams = 2
	}
	fs, err := output.OpenFailed(p.TmpDir, idx, nFailedStreams, p.Compress)
	if err != nil {
		return nil, err
	}
	ws.failed = fs
	return ws, nil
}

func (p *Pool) closeWorkers(states []*workerState) error {
	var first error
	for _, ws := range states {
		if ws == nil {
			continue
		}
		for _, s := range ws.sinks {
			if err := s.Close(); err != nil && first == nil {
				first = err
			}
		}
		if ws.failed != nil {
			if err := ws.failed.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// runWorker matches every Record in share against every Target in
// pattern order; a Record counts as demultiplexed by the first Target
// that resolves it (spec.md supplemented "multiple named patterns per
// run" behavior). A Record no Target resolves is written to the
// worker's FailedSink.
func (p *Pool) runWorker(ws *workerState, share []Record) error {
	for _, rec := range share {
		matched := false
		for _, t := range p.Targets {
			dr, fail := t.Engine.Run(rec.Fwd.ID, rec.Fwd.Sequence, rec.Fwd.Quality, ws.aggr.RecordAmbiguous)
			if fail != nil {
				continue
			}
			sink := ws.sinks[t.Pattern.Name()]
			if err := sink.WriteRecord(dr, rec.Fwd.Sequence); err != nil {
				return errors.Wrapf(err, "writing record %s", rec.Fwd.ID)
			}
			recordOutcome(ws.aggr, dr, t.Pattern)
			matched = true
			break
		}
		if !matched {
			if err := p.writeFailed(ws, rec); err != nil {
				return err
			}
			ws.aggr.RecordNoMatch()
		}
	}
	return nil
}

func (p *Pool) writeFailed(ws *workerState, rec Record) error {
	if err := ws.failed.WriteFailed(0, rec.RawFwd); err != nil {
		return err
	}
	if p.Paired {
		if err := ws.failed.WriteFailed(1, rec.RawRev); err != nil {
			return err
		}
	}
	return nil
}

// recordOutcome folds one successfully segmented read's per-segment
// scores into the worker's Aggregator, plus the perfect/moderate tallies
// spec.md §4.4 groups reads into. A read AnalyseUnmapped only partially
// segmented carries no meaningful scores (per engine.DemultiplexedRead's
// AnyUnmatched doc) and records no statistics.
func recordOutcome(aggr *stats.Aggregator, dr *engine.DemultiplexedRead, pat *pattern.Pattern) {
	if dr.AnyUnmatched {
		return
	}
	segs := pat.Segments()
	for i, so := range dr.Segments {
		if !so.Matched || segs[i].Kind == pattern.Wildcard {
			continue
		}
		aggr.RecordMatch(so.CanonicalID, so.Score, segs[i].Mismatches)
	}
	switch {
	case dr.IsPerfect:
		aggr.RecordPerfect()
	default:
		aggr.RecordModerate()
	}
}

func (p *Pool) collect(states []*workerState) *Result {
	aggrs := make([]*stats.Aggregator, len(states))
	failedSinks := make([]*output.FailedSink, len(states))
	sinksByPattern := make(map[string][]*output.Sink, len(p.Targets))

	for i, ws := range states {
		aggrs[i] = ws.aggr
		failedSinks[i] = ws.failed
	}
	for _, t := range p.Targets {
		sinks := make([]*output.Sink, len(states))
		for i, ws := range states {
			sinks[i] = ws.sinks[t.Pattern.Name()]
		}
		sinksByPattern[t.Pattern.Name()] = sinks
	}

	return &Result{
		SinksByPattern: sinksByPattern,
		FailedSinks:    failedSinks,
		Totals:         stats.Merge(aggrs),
	}
}
