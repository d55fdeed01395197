// Package pipeline drives the batch conversion of dataset rows into
// aligned corpus lines.
//
// Each row names a method before and after a change. The pipeline
// acquires both file snapshots (cache, then local mirror, then HTTP),
// parses them, diffs the two concrete syntax trees into change trees,
// and flattens the result into one before line and one after line per
// row. Rows are processed by a worker pool but appended in dataset
// order, so the corpus manifest maps lines back to row indices.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/aladics/code-change-repr/internal/corpus"
	"github.com/aladics/code-change-repr/internal/dataset"
	"github.com/aladics/code-change-repr/internal/observability"
	"github.com/aladics/code-change-repr/internal/snapcache"
)

// ErrNoSource means the pipeline has no way to acquire snapshots: both
// the mirror and the HTTP fetcher are unset.
var ErrNoSource = errors.New("pipeline: neither mirror nor fetcher configured")

const (
	// defaultProgressEvery is the progress log interval in rows.
	defaultProgressEvery = 100

	// rowOp names row processing in RED metrics.
	rowOp = "process_row"
)

// MirrorSource reads file snapshots out of local git clones.
// *gitsnap.Mirror implements it.
type MirrorSource interface {
	FileAt(name, rev, path string) ([]byte, error)
}

// Fetcher downloads raw file snapshots. *snapcache.Fetcher implements
// it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Options tunes a pipeline run.
type Options struct {
	// Language forces one grammar for every row. Empty means per-row
	// detection from the after-state file.
	Language string

	// MaxRootPaths caps root-path extraction per tree. Zero or negative
	// falls back to the extraction default.
	MaxRootPaths int

	// Workers sets the worker pool size. Zero or negative means one
	// worker per CPU.
	Workers int

	// SkipN drops the first N rows without processing them.
	SkipN int

	// ProgressEvery is the number of finished rows between progress log
	// lines. Zero means every 100.
	ProgressEvery int
}

// Config wires a pipeline's collaborators.
type Config struct {
	// Cache holds previously acquired snapshots. Nil disables caching.
	Cache *snapcache.Cache

	// Mirror serves snapshots from local clones. Nil disables the local
	// lookup.
	Mirror MirrorSource

	// Fetcher downloads snapshots the mirror cannot serve, using the
	// row's raw URLs. Nil disables HTTP. At least one of Mirror and
	// Fetcher must be set.
	Fetcher Fetcher

	// Vocab, when set, maps flattened lines through the vocabulary
	// before the unchanged comparison, so rows differing only in
	// out-of-vocabulary tokens count as unchanged.
	Vocab *corpus.Vocabulary

	// Ignore lists rows to exclude, matched on repository, commit pair,
	// and method positions.
	Ignore []dataset.Row

	Options Options

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.REDMetrics
}

// Counters tallies row outcomes for one run.
type Counters struct {
	Done      int
	Failed    int
	Ignored   int
	Skipped   int
	Unchanged int
}

// Total returns the number of rows accounted for.
func (c Counters) Total() int {
	return c.Done + c.Failed + c.Ignored + c.Skipped + c.Unchanged
}

func (c *Counters) add(o outcome) {
	switch o {
	case outcomeDone:
		c.Done++
	case outcomeFailed:
		c.Failed++
	case outcomeIgnored:
		c.Ignored++
	case outcomeSkipped:
		c.Skipped++
	case outcomeUnchanged:
		c.Unchanged++
	}
}

// Pipeline converts dataset rows into corpus line pairs.
type Pipeline struct {
	cfg     Config
	ignore  map[string]struct{}
	fetched atomic.Uint64 // bytes downloaded over HTTP this run
}

// New validates the configuration and prepares a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Mirror == nil && cfg.Fetcher == nil {
		return nil, ErrNoSource
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("")
	}

	if cfg.Options.Workers <= 0 {
		cfg.Options.Workers = runtime.NumCPU()
	}

	if cfg.Options.ProgressEvery <= 0 {
		cfg.Options.ProgressEvery = defaultProgressEvery
	}

	ignore := make(map[string]struct{}, len(cfg.Ignore))
	for _, row := range cfg.Ignore {
		ignore[ignoreKey(row)] = struct{}{}
	}

	return &Pipeline{cfg: cfg, ignore: ignore}, nil
}

// Run processes rows through the worker pool and appends one
// before/after line pair per finished row to out, in row order. A row
// that fails is logged and counted, never fatal; the error return
// covers writer failures and context cancellation only.
func (p *Pipeline) Run(ctx context.Context, rows []dataset.Row, out *corpus.Writer) (Counters, error) {
	if len(rows) == 0 {
		return Counters{}, nil
	}

	workers := p.cfg.Options.Workers
	if workers > len(rows) {
		workers = len(rows)
	}

	jobs := make(chan int)
	results := make(chan rowResult, workers)

	go func() {
		defer close(jobs)

		for i := range rows {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for index := range jobs {
				results <- p.runRow(ctx, index, rows[index])
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	counters, err := p.collect(results, len(rows), out)

	return counters, errors.Join(err, ctx.Err())
}

// runRow wraps one row's processing with RED instrumentation.
func (p *Pipeline) runRow(ctx context.Context, index int, row dataset.Row) rowResult {
	start := time.Now()

	if p.cfg.Metrics != nil {
		release := p.cfg.Metrics.TrackInflight(ctx, rowOp)
		defer release()
	}

	res := p.processRow(ctx, index, row)

	if p.cfg.Metrics != nil {
		status := observability.StatusOK
		if res.outcome == outcomeFailed {
			status = observability.StatusError
		}

		p.cfg.Metrics.RecordRow(ctx, rowOp, status, time.Since(start))
	}

	return res
}

// collect re-sequences worker results by row index and appends finished
// pairs to out. It keeps draining after a writer error so the workers
// never block, and reports the first error it saw.
func (p *Pipeline) collect(results <-chan rowResult, total int, out *corpus.Writer) (Counters, error) {
	var (
		counters Counters
		firstErr error
	)

	pending := make(map[int]rowResult)
	next := 0

	for res := range results {
		pending[res.index] = res

		for {
			ready, ok := pending[next]
			if !ok {
				break
			}

			delete(pending, next)
			next++

			counters.add(ready.outcome)

			switch {
			case ready.outcome == outcomeFailed:
				p.cfg.Logger.Warn("row failed",
					"row", ready.index, "repo", ready.repo, "error", ready.err)
			case ready.outcome == outcomeDone && firstErr == nil:
				if err := out.Append(ready.index, ready.before, ready.after); err != nil {
					firstErr = fmt.Errorf("append row %d: %w", ready.index, err)
				}
			}

			if next%p.cfg.Options.ProgressEvery == 0 || next == total {
				p.cfg.Logger.Info("pipeline progress",
					"rows", next, "total", total,
					"done", counters.Done, "failed", counters.Failed,
					"unchanged", counters.Unchanged,
					"fetched", humanize.Bytes(p.fetched.Load()))
			}
		}
	}

	return counters, firstErr
}
