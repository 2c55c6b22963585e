// Package batch downloads many mods in one run, isolating each mod's failure
// from the rest and counting what was attempted and what succeeded.
package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"curseforge-mod-fetcher/curseforge"
	"curseforge-mod-fetcher/db"
	"curseforge-mod-fetcher/ledger"
	"curseforge-mod-fetcher/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Downloader fetches one mod. *download.Manager satisfies it.
type Downloader interface {
	Download(ctx context.Context, modID int) (ledger.Record, error)
}

// HistoryRecorder persists one attempt. *db.History satisfies it.
type HistoryRecorder interface {
	Record(ctx context.Context, attempt db.Attempt) error
}

// Target is a mod to download. Name is only used for reporting.
type Target struct {
	ModID int
	Name  string
}

// TargetsFromMods turns search results into targets, keeping their order.
func TargetsFromMods(mods []curseforge.Mod) []Target {
	targets := make([]Target, 0, len(mods))
	for _, m := range mods {
		targets = append(targets, Target{ModID: m.ID, Name: m.Name})
	}
	return targets
}

// Result is the outcome of one target.
type Result struct {
	Target   Target
	Record   ledger.Record
	Err      error
	Duration time.Duration
}

func (r Result) Succeeded() bool { return r.Err == nil }

// Summary is the outcome of a run. Results holds one entry per attempted
// target, in input order.
type Summary struct {
	RunID     string
	Attempted int
	Succeeded int
	Failed    int
	Results   []Result
}

// Runner runs a Downloader over a list of targets.
type Runner struct {
	downloader  Downloader
	concurrency int
	history     HistoryRecorder
	log         *zap.SugaredLogger
	metrics     *metrics.Metrics
	runID       string
	onResult    func(Result)
}

type Option func(*Runner)

// WithConcurrency bounds how many downloads run at once. The default of 1
// downloads strictly in input order, each finishing before the next starts.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithHistory(h HistoryRecorder) Option {
	return func(r *Runner) {
		r.history = h
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithRunID(id string) Option {
	return func(r *Runner) {
		if id != "" {
			r.runID = id
		}
	}
}

// WithResultHook is called once per finished target. Calls may come from
// several goroutines when concurrency is above 1.
func WithResultHook(fn func(Result)) Option {
	return func(r *Runner) {
		r.onResult = fn
	}
}

func NewRunner(d Downloader, opts ...Option) *Runner {
	r := &Runner{
		downloader:  d,
		concurrency: 1,
		log:         zap.NewNop().Sugar(),
		runID:       uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) RunID() string { return r.runID }

// Run downloads every target. A failed target never stops the others. Once
// ctx is cancelled no further targets are started; those are not counted as
// attempted.
func (r *Runner) Run(ctx context.Context, targets []Target) Summary {
	log := r.log.With(zap.String("run_id", r.runID))
	log.Infow("Batch started", zap.Int("targets", len(targets)), zap.Int("concurrency", r.concurrency))

	results := make([]Result, len(targets))
	attempted := make([]bool, len(targets))
	var started atomic.Int32
	var hookMu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)

	for i, target := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			started.Add(1)
			attempted[i] = true

			start := time.Now()
			rec, err := r.downloader.Download(ctx, target.ModID)
			res := Result{Target: target, Record: rec, Err: err, Duration: time.Since(start)}
			results[i] = res

			r.record(ctx, log, res)
			if r.onResult != nil {
				hookMu.Lock()
				r.onResult(res)
				hookMu.Unlock()
			}
			// Failures are collected in results, never returned, so the group
			// keeps scheduling the remaining targets.
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{RunID: r.runID, Results: make([]Result, 0, started.Load())}
	for i, res := range results {
		if !attempted[i] {
			continue
		}
		summary.Attempted++
		if res.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, res)
	}

	log.Infow("Batch finished",
		zap.Int("attempted", summary.Attempted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", len(targets)-summary.Attempted))
	return summary
}

func (r *Runner) record(ctx context.Context, log *zap.SugaredLogger, res Result) {
	r.metrics.ObserveBatchTarget(res.Succeeded())

	if res.Succeeded() {
		log.Infow("Target downloaded", zap.Int("mod_id", res.Target.ModID), zap.String("file", res.Record.FileName))
	} else {
		log.Warnw("Target failed", zap.Int("mod_id", res.Target.ModID), zap.Error(res.Err))
	}

	if r.history == nil {
		return
	}
	attempt := db.Attempt{
		RunID:      r.runID,
		ModID:      res.Target.ModID,
		ModName:    res.Target.Name,
		Status:     db.StatusSucceeded,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Succeeded() {
		attempt.ModName = res.Record.ModName
		attempt.FileID = res.Record.FileID
		attempt.FileName = res.Record.FileName
		attempt.FilePath = res.Record.FilePath
		attempt.Bytes = res.Record.FileSize
	} else {
		attempt.Status = db.StatusFailed
		attempt.Error = res.Err.Error()
	}

	// Attempts of a cancelled run are still recorded.
	hctx := context.WithoutCancel(ctx)
	if err := r.history.Record(hctx, attempt); err != nil && !errors.Is(err, context.Canceled) {
		log.Warnw("Failed to record download attempt", zap.Int("mod_id", res.Target.ModID), zap.Error(err))
	}
}
