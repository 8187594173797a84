// Package pipeline runs identity resolution followed by quality and
// priority scoring over a batch of records.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/orgmatch/internal/dedupe"
	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/priority"
	"github.com/sells-group/orgmatch/internal/store"
)

// Scored is a canonical record with its scores.
type Scored struct {
	Record   *model.BusinessRecord        `json:"record"`
	Quality  *model.DataQualityScore      `json:"quality"`
	Priority *model.BusinessPriorityScore `json:"priority"`
}

// Result is the outcome of a pipeline run.
type Result struct {
	RunID    string                          `json:"run_id"`
	Dedupe   *dedupe.BatchResult             `json:"dedupe,omitempty"`
	Scored   []Scored                        `json:"scored"`
	ByTier   map[model.PriorityTier][]string `json:"by_tier"`
	Errors   []dedupe.RecordError            `json:"errors,omitempty"`
	Canceled bool                            `json:"canceled,omitempty"`
	Duration time.Duration                   `json:"duration_ns"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver sets the observer for score_calculated events.
func WithObserver(o model.Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithWorkers bounds scoring concurrency.
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// Pipeline wires the dedupe and priority engines to the repository.
type Pipeline struct {
	dedupe   *dedupe.Engine
	priority *priority.Engine
	repo     *store.Repository
	observer model.Observer
	workers  int
	now      func() time.Time

	// serializes observer delivery
	emitMu sync.Mutex
}

// New creates a Pipeline. dd may be nil when only scoring is needed.
func New(dd *dedupe.Engine, pr *priority.Engine, repo *store.Repository, opts ...Option) (*Pipeline, error) {
	if pr == nil {
		return nil, eris.New("pipeline: priority engine is required")
	}
	if repo == nil {
		return nil, eris.New("pipeline: repository is required")
	}
	p := &Pipeline{
		dedupe:   dd,
		priority: pr,
		repo:     repo,
		observer: model.NopObserver{},
		workers:  4,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = 1
	}
	return p, nil
}

func (p *Pipeline) emit(ev model.Event) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	ev.At = p.now().UTC()
	p.observer.OnEvent(ev)
}

// Run deduplicates records and scores every surviving canonical record.
func (p *Pipeline) Run(ctx context.Context, records []*model.BusinessRecord) (*Result, error) {
	if p.dedupe == nil {
		return nil, eris.New("pipeline: dedupe engine is required for run")
	}
	start := time.Now()

	batch, err := p.dedupe.Run(ctx, records)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: dedupe")
	}

	res := p.scoreAll(ctx, batch.RunID, batch.Records)
	res.Dedupe = batch
	res.Errors = append(append([]dedupe.RecordError(nil), batch.Errors...), res.Errors...)
	res.Canceled = batch.Canceled || res.Canceled
	res.Duration = time.Since(start)

	zap.L().Info("pipeline: run complete",
		zap.String("run_id", res.RunID),
		zap.Int("input", len(records)),
		zap.Int("canonical", len(batch.Records)),
		zap.Int("merges", len(batch.Merges)),
		zap.Int("scored", len(res.Scored)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// Score assesses and prioritizes records without deduplicating them.
// Records without an id and tombstones are reported as errors.
func (p *Pipeline) Score(ctx context.Context, records []*model.BusinessRecord) *Result {
	start := time.Now()
	runID := uuid.NewString()

	var (
		live []*model.BusinessRecord
		errs []dedupe.RecordError
	)
	for i, r := range records {
		switch {
		case r == nil || r.ID == "":
			errs = append(errs, dedupe.RecordError{Index: i, Err: "record id is required"})
		case r.IsTombstone():
			errs = append(errs, dedupe.RecordError{RecordID: r.ID, Index: i, Err: "record was merged into " + r.MergedInto})
		default:
			live = append(live, r)
		}
	}

	res := p.scoreAll(ctx, runID, live)
	res.Errors = append(errs, res.Errors...)
	res.Duration = time.Since(start)
	return res
}

func (p *Pipeline) scoreAll(ctx context.Context, runID string, records []*model.BusinessRecord) *Result {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", runID))
	res := &Result{RunID: runID}

	scored := make([]*Scored, len(records))
	var (
		mu   sync.Mutex
		errs []dedupe.RecordError
	)

	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, r := range records {
		if ctx.Err() != nil {
			res.Canceled = true
			break
		}
		g.Go(func() error {
			q := p.priority.Assess(r)
			s, err := p.priority.Score(ctx, r, q)
			if err != nil {
				mu.Lock()
				errs = append(errs, dedupe.RecordError{RecordID: r.ID, Index: i, Err: err.Error()})
				mu.Unlock()
				return nil
			}

			if err := p.repo.PutQuality(ctx, q); err != nil {
				log.Warn("pipeline: cache quality score", zap.String("record_id", r.ID), zap.Error(err))
			}
			if err := p.repo.PutPriority(ctx, s); err != nil {
				log.Warn("pipeline: cache priority score", zap.String("record_id", r.ID), zap.Error(err))
			}

			scored[i] = &Scored{Record: r, Quality: q, Priority: s}
			p.emit(model.Event{Kind: model.EventScoreCalculated, RunID: runID, Score: s})
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range scored {
		if s != nil {
			res.Scored = append(res.Scored, *s)
		}
	}
	sortScored(res.Scored)
	res.ByTier = groupByTier(res.Scored)

	sort.Slice(errs, func(i, j int) bool { return errs[i].Index < errs[j].Index })
	res.Errors = errs
	return res
}

// sortScored orders by overall priority descending, then record id.
func sortScored(s []Scored) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Priority.Overall != s[j].Priority.Overall {
			return s[i].Priority.Overall > s[j].Priority.Overall
		}
		return s[i].Record.ID < s[j].Record.ID
	})
}

// groupByTier lists record ids per tier, keeping the sorted order. Every
// tier is present, possibly empty.
func groupByTier(s []Scored) map[model.PriorityTier][]string {
	out := make(map[model.PriorityTier][]string, len(model.AllTiers()))
	for _, t := range model.AllTiers() {
		out[t] = []string{}
	}
	for _, sc := range s {
		out[sc.Priority.Tier] = append(out[sc.Priority.Tier], sc.Record.ID)
	}
	return out
}
