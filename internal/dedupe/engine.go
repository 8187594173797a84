package dedupe

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/orgmatch/internal/config"
	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/store"
)

// RecordError is a per-record failure inside a batch. The batch continues.
type RecordError struct {
	RecordID string `json:"record_id,omitempty"`
	Index    int    `json:"index"`
	Err      string `json:"error"`
}

// BatchResult aggregates the outcome of one Engine.Run.
type BatchResult struct {
	RunID       string                      `json:"run_id"`
	Records     []*model.BusinessRecord     `json:"records"`
	Candidates  []*model.DuplicateCandidate `json:"candidates"`
	Merges      []*model.MergeResult        `json:"merges"`
	ReviewQueue []*model.DuplicateCandidate `json:"review_queue"`
	Duplicates  []*model.DuplicateCandidate `json:"duplicates"`
	Errors      []RecordError               `json:"errors,omitempty"`
	Skipped     int                         `json:"skipped"`
	Canceled    bool                        `json:"canceled,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithAdjuster sets the confidence adjuster. Without one the heuristic
// confidence is used unchanged.
func WithAdjuster(a ConfidenceAdjuster) Option {
	return func(e *Engine) { e.adjuster = a }
}

// WithObserver sets the event observer.
func WithObserver(o model.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// Engine runs identity resolution over a batch of records.
type Engine struct {
	cfg        config.DedupeConfig
	thresholds Thresholds
	repo       *store.Repository
	scorer     *Scorer
	merger     *Merger
	adjuster   ConfidenceAdjuster
	observer   model.Observer
	runID      string
	now        func() time.Time

	// serializes observer delivery
	emitMu sync.Mutex
}

// NewEngine validates cfg and creates an Engine.
func NewEngine(cfg config.DedupeConfig, repo *store.Repository, opts ...Option) (*Engine, error) {
	if repo == nil {
		return nil, eris.New("dedupe: repository is required")
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		return nil, eris.Errorf("dedupe: similarity_threshold %v outside (0,1]", cfg.SimilarityThreshold)
	}
	if cfg.AutoMergeThreshold < cfg.SimilarityThreshold || cfg.AutoMergeThreshold > 1 {
		return nil, eris.Errorf("dedupe: auto_merge_threshold %v outside [%v,1]", cfg.AutoMergeThreshold, cfg.SimilarityThreshold)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	e := &Engine{
		cfg:        cfg,
		thresholds: Thresholds{Similarity: cfg.SimilarityThreshold, AutoMerge: cfg.AutoMergeThreshold},
		repo:       repo,
		scorer:     NewScorer(cfg.UsePhonetic),
		observer:   model.NopObserver{},
		now:        time.Now,
	}
	e.merger = NewMerger(repo, e.scorer)
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Merger returns the engine's merge executor.
func (e *Engine) Merger() *Merger {
	return e.merger
}

func (e *Engine) emit(ev model.Event) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	ev.At = e.now().UTC()
	e.observer.OnEvent(ev)
}

// Run deduplicates records. Records without an id are reported as
// per-record errors; records that already forward to another id are
// skipped. Cancelling ctx stops new records from being scheduled; records
// already being compared finish. Merges only run for a batch that was not
// cancelled.
func (e *Engine) Run(ctx context.Context, records []*model.BusinessRecord) (*BatchResult, error) {
	runID := e.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := zap.L().With(zap.String("component", "dedupe"), zap.String("run_id", runID))
	res := &BatchResult{RunID: runID}

	live, fresh, err := e.admit(ctx, records, res)
	if err != nil {
		return nil, err
	}
	if err := e.repo.PutRecords(ctx, fresh); err != nil {
		return nil, eris.Wrap(err, "dedupe: persist batch")
	}

	idx := BuildIndex(live, e.cfg.IgnoredEmailDomains)
	finder := NewFinder(idx, e.cfg.FuzzyNameThreshold, e.cfg.UsePhonetic)
	pairs := NewPairSet()

	var (
		mu         sync.Mutex
		candidates []*model.DuplicateCandidate
		processed  int
	)

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)

	total := idx.Len()
	for _, id := range idx.IDs() {
		if ctx.Err() != nil {
			res.Canceled = true
			break
		}
		g.Go(func() error {
			rec, _ := idx.Record(id)
			var found []*model.DuplicateCandidate
			for _, otherID := range finder.Candidates(id) {
				if !pairs.Claim(id, otherID) {
					continue
				}
				other, _ := idx.Record(otherID)
				if c := e.evaluate(ctx, rec, other); c != nil {
					found = append(found, c)
				}
			}

			for _, c := range found {
				if err := e.repo.PutCandidate(ctx, c); err != nil {
					log.Warn("dedupe: cache candidate", zap.String("pair", c.PairKey()), zap.Error(err))
				}
			}

			mu.Lock()
			candidates = append(candidates, found...)
			processed++
			progress := model.Progress{Processed: processed, Total: total, DuplicatesFound: len(candidates)}
			for _, c := range found {
				e.emit(model.Event{Kind: model.EventDuplicateFound, RunID: runID, Candidate: c})
			}
			e.emit(model.Event{Kind: model.EventProgress, RunID: runID, Progress: &progress})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].PairKey() < candidates[j].PairKey()
	})
	res.Candidates = candidates

	for _, c := range candidates {
		switch c.SuggestedAction {
		case model.ActionManualReview:
			res.ReviewQueue = append(res.ReviewQueue, c)
		case model.ActionMarkDuplicate:
			res.Duplicates = append(res.Duplicates, c)
		case model.ActionMerge:
			if !e.cfg.AutoMerge || res.Canceled {
				continue
			}
			e.mergeCandidate(ctx, runID, c, res, log)
		}
	}

	res.Records, err = e.canonicalRecords(ctx, idx.IDs())
	if err != nil {
		return res, err
	}

	log.Info("dedupe: batch complete",
		zap.Int("records", total),
		zap.Int("candidates", len(res.Candidates)),
		zap.Int("merges", len(res.Merges)),
		zap.Int("review", len(res.ReviewQueue)),
		zap.Int("errors", len(res.Errors)),
		zap.Bool("canceled", res.Canceled),
	)
	return res, nil
}

// admit validates the batch and drops records that already forward
// elsewhere. The first occurrence of a duplicated id wins. A record that is
// the stored canonical of an earlier merge is taken from the store instead
// of the input, so a re-run does not undo the merge; fresh lists the records
// that must be persisted.
func (e *Engine) admit(ctx context.Context, records []*model.BusinessRecord, res *BatchResult) (live, fresh []*model.BusinessRecord, err error) {
	seen := make(map[string]bool, len(records))
	live = make([]*model.BusinessRecord, 0, len(records))

	for i, r := range records {
		switch {
		case r == nil || r.ID == "":
			res.Errors = append(res.Errors, RecordError{Index: i, Err: "record id is required"})
			continue
		case seen[r.ID]:
			res.Errors = append(res.Errors, RecordError{RecordID: r.ID, Index: i, Err: "duplicate record id in batch"})
			continue
		case r.IsTombstone():
			res.Skipped++
			continue
		}
		seen[r.ID] = true

		canonical, err := e.repo.Resolve(ctx, r.ID)
		if err != nil {
			res.Errors = append(res.Errors, RecordError{RecordID: r.ID, Index: i, Err: err.Error()})
			continue
		}
		if canonical != r.ID {
			res.Skipped++
			continue
		}

		stored, err := e.repo.GetRecord(ctx, r.ID)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "dedupe: load %s", r.ID)
		}
		if stored != nil && stored.Merge != nil {
			live = append(live, stored)
			continue
		}
		live = append(live, r)
		fresh = append(fresh, r)
	}
	return live, fresh, nil
}

// evaluate scores a pair and returns a candidate, or nil when the pair is
// not a plausible duplicate.
func (e *Engine) evaluate(ctx context.Context, a, b *model.BusinessRecord) *model.DuplicateCandidate {
	if b.ID < a.ID {
		a, b = b, a
	}
	sim, fields := e.scorer.Compare(a, b)
	if !IsCandidate(sim, fields, e.thresholds) {
		return nil
	}

	c := &model.DuplicateCandidate{
		RecordID1:       a.ID,
		RecordID2:       b.ID,
		Similarity:      sim,
		MatchingFields:  fields,
		Confidence:      Confidence(sim, fields),
		SuggestedAction: Classify(sim, fields, e.thresholds),
		DetectedAt:      e.now().UTC(),
	}

	if e.adjuster != nil {
		conf, err := e.adjuster.Adjust(ctx, a, b, c)
		if err != nil {
			zap.L().Warn("dedupe: confidence adjustment failed", zap.String("pair", c.PairKey()), zap.Error(err))
		} else {
			c.Confidence = clamp01(conf)
		}
	}
	return c
}

func (e *Engine) mergeCandidate(ctx context.Context, runID string, c *model.DuplicateCandidate, res *BatchResult, log *zap.Logger) {
	result, err := e.merger.Merge(ctx, c.RecordID1, c.RecordID2)
	if err != nil {
		log.Error("dedupe: merge failed", zap.String("pair", c.PairKey()), zap.Error(err))
		res.Errors = append(res.Errors, RecordError{RecordID: c.PairKey(), Index: -1, Err: err.Error()})
		return
	}
	if result.NoOp {
		return
	}
	res.Merges = append(res.Merges, result)
	e.emit(model.Event{Kind: model.EventMergeCompleted, RunID: runID, Merge: result})
}

// canonicalRecords resolves every batch id to its live canonical record,
// once per canonical id, sorted by id.
func (e *Engine) canonicalRecords(ctx context.Context, ids []string) ([]*model.BusinessRecord, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]*model.BusinessRecord, 0, len(ids))
	for _, id := range ids {
		cid, err := e.repo.Resolve(ctx, id)
		if err != nil {
			return nil, eris.Wrap(err, "dedupe: resolve canonical")
		}
		if seen[cid] {
			continue
		}
		seen[cid] = true

		rec, err := e.repo.GetRecord(ctx, cid)
		if err != nil {
			return nil, eris.Wrap(err, "dedupe: load canonical")
		}
		if rec != nil && !rec.IsTombstone() {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
