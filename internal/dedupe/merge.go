package dedupe

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/store"
)

// ErrRecordNotFound is returned when a merge names a record the store does
// not hold.
var ErrRecordNotFound = eris.New("dedupe: record not found")

// Merger executes merges against the record store. Merges through one
// Merger are serialized, so overlapping pairs never interleave their
// resolve and write steps.
type Merger struct {
	repo   *store.Repository
	scorer *Scorer
	now    func() time.Time

	mu sync.Mutex
}

// NewMerger creates a Merger. The scorer supplies the per-field similarities
// the merge rules are built from; nil uses NewScorer(false).
func NewMerger(repo *store.Repository, scorer *Scorer) *Merger {
	if scorer == nil {
		scorer = NewScorer(false)
	}
	return &Merger{repo: repo, scorer: scorer, now: time.Now}
}

// Merge merges the records id1 and id2. Both ids are first resolved through
// forwarding pointers; if they already share a canonical id the call is a
// no-op. The canonical record is written before the secondary's forwarding
// pointer. A failed forwarding write is logged and reported as
// Forwarded=false rather than an error.
func (m *Merger) Merge(ctx context.Context, id1, id2 string) (*model.MergeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c1, err := m.repo.Resolve(ctx, id1)
	if err != nil {
		return nil, eris.Wrap(err, "dedupe: merge")
	}
	c2, err := m.repo.Resolve(ctx, id2)
	if err != nil {
		return nil, eris.Wrap(err, "dedupe: merge")
	}

	if c1 == c2 {
		canonical, err := m.load(ctx, c1)
		if err != nil {
			return nil, err
		}
		zap.L().Debug("dedupe: merge is a no-op",
			zap.String("record_id_1", id1),
			zap.String("record_id_2", id2),
			zap.String("canonical_id", c1),
		)
		return &model.MergeResult{Canonical: canonical, SecondaryID: id2, Forwarded: true, NoOp: true}, nil
	}

	r1, err := m.load(ctx, c1)
	if err != nil {
		return nil, err
	}
	r2, err := m.load(ctx, c2)
	if err != nil {
		return nil, err
	}

	primary, secondary := SelectPrimary(r1, r2)
	_, fields := m.scorer.Compare(primary, secondary)
	strategy := BuildStrategy(primary, secondary, fields)
	now := m.now().UTC()

	canonical := ApplyStrategy(primary, secondary, strategy)
	canonical.ID = primary.ID
	canonical.MergedInto = ""
	canonical.Merge = &model.MergeProvenance{
		SourceIDs: sourceIDs(primary, secondary),
		MergedAt:  now,
		Strategy:  strategy,
	}

	if err := m.repo.PutRecord(ctx, canonical); err != nil {
		return nil, eris.Wrapf(err, "dedupe: write canonical %s", canonical.ID)
	}

	log := zap.L().With(
		zap.String("canonical_id", canonical.ID),
		zap.String("secondary_id", secondary.ID),
	)

	result := &model.MergeResult{Canonical: canonical, SecondaryID: secondary.ID}
	if err := m.repo.SetForward(ctx, secondary.ID, canonical.ID); err != nil {
		log.Error("dedupe: forwarding pointer not written", zap.Error(err))
		return result, nil
	}
	result.Forwarded = true

	tomb := secondary.Clone()
	tomb.MergedInto = canonical.ID
	if err := m.repo.PutRecord(ctx, tomb); err != nil {
		log.Warn("dedupe: tombstone not written", zap.Error(err))
	}

	if strategy.PreserveHistory {
		hist := &model.MergeRecord{
			ID:          uuid.NewString(),
			CanonicalID: canonical.ID,
			SecondaryID: secondary.ID,
			Strategy:    strategy,
			Primary:     primary,
			Secondary:   secondary,
			MergedAt:    now,
		}
		if err := m.repo.AppendMergeHistory(ctx, hist); err != nil {
			log.Warn("dedupe: merge history not written", zap.Error(err))
		} else {
			result.HistoryID = hist.ID
		}
	}

	log.Info("dedupe: merged records", zap.Int("rules", len(strategy.Rules)))
	return result, nil
}

func (m *Merger) load(ctx context.Context, id string) (*model.BusinessRecord, error) {
	r, err := m.repo.GetRecord(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "dedupe: load %s", id)
	}
	if r == nil {
		return nil, eris.Wrapf(ErrRecordNotFound, "dedupe: load %s", id)
	}
	return r, nil
}

func sourceIDs(primary, secondary *model.BusinessRecord) []string {
	seen := make(map[string]bool)
	var ids []string
	addID := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, r := range []*model.BusinessRecord{primary, secondary} {
		addID(r.ID)
		if r.Merge != nil {
			for _, id := range r.Merge.SourceIDs {
				addID(id)
			}
		}
	}
	return ids
}
