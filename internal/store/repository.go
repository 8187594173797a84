package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/orgmatch/internal/config"
	"github.com/sells-group/orgmatch/internal/model"
)

// Key prefixes.
const (
	prefixRecord     = "record:"
	prefixForward    = "forward:"
	prefixCandidate  = "candidate:"
	prefixQuality    = "quality:"
	prefixPriority   = "priority:"
	prefixMerge      = "merge:"
	prefixMergeIndex = "merge-index:"
)

// maxForwardHops bounds forwarding-chain resolution so a corrupted cycle
// cannot loop forever.
const maxForwardHops = 32

// Repository is the typed view over a KV used by the engines. Safe for
// concurrent use.
type Repository struct {
	kv           KV
	candidateTTL time.Duration
	scoreTTL     time.Duration

	// guards read-modify-write of merge-index lists
	indexMu sync.Mutex
}

// NewRepository wraps kv with TTLs from cfg.
func NewRepository(kv KV, cfg config.CacheConfig) *Repository {
	return &Repository{
		kv:           kv,
		candidateTTL: time.Duration(cfg.CandidateTTLHours) * time.Hour,
		scoreTTL:     time.Duration(cfg.ScoreTTLHours) * time.Hour,
	}
}

// KV returns the underlying store.
func (r *Repository) KV() KV {
	return r.kv
}

// GetRecord loads a record by id. Returns nil, nil when absent.
func (r *Repository) GetRecord(ctx context.Context, id string) (*model.BusinessRecord, error) {
	var rec model.BusinessRecord
	ok, err := r.getJSON(ctx, prefixRecord+id, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// PutRecord saves a record without expiry.
func (r *Repository) PutRecord(ctx context.Context, rec *model.BusinessRecord) error {
	return r.putJSON(ctx, prefixRecord+rec.ID, rec, 0)
}

// PutRecords saves many records in one write.
func (r *Repository) PutRecords(ctx context.Context, recs []*model.BusinessRecord) error {
	entries := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		b, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrapf(err, "store: marshal record %s", rec.ID)
		}
		entries = append(entries, Entry{Key: prefixRecord + rec.ID, Value: b})
	}
	return eris.Wrap(r.kv.SetMany(ctx, entries), "store: put records")
}

// SetForward points fromID at toID.
func (r *Repository) SetForward(ctx context.Context, fromID, toID string) error {
	return eris.Wrapf(r.kv.Set(ctx, prefixForward+fromID, []byte(toID), 0), "store: forward %s", fromID)
}

// Resolve follows forwarding pointers from id to its canonical id. An id
// with no pointer resolves to itself.
func (r *Repository) Resolve(ctx context.Context, id string) (string, error) {
	seen := map[string]bool{id: true}
	cur := id
	for i := 0; i < maxForwardHops; i++ {
		next, err := r.kv.Get(ctx, prefixForward+cur)
		if err != nil {
			return "", eris.Wrapf(err, "store: resolve %s", id)
		}
		if next == nil {
			return cur, nil
		}
		cur = string(next)
		if seen[cur] {
			return "", eris.Errorf("store: forwarding cycle at %s", cur)
		}
		seen[cur] = true
	}
	return "", eris.Errorf("store: forwarding chain from %s exceeds %d hops", id, maxForwardHops)
}

// PutCandidate caches a scored pair.
func (r *Repository) PutCandidate(ctx context.Context, c *model.DuplicateCandidate) error {
	return r.putJSON(ctx, prefixCandidate+c.PairKey(), c, r.candidateTTL)
}

// GetCandidate returns the cached candidate for a pair, or nil.
func (r *Repository) GetCandidate(ctx context.Context, id1, id2 string) (*model.DuplicateCandidate, error) {
	var c model.DuplicateCandidate
	ok, err := r.getJSON(ctx, prefixCandidate+model.PairKey(id1, id2), &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

// PutQuality caches a quality score.
func (r *Repository) PutQuality(ctx context.Context, q *model.DataQualityScore) error {
	return r.putJSON(ctx, prefixQuality+q.RecordID, q, r.scoreTTL)
}

// GetQuality returns the cached quality score for a record, or nil.
func (r *Repository) GetQuality(ctx context.Context, id string) (*model.DataQualityScore, error) {
	var q model.DataQualityScore
	ok, err := r.getJSON(ctx, prefixQuality+id, &q)
	if err != nil || !ok {
		return nil, err
	}
	return &q, nil
}

// PutPriority caches a priority score.
func (r *Repository) PutPriority(ctx context.Context, p *model.BusinessPriorityScore) error {
	return r.putJSON(ctx, prefixPriority+p.RecordID, p, r.scoreTTL)
}

// GetPriority returns the cached priority score for a record, or nil.
func (r *Repository) GetPriority(ctx context.Context, id string) (*model.BusinessPriorityScore, error) {
	var p model.BusinessPriorityScore
	ok, err := r.getJSON(ctx, prefixPriority+id, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// AppendMergeHistory stores a merge record and indexes it under both the
// canonical and the secondary id.
func (r *Repository) AppendMergeHistory(ctx context.Context, m *model.MergeRecord) error {
	if err := r.putJSON(ctx, prefixMerge+m.ID, m, 0); err != nil {
		return err
	}

	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	for _, id := range []string{m.CanonicalID, m.SecondaryID} {
		var ids []string
		if _, err := r.getJSON(ctx, prefixMergeIndex+id, &ids); err != nil {
			return err
		}
		ids = append(ids, m.ID)
		if err := r.putJSON(ctx, prefixMergeIndex+id, ids, 0); err != nil {
			return err
		}
	}
	return nil
}

// MergeHistory returns merges involving id, oldest first.
func (r *Repository) MergeHistory(ctx context.Context, id string) ([]model.MergeRecord, error) {
	var ids []string
	if _, err := r.getJSON(ctx, prefixMergeIndex+id, &ids); err != nil {
		return nil, err
	}

	out := make([]model.MergeRecord, 0, len(ids))
	for _, hid := range ids {
		var m model.MergeRecord
		ok, err := r.getJSON(ctx, prefixMerge+hid, &m)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *Repository) getJSON(ctx context.Context, key string, v any) (bool, error) {
	b, err := r.kv.Get(ctx, key)
	if err != nil {
		return false, eris.Wrapf(err, "store: get %s", key)
	}
	if b == nil {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, eris.Wrapf(err, "store: decode %s", key)
	}
	return true, nil
}

func (r *Repository) putJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "store: encode %s", key)
	}
	return eris.Wrapf(r.kv.Set(ctx, key, b, ttl), "store: put %s", key)
}
