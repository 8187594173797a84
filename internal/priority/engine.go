package priority

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orgmatch/internal/config"
	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/quality"
)

// Option configures an Engine.
type Option func(*Engine)

// WithSignals sets the signal provider.
func WithSignals(p SignalProvider) Option {
	return func(e *Engine) { e.signals = p }
}

// WithRefiner sets the recommendation refiner.
func WithRefiner(r Refiner) Option {
	return func(e *Engine) { e.refiner = r }
}

// WithProfile replaces the default profile.
func WithProfile(p Profile) Option {
	return func(e *Engine) { e.profile = p }
}

// WithClock sets the clock used for timestamps and certification expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine computes BusinessPriorityScores. It is safe for concurrent use.
type Engine struct {
	weights  config.PriorityWeights
	profile  Profile
	signals  SignalProvider
	refiner  Refiner
	assessor *quality.Assessor
	now      func() time.Time
}

// NewEngine validates the weights once and creates an Engine. Weights not
// summing to 1 are rescaled.
func NewEngine(weights config.PriorityWeights, opts ...Option) (*Engine, error) {
	w, err := NormalizeWeights(weights)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		weights: w,
		profile: DefaultProfile(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.assessor = quality.NewAssessorAt(e.now)
	return e, nil
}

// Weights returns the normalized weights in use.
func (e *Engine) Weights() config.PriorityWeights {
	return e.weights
}

// Assess returns the data-quality score of r.
func (e *Engine) Assess(r *model.BusinessRecord) *model.DataQualityScore {
	return e.assessor.Assess(r)
}

// Score computes the priority of r. q is the record's data-quality score;
// when nil it is assessed here. Collaborator failures degrade the score
// instead of failing it.
func (e *Engine) Score(ctx context.Context, r *model.BusinessRecord, q *model.DataQualityScore) (*model.BusinessPriorityScore, error) {
	if r == nil {
		return nil, eris.New("priority: record is required")
	}
	if q == nil {
		q = e.assessor.Assess(r)
	}
	now := e.now()
	log := zap.L().With(zap.String("component", "priority"), zap.String("record_id", r.ID))

	var sig *Signals
	if e.signals != nil {
		s, err := e.signals.Signals(ctx, r)
		if err != nil {
			log.Warn("priority: signal lookup failed, scoring without signals", zap.Error(err))
		} else {
			sig = s
		}
	}

	industry := scoreIndustry(r.Industries, e.profile.Industries)
	components := map[string]float64{
		model.ComponentRevenue:      scoreRevenue(r.Financial),
		model.ComponentProcurement:  scoreProcurement(r, now),
		model.ComponentPartnership:  scorePartnership(r, sig, industry),
		model.ComponentDataQuality:  clamp(q.Overall, 0, 100),
		model.ComponentGeographic:   scoreGeographic(r.Address, e.profile.Markets),
		model.ComponentIndustry:     industry,
		model.ComponentIndigenous:   scoreIndigenous(r),
		model.ComponentRelationship: scoreRelationship(sig),
	}

	weights := weightMap(e.weights)
	var overall float64
	for _, name := range Components {
		overall += weights[name] * components[name]
	}
	overall = math.Round(clamp(overall, 0, 100)*100) / 100

	tier := TierFor(overall)
	score := &model.BusinessPriorityScore{
		RecordID:           r.ID,
		Overall:            overall,
		Components:         components,
		Tier:               tier,
		RecommendedActions: Recommend(tier, components),
		ComputedAt:         now.UTC(),
	}

	if e.refiner != nil {
		actions, err := e.refiner.Refine(ctx, r, score)
		switch {
		case err != nil:
			log.Warn("priority: refinement failed, keeping recommendations", zap.Error(err))
		case len(actions) > 0:
			score.RecommendedActions = actions
			score.Refined = true
		}
	}
	return score, nil
}
