package priority

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orgmatch/internal/config"
	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/resilience"
	"github.com/sells-group/orgmatch/pkg/anthropic"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	e, err := NewEngine(config.DefaultPriorityWeights(), opts...)
	require.NoError(t, err)
	return e
}

func strongPartners() []model.Relationship {
	var rels []model.Relationship
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9", "p10"} {
		rels = append(rels, model.Relationship{TargetID: id, Type: model.RelPartner, Strength: 0.9})
	}
	return rels
}

func topRecord() *model.BusinessRecord {
	return &model.BusinessRecord{
		ID:         "top",
		Name:       "Eagle Technologies",
		Type:       model.BusinessTypeIndigenousOwned,
		Industries: []string{"Construction"},
		Address:    &model.Address{City: "Ottawa", Province: "ON"},
		Financial: &model.Financial{
			RevenueEstimate:     ptrFloat64(60_000_000),
			EmployeeCount:       ptrInt(600),
			GovernmentContracts: true,
		},
		Procurement: &model.ProcurementProfile{
			ReadinessScore:  ptrFloat64(70),
			Insurance:       true,
			Bonding:         true,
			HealthSafety:    true,
			PastPerformance: ptrFloat64(4.8),
		},
		Indigenous: &model.IndigenousProfile{OwnershipPct: 100, EmployeePct: 60, Certified: true},
	}
}

func TestNewEngine_InvalidWeights(t *testing.T) {
	w := config.DefaultPriorityWeights()
	w.Revenue = -1
	_, err := NewEngine(w)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidWeights))
}

func TestNewEngine_NormalizesWeights(t *testing.T) {
	w := config.DefaultPriorityWeights()
	w.Revenue = 1
	e, err := NewEngine(w)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, WeightSum(e.Weights()), 1e-9)
}

func TestEngine_Score_Platinum(t *testing.T) {
	sig := StaticSignals{"top": {Relationships: strongPartners(), NearbyBusinesses: 25}}
	e := newTestEngine(t, WithSignals(sig))

	s, err := e.Score(context.Background(), topRecord(), &model.DataQualityScore{Overall: 80})
	require.NoError(t, err)

	assert.Equal(t, "top", s.RecordID)
	assert.Equal(t, 100.0, s.Components[model.ComponentRevenue])
	assert.Equal(t, 100.0, s.Components[model.ComponentProcurement])
	assert.Equal(t, 100.0, s.Components[model.ComponentPartnership])
	assert.Equal(t, 80.0, s.Components[model.ComponentDataQuality])
	assert.Equal(t, 95.0, s.Components[model.ComponentGeographic])
	assert.Equal(t, 90.0, s.Components[model.ComponentIndustry])
	assert.Equal(t, 100.0, s.Components[model.ComponentIndigenous])
	assert.Equal(t, 100.0, s.Components[model.ComponentRelationship])

	assert.InDelta(t, 96.5, s.Overall, 1e-9)
	assert.Equal(t, model.TierPlatinum, s.Tier)
	assert.Equal(t, tierActions[model.TierPlatinum], s.RecommendedActions[0])
	assert.False(t, s.Refined)
	assert.Equal(t, testNow, s.ComputedAt)
}

func TestEngine_Score_OverallIsWeightedSum(t *testing.T) {
	e := newTestEngine(t)
	records := []*model.BusinessRecord{
		topRecord(),
		{ID: "bare"},
		{ID: "mid", Name: "Northwind", Industries: []string{"retail", "logistics"}, Address: &model.Address{City: "Regina", Province: "SK"}},
	}
	w := weightMap(e.Weights())

	for _, r := range records {
		s, err := e.Score(context.Background(), r, nil)
		require.NoError(t, err)

		var want float64
		for name, c := range s.Components {
			assert.GreaterOrEqual(t, c, 0.0, name)
			assert.LessOrEqual(t, c, 100.0, name)
			want += w[name] * c
		}
		assert.InDelta(t, want, s.Overall, 0.006, r.ID)
		assert.Equal(t, TierFor(s.Overall), s.Tier)
		assert.NotEmpty(t, s.RecommendedActions)
	}
}

func TestEngine_Score_NilRecord(t *testing.T) {
	_, err := newTestEngine(t).Score(context.Background(), nil, nil)
	assert.Error(t, err)
}

type failingSignals struct{}

func (failingSignals) Signals(context.Context, *model.BusinessRecord) (*Signals, error) {
	return nil, errors.New("graph unavailable")
}

func TestEngine_Score_SignalFailureDegrades(t *testing.T) {
	e := newTestEngine(t, WithSignals(failingSignals{}))
	s, err := e.Score(context.Background(), topRecord(), nil)
	require.NoError(t, err)
	assert.Equal(t, 20.0, s.Components[model.ComponentRelationship])
	assert.Equal(t, 80.0, s.Components[model.ComponentPartnership])
}

type stubRefiner struct {
	actions []string
	err     error
}

func (s stubRefiner) Refine(context.Context, *model.BusinessRecord, *model.BusinessPriorityScore) ([]string, error) {
	return s.actions, s.err
}

func TestEngine_Score_Refiner(t *testing.T) {
	e := newTestEngine(t, WithRefiner(stubRefiner{actions: []string{"Call the CEO"}}))
	s, err := e.Score(context.Background(), topRecord(), nil)
	require.NoError(t, err)
	assert.True(t, s.Refined)
	assert.Equal(t, []string{"Call the CEO"}, s.RecommendedActions)

	e = newTestEngine(t, WithRefiner(stubRefiner{err: errors.New("boom")}))
	s, err = e.Score(context.Background(), topRecord(), nil)
	require.NoError(t, err)
	assert.False(t, s.Refined)
	assert.Equal(t, Recommend(s.Tier, s.Components), s.RecommendedActions)

	e = newTestEngine(t, WithRefiner(stubRefiner{}))
	s, err = e.Score(context.Background(), topRecord(), nil)
	require.NoError(t, err)
	assert.False(t, s.Refined)
}

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*anthropic.MessageResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func textResponse(s string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: s}}}
}

func TestLLMRefiner_Refine(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "test-model" && req.System == refineSystemPrompt
	})).Return(textResponse(`{"actions": ["Call the CEO", " ", "Send the RFP package"]}`), nil)

	r := NewLLMRefiner(client, config.AnthropicConfig{Model: "test-model"})
	score := &model.BusinessPriorityScore{
		Overall:            91,
		Tier:               model.TierPlatinum,
		Components:         map[string]float64{model.ComponentRevenue: 100},
		RecommendedActions: []string{"draft"},
	}
	actions, err := r.Refine(context.Background(), topRecord(), score)
	require.NoError(t, err)
	assert.Equal(t, []string{"Call the CEO", "Send the RFP package"}, actions)
	client.AssertExpectations(t)
}

func TestLLMRefiner_EmptyReply(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{"actions": []}`), nil)

	_, err := NewLLMRefiner(client, config.AnthropicConfig{Model: "m"}).
		Refine(context.Background(), topRecord(), &model.BusinessPriorityScore{})
	assert.Error(t, err)
}

func TestGuardedRefiner_FallsBack(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, &anthropic.StatusError{Code: 400, Err: errors.New("bad request")})

	guard := resilience.NewGuard("anthropic", config.ResilienceConfig{MaxAttempts: 1, FailureThreshold: 5, ResetTimeoutSecs: 30})
	refiner := NewGuardedRefiner(NewLLMRefiner(client, config.AnthropicConfig{Model: "m"}), guard)

	e := newTestEngine(t, WithRefiner(refiner))
	s, err := e.Score(context.Background(), topRecord(), nil)
	require.NoError(t, err)
	assert.False(t, s.Refined)
	assert.Equal(t, Recommend(s.Tier, s.Components), s.RecommendedActions)
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}
