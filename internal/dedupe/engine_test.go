package dedupe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orgmatch/internal/config"
	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/resilience"
	"github.com/sells-group/orgmatch/pkg/anthropic"
)

func testDedupeConfig() config.DedupeConfig {
	cfg := config.DefaultDedupeConfig()
	cfg.Workers = 4
	return cfg
}

func newTestEngine(t *testing.T, cfg config.DedupeConfig, opts ...Option) (*Engine, *[]model.Event) {
	t.Helper()
	events := &[]model.Event{}
	opts = append([]Option{WithObserver(model.ObserverFunc(func(e model.Event) {
		*events = append(*events, e)
	}))}, opts...)
	e, err := NewEngine(cfg, newTestRepo(t, nil), opts...)
	require.NoError(t, err)
	return e, events
}

func countKind(events []model.Event, kind model.EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestNewEngine_Validates(t *testing.T) {
	repo := newTestRepo(t, nil)

	_, err := NewEngine(testDedupeConfig(), nil)
	assert.Error(t, err)

	cfg := testDedupeConfig()
	cfg.SimilarityThreshold = 0
	_, err = NewEngine(cfg, repo)
	assert.Error(t, err)

	cfg = testDedupeConfig()
	cfg.AutoMergeThreshold = 0.5
	_, err = NewEngine(cfg, repo)
	assert.Error(t, err)
}

func TestEngine_Run_EagleMerges(t *testing.T) {
	e, events := newTestEngine(t, testDedupeConfig(), WithRunID("run-1"))

	res, err := e.Run(context.Background(), []*model.BusinessRecord{eagleA(), eagleB()})
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	require.Len(t, res.Candidates, 1)
	c := res.Candidates[0]
	assert.Equal(t, "a", c.RecordID1)
	assert.Equal(t, "b", c.RecordID2)
	assert.Equal(t, model.ActionMerge, c.SuggestedAction)
	assert.GreaterOrEqual(t, c.Similarity, 0.9)

	require.Len(t, res.Merges, 1)
	assert.True(t, res.Merges[0].Forwarded)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "a", res.Records[0].ID)
	assert.Empty(t, res.Errors)

	assert.Equal(t, 1, countKind(*events, model.EventDuplicateFound))
	assert.Equal(t, 1, countKind(*events, model.EventMergeCompleted))
	assert.Equal(t, 2, countKind(*events, model.EventProgress))
	for _, ev := range *events {
		assert.Equal(t, "run-1", ev.RunID)
		assert.False(t, ev.At.IsZero())
	}

	cached, err := e.repo.GetCandidate(context.Background(), "b", "a")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, model.ActionMerge, cached.SuggestedAction)
}

func TestEngine_Run_RerunIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t, testDedupeConfig())
	ctx := context.Background()

	_, err := e.Run(ctx, []*model.BusinessRecord{eagleA(), eagleB()})
	require.NoError(t, err)

	res, err := e.Run(ctx, []*model.BusinessRecord{eagleA(), eagleB()})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Candidates)
	assert.Empty(t, res.Merges)
	require.Len(t, res.Records, 1)
	assert.NotNil(t, res.Records[0].Merge)
}

func TestEngine_Run_PostalPrefixOnlyKeepsBoth(t *testing.T) {
	e, events := newTestEngine(t, testDedupeConfig())

	res, err := e.Run(context.Background(), []*model.BusinessRecord{
		{ID: "a", Name: "Maple Leaf Catering", Address: &model.Address{PostalCode: "K1A 0B1"}},
		{ID: "b", Name: "Boreal Supply Depot", Address: &model.Address{PostalCode: "K1A 9Z9"}},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.Len(t, res.Records, 2)
	assert.Zero(t, countKind(*events, model.EventDuplicateFound))
}

func TestEngine_Run_InputErrors(t *testing.T) {
	e, _ := newTestEngine(t, testDedupeConfig())

	res, err := e.Run(context.Background(), []*model.BusinessRecord{
		eagleA(),
		{Name: "no id"},
		nil,
		eagleA(),
		{ID: "t", Name: "Tombstone", MergedInto: "a"},
	})
	require.NoError(t, err)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, 2, res.Errors[1].Index)
	assert.Equal(t, "a", res.Errors[2].RecordID)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.Records, 1)
}

func TestEngine_Run_AutoMergeDisabled(t *testing.T) {
	cfg := testDedupeConfig()
	cfg.AutoMerge = false
	e, events := newTestEngine(t, cfg)

	res, err := e.Run(context.Background(), []*model.BusinessRecord{eagleA(), eagleB()})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 1)
	assert.Empty(t, res.Merges)
	assert.Len(t, res.Records, 2)
	assert.Zero(t, countKind(*events, model.EventMergeCompleted))
}

func TestEngine_Run_ReviewQueue(t *testing.T) {
	e, _ := newTestEngine(t, testDedupeConfig())

	a := eagleA()
	b := eagleB()
	b.Phone = "416-555-9999"

	res, err := e.Run(context.Background(), []*model.BusinessRecord{a, b})
	require.NoError(t, err)
	require.Len(t, res.ReviewQueue, 1)
	assert.Equal(t, model.ActionManualReview, res.ReviewQueue[0].SuggestedAction)
	assert.Empty(t, res.Merges)
}

func TestEngine_Run_Canceled(t *testing.T) {
	e, _ := newTestEngine(t, testDedupeConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Run(ctx, []*model.BusinessRecord{eagleA(), eagleB()})
	require.NoError(t, err)
	assert.True(t, res.Canceled)
	assert.Empty(t, res.Candidates)
	assert.Empty(t, res.Merges)
}

func TestEngine_Run_ManyRecordsEachPairOnce(t *testing.T) {
	cfg := testDedupeConfig()
	cfg.AutoMerge = false
	e, events := newTestEngine(t, cfg)

	var recs []*model.BusinessRecord
	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		recs = append(recs, &model.BusinessRecord{ID: id, Name: "Northwind Traders", Website: "northwind.ca"})
	}

	res, err := e.Run(context.Background(), recs)
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 15)
	assert.Equal(t, 15, countKind(*events, model.EventDuplicateFound))

	seen := map[string]bool{}
	for i, c := range res.Candidates {
		assert.False(t, seen[c.PairKey()])
		seen[c.PairKey()] = true
		if i > 0 {
			prev := res.Candidates[i-1]
			assert.True(t, prev.Similarity > c.Similarity || prev.PairKey() < c.PairKey())
		}
	}
}

type stubAdjuster struct {
	conf float64
	err  error
}

func (s stubAdjuster) Adjust(context.Context, *model.BusinessRecord, *model.BusinessRecord, *model.DuplicateCandidate) (float64, error) {
	return s.conf, s.err
}

func TestEngine_Adjuster(t *testing.T) {
	e, _ := newTestEngine(t, testDedupeConfig(), WithAdjuster(stubAdjuster{conf: 0.42}))
	res, err := e.Run(context.Background(), []*model.BusinessRecord{eagleA(), eagleB()})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, 0.42, res.Candidates[0].Confidence)
	assert.Equal(t, model.ActionMerge, res.Candidates[0].SuggestedAction)

	e, _ = newTestEngine(t, testDedupeConfig(), WithAdjuster(stubAdjuster{err: errors.New("boom")}))
	res, err = e.Run(context.Background(), []*model.BusinessRecord{eagleA(), eagleB()})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, 1.0, res.Candidates[0].Confidence)
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

func TestLLMAdjuster_Blends(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "test-model" && len(req.Messages) == 1
	})).Return(textResponse("Sure.\n```json\n{\"likelihood\": 0.6, \"reason\": \"same BN\"}\n```"), nil)

	adj := NewLLMAdjuster(client, config.AnthropicConfig{Model: "test-model"})
	c := &model.DuplicateCandidate{RecordID1: "a", RecordID2: "b", Similarity: 0.9, Confidence: 0.8}

	conf, err := adj.Adjust(context.Background(), eagleA(), eagleB(), c)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, conf, 1e-9)
	client.AssertExpectations(t)
}

func TestLLMAdjuster_BadReply(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("no idea"), nil)

	adj := NewLLMAdjuster(client, config.AnthropicConfig{Model: "m"})
	c := &model.DuplicateCandidate{Confidence: 0.8}
	conf, err := adj.Adjust(context.Background(), eagleA(), eagleB(), c)
	assert.Error(t, err)
	assert.Equal(t, 0.8, conf)
}

func TestGuardedAdjuster_FallsBack(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, &anthropic.StatusError{Code: 400, Err: errors.New("bad request")})

	guard := resilience.NewGuard("anthropic", config.ResilienceConfig{MaxAttempts: 1, FailureThreshold: 5, ResetTimeoutSecs: 30})
	adj := NewGuardedAdjuster(NewLLMAdjuster(client, config.AnthropicConfig{Model: "m"}), guard)

	c := &model.DuplicateCandidate{RecordID1: "a", RecordID2: "b", Confidence: 0.77}
	conf, err := adj.Adjust(context.Background(), eagleA(), eagleB(), c)
	require.NoError(t, err)
	assert.Equal(t, 0.77, conf)
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}
