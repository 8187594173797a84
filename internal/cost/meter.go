package cost

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/orgmatch/pkg/anthropic"
)

// Totals is the accumulated usage of a Meter.
type Totals struct {
	Calls        int     `json:"calls"`
	Failures     int     `json:"failures"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Meter is an anthropic.Client that records token usage and cost of every
// call it forwards. It is safe for concurrent use.
type Meter struct {
	next anthropic.Client
	calc *Calculator

	mu     sync.Mutex
	totals Totals
}

// NewMeter wraps next.
func NewMeter(next anthropic.Client, calc *Calculator) *Meter {
	return &Meter{next: next, calc: calc}
}

// CreateMessage forwards req and records the response usage.
func (m *Meter) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	resp, err := m.next.CreateMessage(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.Calls++
	if err != nil {
		m.totals.Failures++
		return resp, err
	}
	if resp != nil {
		model := resp.Model
		if model == "" {
			model = req.Model
		}
		m.totals.InputTokens += resp.Usage.InputTokens
		m.totals.OutputTokens += resp.Usage.OutputTokens
		m.totals.CostUSD += m.calc.Claude(model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}
	return resp, nil
}

// Totals returns a snapshot of the accumulated usage.
func (m *Meter) Totals() Totals {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals
}

// LogSummary logs the accumulated usage. Nothing is logged when no call was
// made.
func (m *Meter) LogSummary() {
	t := m.Totals()
	if t.Calls == 0 {
		return
	}
	zap.L().Info("anthropic: usage summary",
		zap.Int("calls", t.Calls),
		zap.Int("failures", t.Failures),
		zap.Int64("input_tokens", t.InputTokens),
		zap.Int64("output_tokens", t.OutputTokens),
		zap.Float64("cost_usd", t.CostUSD),
	)
}
