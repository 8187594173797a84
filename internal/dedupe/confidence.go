package dedupe

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orgmatch/internal/config"
	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/resilience"
	"github.com/sells-group/orgmatch/pkg/anthropic"
)

// Confidence derives the heuristic confidence for a scored pair:
//   - x1.3 (capped at 1) on an exact business-number match,
//   - x0.8 when neither phone nor email could be compared,
//   - x1.1 (capped at 1) when three or more fields score at least 0.9.
func Confidence(similarity float64, fields []model.MatchingField) float64 {
	c := similarity

	var hasPhone, hasEmail bool
	strong := 0
	for _, f := range fields {
		switch f.Field {
		case FieldBusinessNumber:
			if f.Similarity >= 1 {
				c = math.Min(c*1.3, 1)
			}
		case FieldPhone:
			hasPhone = true
		case FieldEmail:
			hasEmail = true
		}
		if f.Similarity >= 0.9 {
			strong++
		}
	}

	if !hasPhone && !hasEmail {
		c *= 0.8
	}
	if strong >= 3 {
		c = math.Min(c*1.1, 1)
	}
	return clamp01(c)
}

// ConfidenceAdjuster refines the heuristic confidence of a candidate. It
// never changes the aggregate similarity or the suggested action.
type ConfidenceAdjuster interface {
	Adjust(ctx context.Context, a, b *model.BusinessRecord, c *model.DuplicateCandidate) (float64, error)
}

const adjustSystemPrompt = `You judge whether two organization records describe the same real-world organization.
Reply with a single JSON object: {"likelihood": <number between 0 and 1>, "reason": "<one sentence>"}.`

// LLMAdjuster asks an Anthropic model for a duplicate likelihood and blends
// it 50/50 with the heuristic confidence.
type LLMAdjuster struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewLLMAdjuster creates an LLMAdjuster.
func NewLLMAdjuster(client anthropic.Client, cfg config.AnthropicConfig) *LLMAdjuster {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &LLMAdjuster{client: client, model: cfg.Model, maxTokens: maxTokens}
}

type likelihoodReply struct {
	Likelihood *float64 `json:"likelihood"`
	Reason     string   `json:"reason"`
}

// Adjust implements ConfidenceAdjuster.
func (l *LLMAdjuster) Adjust(ctx context.Context, a, b *model.BusinessRecord, c *model.DuplicateCandidate) (float64, error) {
	temp := 0.0
	resp, err := l.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       l.model,
		MaxTokens:   l.maxTokens,
		System:      adjustSystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: adjustPrompt(a, b, c)}},
		Temperature: &temp,
	})
	if err != nil {
		return c.Confidence, err
	}
	resp.Usage.LogUsage(l.model, "confidence_adjust")

	var reply likelihoodReply
	if err := anthropic.DecodeJSON(resp.Text(), &reply); err != nil {
		return c.Confidence, eris.Wrap(err, "dedupe: parse likelihood")
	}
	if reply.Likelihood == nil || math.IsNaN(*reply.Likelihood) {
		return c.Confidence, eris.New("dedupe: likelihood missing from reply")
	}

	return clamp01(0.5*c.Confidence + 0.5*clamp01(*reply.Likelihood)), nil
}

func adjustPrompt(a, b *model.BusinessRecord, c *model.DuplicateCandidate) string {
	var sb strings.Builder
	for i, r := range []*model.BusinessRecord{a, b} {
		fmt.Fprintf(&sb, "Record %d:\n", i+1)
		fmt.Fprintf(&sb, "  name: %s\n", r.Name)
		writeIf(&sb, "legal name", r.LegalName)
		writeIf(&sb, "business number", r.BusinessNumber)
		writeIf(&sb, "phone", r.Phone)
		writeIf(&sb, "email", r.Email)
		writeIf(&sb, "website", r.Website)
		if r.Address != nil {
			writeIf(&sb, "address", strings.Join(nonEmpty(r.Address.Street, r.Address.City, r.Address.Province, r.Address.PostalCode), ", "))
		}
		if len(r.Industries) > 0 {
			writeIf(&sb, "industries", strings.Join(r.Industries, ", "))
		}
	}
	fmt.Fprintf(&sb, "Heuristic similarity: %.2f\n", c.Similarity)
	for _, f := range c.MatchingFields {
		fmt.Fprintf(&sb, "  %s: %.2f (%s)\n", f.Field, f.Similarity, f.MatchType)
	}
	return sb.String()
}

func writeIf(sb *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(sb, "  %s: %s\n", label, value)
	}
}

func nonEmpty(vals ...string) []string {
	out := vals[:0:0]
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// GuardedAdjuster runs an adjuster behind a resilience guard. On any failure
// it logs a warning and returns the heuristic confidence with a nil error.
type GuardedAdjuster struct {
	next  ConfidenceAdjuster
	guard *resilience.Guard
}

// NewGuardedAdjuster wraps next with guard.
func NewGuardedAdjuster(next ConfidenceAdjuster, guard *resilience.Guard) *GuardedAdjuster {
	return &GuardedAdjuster{next: next, guard: guard}
}

// Adjust implements ConfidenceAdjuster.
func (g *GuardedAdjuster) Adjust(ctx context.Context, a, b *model.BusinessRecord, c *model.DuplicateCandidate) (float64, error) {
	conf, err := resilience.Call(ctx, g.guard, func(ctx context.Context) (float64, error) {
		return g.next.Adjust(ctx, a, b, c)
	})
	if err != nil {
		zap.L().Warn("dedupe: confidence adjustment failed, keeping heuristic",
			zap.String("pair", c.PairKey()),
			zap.Error(err),
		)
		return c.Confidence, nil
	}
	return conf, nil
}
