package priority

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orgmatch/internal/config"
	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/resilience"
	"github.com/sells-group/orgmatch/pkg/anthropic"
)

// Refiner rewrites the deterministic recommendations of a score. Returning
// no actions keeps the originals.
type Refiner interface {
	Refine(ctx context.Context, r *model.BusinessRecord, s *model.BusinessPriorityScore) ([]string, error)
}

const refineSystemPrompt = `You advise a business-development team on how to approach an organization.
Given its priority score breakdown and the draft actions, reply with a single JSON object:
{"actions": ["<short imperative action>", ...]} containing at most 5 actions, most important first.`

const maxRefinedActions = 5

// LLMRefiner asks an Anthropic model to rewrite recommended actions.
type LLMRefiner struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewLLMRefiner creates an LLMRefiner.
func NewLLMRefiner(client anthropic.Client, cfg config.AnthropicConfig) *LLMRefiner {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &LLMRefiner{client: client, model: cfg.Model, maxTokens: maxTokens}
}

type actionsReply struct {
	Actions []string `json:"actions"`
}

// Refine implements Refiner.
func (l *LLMRefiner) Refine(ctx context.Context, r *model.BusinessRecord, s *model.BusinessPriorityScore) ([]string, error) {
	resp, err := l.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     l.model,
		MaxTokens: l.maxTokens,
		System:    refineSystemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: refinePrompt(r, s)}},
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogUsage(l.model, "priority_refine")

	var reply actionsReply
	if err := anthropic.DecodeJSON(resp.Text(), &reply); err != nil {
		return nil, eris.Wrap(err, "priority: parse refined actions")
	}

	actions := make([]string, 0, len(reply.Actions))
	for _, a := range reply.Actions {
		if a = strings.TrimSpace(a); a != "" {
			actions = append(actions, a)
		}
		if len(actions) == maxRefinedActions {
			break
		}
	}
	if len(actions) == 0 {
		return nil, eris.New("priority: refined actions empty")
	}
	return actions, nil
}

func refinePrompt(r *model.BusinessRecord, s *model.BusinessPriorityScore) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Organization: %s\n", r.Name)
	if r.Type != "" {
		fmt.Fprintf(&sb, "Business type: %s\n", r.Type)
	}
	if len(r.Industries) > 0 {
		fmt.Fprintf(&sb, "Industries: %s\n", strings.Join(r.Industries, ", "))
	}
	fmt.Fprintf(&sb, "Overall priority: %.2f (%s)\n", s.Overall, s.Tier)

	names := make([]string, 0, len(s.Components))
	for name := range s.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "  %s: %.0f\n", name, s.Components[name])
	}

	sb.WriteString("Draft actions:\n")
	for _, a := range s.RecommendedActions {
		fmt.Fprintf(&sb, "  - %s\n", a)
	}
	return sb.String()
}

// GuardedRefiner runs a refiner behind a resilience guard. Failures are
// logged and reported as no actions.
type GuardedRefiner struct {
	next  Refiner
	guard *resilience.Guard
}

// NewGuardedRefiner wraps next with guard.
func NewGuardedRefiner(next Refiner, guard *resilience.Guard) *GuardedRefiner {
	return &GuardedRefiner{next: next, guard: guard}
}

// Refine implements Refiner.
func (g *GuardedRefiner) Refine(ctx context.Context, r *model.BusinessRecord, s *model.BusinessPriorityScore) ([]string, error) {
	actions, err := resilience.Call(ctx, g.guard, func(ctx context.Context) ([]string, error) {
		return g.next.Refine(ctx, r, s)
	})
	if err != nil {
		zap.L().Warn("priority: refinement failed, keeping recommendations",
			zap.String("record_id", r.ID),
			zap.Error(err),
		)
		return nil, nil
	}
	return actions, nil
}
