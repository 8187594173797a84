package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orgmatch/internal/config"
	"github.com/sells-group/orgmatch/internal/cost"
	"github.com/sells-group/orgmatch/internal/dedupe"
	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/pipeline"
	"github.com/sells-group/orgmatch/internal/priority"
	"github.com/sells-group/orgmatch/internal/resilience"
	"github.com/sells-group/orgmatch/internal/store"
	"github.com/sells-group/orgmatch/pkg/anthropic"
)

// appEnv holds the initialized dependencies shared by all commands.
type appEnv struct {
	KV       store.KV
	Repo     *store.Repository
	Dedupe   *dedupe.Engine
	Priority *priority.Engine
	Pipeline *pipeline.Pipeline

	// Meter is set when an LLM collaborator is enabled.
	Meter *cost.Meter
}

// Close logs LLM usage, sweeps expired entries and releases the store.
func (e *appEnv) Close() {
	if e.Meter != nil {
		e.Meter.LogSummary()
	}
	if e.KV != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := store.SweepExpired(ctx, e.KV); err != nil {
			zap.L().Warn("sweep store", zap.Error(err))
		}
		cancel()
		if err := e.KV.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initEnv validates the config for mode and wires the store, the engines
// and the pipeline. The caller must call Close on the returned env.
func initEnv(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	kv, err := store.Open(ctx, c.Store, c.Cache)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	env := &appEnv{KV: kv, Repo: store.NewRepository(kv, c.Cache)}

	if err := env.build(c); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

func (e *appEnv) build(c *config.Config) error {
	obs := logObserver()

	var llm anthropic.Client
	if c.Dedupe.LLMAdjust || c.Priority.Refine {
		e.Meter = cost.NewMeter(anthropic.NewClient(c.Anthropic.Key), cost.NewCalculator(cost.DefaultRates()))
		llm = e.Meter
	}

	ddOpts := []dedupe.Option{dedupe.WithObserver(obs)}
	if c.Dedupe.LLMAdjust {
		guard := resilience.NewGuard("anthropic-adjust", c.Resilience)
		ddOpts = append(ddOpts, dedupe.WithAdjuster(
			dedupe.NewGuardedAdjuster(dedupe.NewLLMAdjuster(llm, c.Anthropic), guard),
		))
	}
	dd, err := dedupe.NewEngine(c.Dedupe, e.Repo, ddOpts...)
	if err != nil {
		return eris.Wrap(err, "create dedupe engine")
	}

	profile, err := priority.LoadProfile(c.Priority.ProfilePath)
	if err != nil {
		return err
	}
	prOpts := []priority.Option{priority.WithProfile(profile)}
	if c.Priority.Refine {
		guard := resilience.NewGuard("anthropic-refine", c.Resilience)
		prOpts = append(prOpts, priority.WithRefiner(
			priority.NewGuardedRefiner(priority.NewLLMRefiner(llm, c.Anthropic), guard),
		))
	}
	pr, err := priority.NewEngine(c.Priority.Weights, prOpts...)
	if err != nil {
		return eris.Wrap(err, "create priority engine")
	}

	p, err := pipeline.New(dd, pr, e.Repo,
		pipeline.WithObserver(obs),
		pipeline.WithWorkers(c.Priority.Workers),
	)
	if err != nil {
		return err
	}

	e.Dedupe, e.Priority, e.Pipeline = dd, pr, p
	return nil
}

// logObserver writes engine events to the debug log.
func logObserver() model.Observer {
	log := zap.L().With(zap.String("component", "events"))
	return model.ObserverFunc(func(ev model.Event) {
		fields := []zap.Field{zap.String("kind", string(ev.Kind)), zap.String("run_id", ev.RunID)}
		switch {
		case ev.Candidate != nil:
			fields = append(fields,
				zap.String("record_1", ev.Candidate.RecordID1),
				zap.String("record_2", ev.Candidate.RecordID2),
				zap.Float64("confidence", ev.Candidate.Confidence),
			)
		case ev.Merge != nil:
			fields = append(fields, zap.String("secondary", ev.Merge.SecondaryID), zap.Bool("no_op", ev.Merge.NoOp))
			if ev.Merge.Canonical != nil {
				fields = append(fields, zap.String("canonical", ev.Merge.Canonical.ID))
			}
		case ev.Score != nil:
			fields = append(fields,
				zap.String("record_id", ev.Score.RecordID),
				zap.Float64("overall", ev.Score.Overall),
				zap.String("tier", string(ev.Score.Tier)),
			)
		case ev.Progress != nil:
			fields = append(fields, zap.Int("processed", ev.Progress.Processed), zap.Int("total", ev.Progress.Total))
		}
		log.Debug("event", fields...)
	})
}
