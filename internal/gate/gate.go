package gate

import (
	"context"

	"github.com/JNZader/prgate/internal/logger"
	"github.com/JNZader/prgate/internal/pr"
	"github.com/JNZader/prgate/internal/rules"
)

// Gate ties a source to an engine: resolve, then evaluate.
type Gate struct {
	source pr.Source
	engine *Engine
	opts   ResolveOptions
	log    *logger.Logger
}

// New creates a gate.
func New(source pr.Source, checkers []rules.Checker, opts ResolveOptions) *Gate {
	return &Gate{
		source: source,
		engine: NewEngine(checkers),
		opts:   opts,
		log:    logger.Default().WithPrefix("gate"),
	}
}

// Run resolves the snapshot and evaluates every rule against it.
func (g *Gate) Run(ctx context.Context) (*Report, error) {
	g.log.Info("Resolving change set from %s source", g.source.Name())

	res, err := Resolve(ctx, g.source, g.opts)
	if err != nil {
		return nil, err
	}
	for _, f := range res.Fetches {
		if f.Err != nil {
			g.log.Warn("diff unavailable for %s: %v", f.Path, f.Err)
		}
	}

	report := g.engine.Evaluate(res.Snapshot)
	report.Source = g.source.Name()
	report.FetchErrors = res.Errors()
	report.Stats.Fetches = len(res.Fetches)
	for _, f := range res.Fetches {
		report.Stats.FetchLatencies = append(report.Stats.FetchLatencies, f.Duration)
	}

	g.log.Info("Gate %s: %d fail, %d warn, %d info, %d skipped rule(s), %d unavailable diff(s)",
		report.Decision(),
		report.Count(rules.SeverityFail), report.Count(rules.SeverityWarn), report.Count(rules.SeverityInfo),
		len(report.Skipped), len(report.FetchErrors))

	return report, nil
}
