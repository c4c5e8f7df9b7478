// Package pipeline drives the curation stages in their fixed order:
// dedup, tag, score, write, brief. One Run is one batch pass; re-running
// with no new data changes nothing because every stage selects only
// unprocessed state.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vporoshin/curator/internal/model"
)

// Stage is a single pipeline step operating on one bounded batch.
type Stage interface {
	Name() string
	Run(ctx context.Context) (model.StageReport, error)
}

// Pipeline executes stages sequentially. Any stage-fatal error aborts the
// remaining stages; per-item failures are reported, not fatal.
type Pipeline struct {
	stages []Stage
	log    *slog.Logger
}

// New builds a pipeline over the given stages, in the given order.
func New(log *slog.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, log: log}
}

// Run executes every stage once and aggregates their reports.
func (p *Pipeline) Run(ctx context.Context) (model.RunReport, error) {
	var run model.RunReport

	for i, stage := range p.stages {
		p.log.Info("stage starting", "stage", stage.Name(), "step", fmt.Sprintf("%d/%d", i+1, len(p.stages)))

		report, err := stage.Run(ctx)
		run.Stages = append(run.Stages, report)
		if err != nil {
			return run, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}

		for _, outcome := range report.Skipped {
			p.log.Warn("record skipped", "stage", stage.Name(), "id", outcome.ID, "error", outcome.Err)
		}
		p.log.Info("stage completed", "stage", stage.Name(),
			"processed", report.Processed, "skipped", len(report.Skipped))
	}

	p.log.Info("pipeline completed", "stages", len(p.stages), "total_skipped", run.TotalSkipped())
	return run, nil
}
