package model

import "fmt"

// ItemOutcome records the fate of a single item or cluster within a stage
// batch. Failed records are skipped, not fatal; the stage keeps going.
type ItemOutcome struct {
	ID  int64
	Err error
}

// StageReport summarizes one stage execution: how many records it touched
// and which ones it had to skip.
type StageReport struct {
	Stage     string
	Processed int
	Skipped   []ItemOutcome

	// Stage-specific counters, e.g. clusters created vs items clustered
	// for the deduplicator.
	Counters map[string]int
}

// NewStageReport creates an empty report for the named stage.
func NewStageReport(stage string) StageReport {
	return StageReport{Stage: stage, Counters: make(map[string]int)}
}

// Skip records a per-item failure.
func (r *StageReport) Skip(id int64, err error) {
	r.Skipped = append(r.Skipped, ItemOutcome{ID: id, Err: err})
}

// Count bumps a named counter.
func (r *StageReport) Count(name string, delta int) {
	r.Counters[name] += delta
}

// Summary renders a compact single-line description for logs.
func (r StageReport) Summary() string {
	return fmt.Sprintf("stage=%s processed=%d skipped=%d", r.Stage, r.Processed, len(r.Skipped))
}

// RunReport aggregates the stage reports of one full pipeline invocation.
type RunReport struct {
	Stages []StageReport
}

// TotalSkipped counts per-item failures across all stages.
func (r RunReport) TotalSkipped() int {
	n := 0
	for _, s := range r.Stages {
		n += len(s.Skipped)
	}
	return n
}
