// Package briefing assembles the once-per-date daily briefing from the
// highest-scored clusters store-wide.
package briefing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vporoshin/curator/internal/model"
)

// Store is the slice of persistence the compiler needs.
type Store interface {
	// BriefingByDate returns nil when no briefing exists for the date.
	BriefingByDate(ctx context.Context, date time.Time) (*model.DailyBriefing, error)
	TopClusters(ctx context.Context, limit int) ([]*model.Cluster, error)
	CreateBriefing(ctx context.Context, date time.Time, content string, clusterIDs []int64) (int64, error)
}

// Compiler is the final pipeline stage.
type Compiler struct {
	store Store
	size  int
	log   *slog.Logger
	now   func() time.Time
}

// New creates a compiler selecting up to size clusters per briefing.
func New(store Store, size int, log *slog.Logger) *Compiler {
	return &Compiler{store: store, size: size, log: log, now: time.Now}
}

// WithClock substitutes the process clock. Tests only.
func (c *Compiler) WithClock(now func() time.Time) *Compiler {
	c.now = now
	return c
}

// Name identifies the stage.
func (c *Compiler) Name() string { return "brief" }

// Run compiles today's briefing and reports the outcome.
func (c *Compiler) Run(ctx context.Context) (model.StageReport, error) {
	report := model.NewStageReport(c.Name())

	result, err := c.Compile(ctx)
	if err != nil {
		return report, err
	}
	if result.Created {
		report.Processed = 1
	}
	report.Count("briefing_clusters", result.ClusterCount)
	c.log.Info("briefing compiled",
		"briefing_id", result.BriefingID, "clusters", result.ClusterCount, "created", result.Created)
	return report, nil
}

// Compile builds the briefing for today's date (midnight UTC). Re-running
// on a date that already has a briefing is a no-op returning the existing
// document's id with Created=false.
func (c *Compiler) Compile(ctx context.Context) (model.BriefingResult, error) {
	date := model.BriefingDate(c.now())

	existing, err := c.store.BriefingByDate(ctx, date)
	if err != nil {
		return model.BriefingResult{}, fmt.Errorf("look up briefing: %w", err)
	}
	if existing != nil {
		return model.BriefingResult{
			BriefingID:   existing.ID,
			ClusterCount: len(existing.ClusterIDs),
			Created:      false,
		}, nil
	}

	clusters, err := c.store.TopClusters(ctx, c.size)
	if err != nil {
		return model.BriefingResult{}, fmt.Errorf("load top clusters: %w", err)
	}

	ids := make([]int64, 0, len(clusters))
	for _, cl := range clusters {
		ids = append(ids, cl.ID)
	}

	id, err := c.store.CreateBriefing(ctx, date, Content(clusters), ids)
	if err != nil {
		return model.BriefingResult{}, fmt.Errorf("create briefing: %w", err)
	}
	return model.BriefingResult{
		BriefingID:   id,
		ClusterCount: len(clusters),
		Created:      true,
	}, nil
}

// Content renders the briefing document: a numbered list of titles with a
// short summary excerpt each.
func Content(clusters []*model.Cluster) string {
	if len(clusters) == 0 {
		return "No stories available for today."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Today's briefing covers %d key developments in AI:\n\n", len(clusters))
	for i, cluster := range clusters {
		fmt.Fprintf(&b, "%d. %s\n", i+1, cluster.Title)
		if cluster.Summary != "" {
			fmt.Fprintf(&b, "   %s\n\n", excerpt(cluster.Summary, 200))
		}
	}
	return b.String()
}

func excerpt(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
