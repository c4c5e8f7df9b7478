package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vporoshin/curator/internal/briefing"
	"github.com/vporoshin/curator/internal/dedup"
	"github.com/vporoshin/curator/internal/model"
	"github.com/vporoshin/curator/internal/narrate"
	"github.com/vporoshin/curator/internal/pipeline"
	"github.com/vporoshin/curator/internal/score"
	"github.com/vporoshin/curator/internal/store"
	"github.com/vporoshin/curator/internal/tag"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildPipeline(st *store.Store, cfg model.Config) *pipeline.Pipeline {
	log := testLogger()
	return pipeline.New(log,
		dedup.New(st, cfg.Pipeline, log),
		tag.New(st, cfg, log),
		score.New(st, cfg, log),
		narrate.New(st, cfg, log),
		briefing.New(st, cfg.Pipeline.BriefingSize, log),
	)
}

func seedFixture(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()

	sourceID, err := st.GetOrCreateSource(ctx, model.Source{
		Name:     "Test Feed",
		URL:      "https://feed.example/rss",
		Type:     model.SourceRSS,
		IsActive: true,
	})
	require.NoError(t, err)

	published := time.Now().UTC().Add(-6 * time.Hour)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	items := []model.RawItem{
		{
			SourceID:    sourceID,
			Title:       "OpenAI releases new reasoning model for developers",
			URL:         "https://openai.com/blog/reasoning-model",
			Content:     "The model improves multi-step reasoning across coding and math benchmarks.",
			PublishedAt: &published,
			IngestedAt:  base,
		},
		{
			SourceID:    sourceID,
			Title:       "OpenAI releases new reasoning model for researchers",
			URL:         "https://news.example/openai-reasoning",
			Content:     "The model improves multi-step reasoning across coding and math benchmarks today.",
			PublishedAt: &published,
			IngestedAt:  base.Add(time.Minute),
		},
		{
			SourceID:    sourceID,
			Title:       "FDA grants clearance for clinical imaging AI, now approved",
			URL:         "https://health.example/fda-clearance",
			PublishedAt: &published,
			IngestedAt:  base.Add(2 * time.Minute),
		},
	}
	for _, item := range items {
		_, err := st.InsertRawItem(ctx, item)
		require.NoError(t, err)
	}
}

func TestPipeline_FullPassAndIdempotentRerun(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := model.DefaultConfig()
	require.NoError(t, st.EnsureTopics(ctx, cfg.Topics))
	seedFixture(t, st)

	p := buildPipeline(st, cfg)

	run, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, run.Stages, 5)
	require.Zero(t, run.TotalSkipped())

	// Two similar items collapse into one cluster; the medical item stands
	// alone.
	count, err := st.ClusterCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	clusters, err := st.TopClusters(ctx, 10)
	require.NoError(t, err)
	for _, c := range clusters {
		require.NotEmpty(t, c.Topics, "cluster %d has no topics", c.ID)
		require.NotNil(t, c.Breakdown, "cluster %d has no breakdown", c.ID)
		require.GreaterOrEqual(t, c.Score, 0.0)
		require.LessOrEqual(t, c.Score, 1.0)
		require.NotEmpty(t, c.RankingRationale)
	}

	// The lab cluster got its url-derived frontier-lab label and topics.
	var labCluster, medCluster *model.Cluster
	for _, c := range clusters {
		if len(c.FrontierLabs()) > 0 {
			labCluster = c
		}
		if c.HasTopic(model.TopicMedicine) {
			medCluster = c
		}
	}
	require.NotNil(t, labCluster)
	require.Equal(t, []string{"OpenAI"}, labCluster.FrontierLabs())
	require.NotNil(t, medCluster)
	require.Equal(t, model.MaturityApprovedDeployed, medCluster.ClinicalMaturity)

	// The content-less medical cluster got a narrative and citations.
	require.NotEmpty(t, medCluster.Summary)
	citations, err := st.Citations(ctx, medCluster.ID)
	require.NoError(t, err)
	require.Len(t, citations, 1)

	briefingDoc, err := st.BriefingByDate(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, briefingDoc)
	require.Len(t, briefingDoc.ClusterIDs, 2)

	// Re-running over the same data must change nothing.
	run, err = p.Run(ctx)
	require.NoError(t, err)
	for _, report := range run.Stages {
		require.Zero(t, report.Processed, "stage %s reprocessed records", report.Stage)
	}

	count, err = st.ClusterCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	citations, err = st.Citations(ctx, medCluster.ID)
	require.NoError(t, err)
	require.Len(t, citations, 1)

	rerunDoc, err := st.BriefingByDate(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, briefingDoc.ID, rerunDoc.ID)
}

func TestPipeline_StageFatalAborts(t *testing.T) {
	log := testLogger()
	p := pipeline.New(log, failingStage{}, panicking{})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "stage boom")
}

type failingStage struct{}

func (failingStage) Name() string { return "boom" }
func (failingStage) Run(ctx context.Context) (model.StageReport, error) {
	return model.NewStageReport("boom"), context.DeadlineExceeded
}

// panicking fails the test if the pipeline reaches it after a fatal stage.
type panicking struct{}

func (panicking) Name() string { return "unreachable" }
func (panicking) Run(ctx context.Context) (model.StageReport, error) {
	panic("stage executed after a fatal error")
}
