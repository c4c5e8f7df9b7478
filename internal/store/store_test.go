package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vporoshin/curator/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedSource(t *testing.T, s *Store) int64 {
	t.Helper()
	id, err := s.GetOrCreateSource(context.Background(), model.Source{
		Name:     "Test Feed",
		URL:      "https://feed.example/rss",
		Type:     model.SourceRSS,
		IsActive: true,
	})
	require.NoError(t, err)
	return id
}

func seedItem(t *testing.T, s *Store, sourceID int64, title, url string, ingested time.Time) int64 {
	t.Helper()
	id, err := s.InsertRawItem(context.Background(), model.RawItem{
		SourceID:   sourceID,
		Title:      title,
		URL:        url,
		IngestedAt: ingested,
	})
	require.NoError(t, err)
	return id
}

func TestGetOrCreateSource_Idempotent(t *testing.T) {
	s := newTestStore(t)

	first := seedSource(t, s)
	second := seedSource(t, s)
	require.Equal(t, first, second)
}

func TestHasItemURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sourceID := seedSource(t, s)

	exists, err := s.HasItemURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	require.False(t, exists)

	seedItem(t, s, sourceID, "A", "https://example.com/a", time.Now().UTC())

	exists, err = s.HasItemURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestEnsureTopics_UpsertInvalidatesCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cfg := model.DefaultConfig()

	require.NoError(t, s.EnsureTopics(ctx, cfg.Topics))

	bySlug, err := s.TopicsBySlug(ctx)
	require.NoError(t, err)
	require.Len(t, bySlug, len(cfg.Topics))
	require.Equal(t, "General AI", bySlug[model.TopicGeneralAI].Name)

	renamed := []model.TopicRule{{Name: "General Artificial Intelligence", Slug: model.TopicGeneralAI}}
	require.NoError(t, s.EnsureTopics(ctx, renamed))

	bySlug, err = s.TopicsBySlug(ctx)
	require.NoError(t, err)
	require.Equal(t, "General Artificial Intelligence", bySlug[model.TopicGeneralAI].Name)
}

func TestUnclusteredItems_OrderAndClustering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sourceID := seedSource(t, s)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	late := seedItem(t, s, sourceID, "Late", "https://example.com/late", base.Add(2*time.Hour))
	early := seedItem(t, s, sourceID, "Early", "https://example.com/early", base)
	middle := seedItem(t, s, sourceID, "Middle", "https://example.com/middle", base.Add(time.Hour))

	items, err := s.UnclusteredItems(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, []int64{early, middle, late}, []int64{items[0].ID, items[1].ID, items[2].ID})

	require.NoError(t, s.CreateClusters(ctx, []model.NewCluster{
		{Title: "Early story", Score: 0.5, ItemIDs: []int64{early, middle}},
	}))

	items, err = s.UnclusteredItems(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, late, items[0].ID)
}

func TestApplyTags_SetOnceMaturityAndEnrichment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cfg := model.DefaultConfig()
	require.NoError(t, s.EnsureTopics(ctx, cfg.Topics))

	sourceID := seedSource(t, s)
	itemID := seedItem(t, s, sourceID, "FDA clears tool", "https://openai.com/blog/tool", time.Now().UTC())
	require.NoError(t, s.CreateClusters(ctx, []model.NewCluster{
		{Title: "FDA clears tool", Score: 0.5, ItemIDs: []int64{itemID}},
	}))

	untagged, err := s.UntaggedClusters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, untagged, 1)
	clusterID := untagged[0].ID

	require.NoError(t, s.ApplyTags(ctx, []model.TagUpdate{{
		ClusterID:  clusterID,
		TopicSlugs: []string{model.TopicMedicine, model.TopicGeneralAI},
		Maturity:   model.MaturityRegulatoryRelevant,
		ItemLabels: map[int64]string{itemID: "OpenAI"},
	}}))

	untagged, err = s.UntaggedClusters(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, untagged)

	clusters, err := s.TopClusters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	cluster := clusters[0]
	require.True(t, cluster.HasTopic(model.TopicMedicine))
	require.True(t, cluster.HasTopic(model.TopicGeneralAI))
	require.Equal(t, model.MaturityRegulatoryRelevant, cluster.ClinicalMaturity)
	require.Len(t, cluster.Items, 1)
	require.Equal(t, "OpenAI", cluster.Items[0].FrontierLab)

	// A later pass must not change an assigned maturity or an existing label.
	require.NoError(t, s.ApplyTags(ctx, []model.TagUpdate{{
		ClusterID:  clusterID,
		TopicSlugs: []string{model.TopicMedicine},
		Maturity:   model.MaturityApprovedDeployed,
		ItemLabels: map[int64]string{itemID: "DeepMind"},
	}}))

	clusters, err = s.TopClusters(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, model.MaturityRegulatoryRelevant, clusters[0].ClinicalMaturity)
	require.Equal(t, "OpenAI", clusters[0].Items[0].FrontierLab)
}

func TestApplyScores_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sourceID := seedSource(t, s)
	itemID := seedItem(t, s, sourceID, "Story", "https://example.com/story", time.Now().UTC())
	require.NoError(t, s.CreateClusters(ctx, []model.NewCluster{
		{Title: "Story", Score: 0.5, ItemIDs: []int64{itemID}},
	}))

	unscored, err := s.UnscoredClusters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unscored, 1)
	clusterID := unscored[0].ID

	update := model.ScoreUpdate{
		ClusterID: clusterID,
		Breakdown: model.ScoreBreakdown{Relevance: 0.8, Impact: 0.7, Credibility: 0.9, Novelty: 0.6, Corroboration: 0.5},
		Overall:   0.735,
		Rationale: "Ranked high due to: high credibility sources.",
	}
	require.NoError(t, s.ApplyScores(ctx, []model.ScoreUpdate{update}))

	unscored, err = s.UnscoredClusters(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, unscored)

	clusters, err := s.TopClusters(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, clusters[0].Breakdown)
	require.Equal(t, 0.8, clusters[0].Breakdown.Relevance)
	require.Equal(t, 0.735, clusters[0].Score)
	require.Equal(t, update.Rationale, clusters[0].RankingRationale)

	// Rescoring updates the existing breakdown row in place.
	update.Breakdown.Relevance = 0.85
	update.Overall = 0.75
	require.NoError(t, s.ApplyScores(ctx, []model.ScoreUpdate{update}))

	var rows int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM score_breakdowns").Scan(&rows))
	require.Equal(t, 1, rows)

	clusters, err = s.TopClusters(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 0.85, clusters[0].Breakdown.Relevance)
	require.Equal(t, 0.75, clusters[0].Score)
}

func TestApplyNarratives_RebuildsCitations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sourceID := seedSource(t, s)
	itemID := seedItem(t, s, sourceID, "Story", "https://example.com/story", time.Now().UTC())
	require.NoError(t, s.CreateClusters(ctx, []model.NewCluster{
		{Title: "Story", Score: 0.5, ItemIDs: []int64{itemID}},
	}))

	unwritten, err := s.UnwrittenClusters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unwritten, 1)
	clusterID := unwritten[0].ID

	update := model.NarrativeUpdate{
		ClusterID:       clusterID,
		Summary:         "Recent development: Story",
		WhyThisMatters:  "It matters.",
		WhatToWatchNext: "Watch closely.",
		Citations: []model.Citation{
			{ClusterID: clusterID, RawItemID: itemID, Text: "Story", URL: "https://example.com/story"},
		},
	}
	require.NoError(t, s.ApplyNarratives(ctx, []model.NarrativeUpdate{update}))

	unwritten, err = s.UnwrittenClusters(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, unwritten)

	// Re-applying replaces the citation set instead of appending to it.
	require.NoError(t, s.ApplyNarratives(ctx, []model.NarrativeUpdate{update}))

	citations, err := s.Citations(ctx, clusterID)
	require.NoError(t, err)
	require.Len(t, citations, 1)
	require.Equal(t, "Story", citations[0].Text)
}

func TestBriefings_UniquePerDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sourceID := seedSource(t, s)
	itemID := seedItem(t, s, sourceID, "Story", "https://example.com/story", time.Now().UTC())
	require.NoError(t, s.CreateClusters(ctx, []model.NewCluster{
		{Title: "Story", Score: 0.5, ItemIDs: []int64{itemID}},
	}))
	clusters, err := s.TopClusters(ctx, 10)
	require.NoError(t, err)
	clusterID := clusters[0].ID

	date := time.Date(2026, 3, 10, 18, 45, 0, 0, time.UTC)

	existing, err := s.BriefingByDate(ctx, date)
	require.NoError(t, err)
	require.Nil(t, existing)

	briefingID, err := s.CreateBriefing(ctx, date, "Today's briefing covers 1 key developments in AI:", []int64{clusterID})
	require.NoError(t, err)

	found, err := s.BriefingByDate(ctx, date)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, briefingID, found.ID)
	require.Equal(t, []int64{clusterID}, found.ClusterIDs)
	require.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), found.Date)

	// Any clock reading on the same calendar date resolves to the same row.
	sameDay, err := s.BriefingByDate(ctx, date.Add(3*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, sameDay)

	_, err = s.CreateBriefing(ctx, date, "duplicate", nil)
	require.Error(t, err)
}

func TestTopClusters_Order(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sourceID := seedSource(t, s)

	var clusterIDs []int64
	for i, score := range []float64{0.4, 0.9, 0.9} {
		itemID := seedItem(t, s, sourceID, "Story", fmt.Sprintf("https://example.com/story-%d", i), time.Now().UTC())
		require.NoError(t, s.CreateClusters(ctx, []model.NewCluster{
			{Title: "Story", Score: 0.5, ItemIDs: []int64{itemID}},
		}))
		unscored, err := s.UnscoredClusters(ctx, 10)
		require.NoError(t, err)
		require.Len(t, unscored, 1)
		id := unscored[0].ID
		require.NoError(t, s.ApplyScores(ctx, []model.ScoreUpdate{{
			ClusterID: id,
			Breakdown: model.ScoreBreakdown{Relevance: score, Impact: score, Credibility: score, Novelty: score, Corroboration: score},
			Overall:   score,
		}}))
		clusterIDs = append(clusterIDs, id)
	}

	top, err := s.TopClusters(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	// The two 0.9 clusters tie; the lower id wins.
	require.Equal(t, clusterIDs[1], top[0].ID)
	require.Equal(t, clusterIDs[2], top[1].ID)
}
