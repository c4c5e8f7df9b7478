// Package dedup groups raw items into story clusters by pairwise text
// similarity: a single-pass greedy clustering with no reassignment and no
// cross-cluster merging, an intentional O(n²)-per-batch approximation.
package dedup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vporoshin/curator/internal/model"
)

// Store is the slice of persistence the deduplicator needs.
type Store interface {
	UnclusteredItems(ctx context.Context, limit int) ([]model.RawItem, error)
	CreateClusters(ctx context.Context, batch []model.NewCluster) error
}

// Deduplicator is the first pipeline stage.
type Deduplicator struct {
	store Store
	cfg   model.PipelineConfig
	log   *slog.Logger
}

// New creates a deduplicator bound to a store.
func New(store Store, cfg model.PipelineConfig, log *slog.Logger) *Deduplicator {
	return &Deduplicator{store: store, cfg: cfg, log: log}
}

// Name identifies the stage.
func (d *Deduplicator) Name() string { return "dedup" }

// Run fetches one bounded batch of unclustered items, groups them, and
// commits all new clusters in a single transaction.
func (d *Deduplicator) Run(ctx context.Context) (model.StageReport, error) {
	report := model.NewStageReport(d.Name())

	items, err := d.store.UnclusteredItems(ctx, d.cfg.DedupBatchSize)
	if err != nil {
		return report, fmt.Errorf("load unclustered items: %w", err)
	}
	if len(items) == 0 {
		return report, nil
	}

	batch := BuildClusters(items, d.cfg.SimilarityThreshold)
	if err := d.store.CreateClusters(ctx, batch); err != nil {
		return report, fmt.Errorf("create clusters: %w", err)
	}

	clustered := 0
	for _, c := range batch {
		clustered += len(c.ItemIDs)
	}
	report.Processed = clustered
	report.Count("clusters_created", len(batch))
	report.Count("items_clustered", clustered)
	d.log.Info("clustering completed",
		"clusters_created", len(batch), "items_clustered", clustered)
	return report, nil
}

// BuildClusters runs the greedy pass over a batch. Items arrive in store
// order (earliest ingestion first), so the anchor of every cluster is the
// earliest-ingested item not yet absorbed by a previous anchor. Each item
// lands in at most one cluster per batch.
func BuildClusters(items []model.RawItem, threshold float64) []model.NewCluster {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = ClusterText(item)
	}

	absorbed := make(map[int64]bool, len(items))
	var batch []model.NewCluster

	for i, anchor := range items {
		if absorbed[anchor.ID] {
			continue
		}
		absorbed[anchor.ID] = true

		cluster := model.NewCluster{
			Title:   truncateRunes(anchor.Title, 500),
			Summary: truncateRunes(anchor.Content, 1000),
			Score:   0.5, // placeholder until the scorer runs
			ItemIDs: []int64{anchor.ID},
		}

		for j, other := range items {
			if j == i || absorbed[other.ID] {
				continue
			}
			if Ratio(texts[i], texts[j]) >= threshold {
				cluster.ItemIDs = append(cluster.ItemIDs, other.ID)
				absorbed[other.ID] = true
			}
		}

		batch = append(batch, cluster)
	}
	return batch
}
