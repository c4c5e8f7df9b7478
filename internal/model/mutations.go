package model

// Write models for the pipeline stages. Each stage buffers its mutations
// into one of these batches and the store commits the batch in a single
// transaction.

// NewCluster is a cluster created by the deduplicator, seeded from its
// anchor item and owning the anchor plus any similar items.
type NewCluster struct {
	Title   string
	Summary string
	Score   float64
	ItemIDs []int64 // anchor first, then joined items in batch order
}

// TagUpdate carries a tagger decision for one cluster.
type TagUpdate struct {
	ClusterID  int64
	TopicSlugs []string
	Maturity   ClinicalMaturityLevel // empty to leave unset
	ItemLabels map[int64]string      // frontier-lab enrichment, item id -> lab name
}

// ScoreUpdate carries a scorer decision for one cluster.
type ScoreUpdate struct {
	ClusterID int64
	Breakdown ScoreBreakdown
	Overall   float64
	Rationale string
}

// NarrativeUpdate carries the narrator output for one cluster. Citations
// replace the cluster's existing set entirely.
type NarrativeUpdate struct {
	ClusterID       int64
	Summary         string
	WhyThisMatters  string
	WhatToWatchNext string
	Citations       []Citation
}
