package model

import "time"

// SourceType classifies where a raw item was ingested from.
type SourceType string

const (
	SourceRSS        SourceType = "rss"
	SourceArxiv      SourceType = "arxiv"
	SourcePrimaryLab SourceType = "primary_lab"
)

// Source is a configured feed the ingestion collaborator pulls from.
type Source struct {
	ID       int64
	Name     string
	URL      string
	Type     SourceType
	IsActive bool
}

// RawItem is a single ingested news/research item. Items are immutable
// after ingestion except for frontier-lab enrichment; the pipeline only
// groups them into clusters.
type RawItem struct {
	ID          int64
	SourceID    int64
	SourceType  SourceType
	Title       string
	URL         string
	Content     string // empty when the source provided none
	PublishedAt *time.Time
	IngestedAt  time.Time
	FrontierLab string // organization name, empty unless identified as a primary source
}

// HasContent reports whether the item carries body text.
func (i RawItem) HasContent() bool {
	return i.Content != ""
}
