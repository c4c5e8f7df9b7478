package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/vporoshin/curator/internal/model"
)

func clusterColumns() []string {
	return []string{
		"c.id", "c.title", "COALESCE(c.summary, '')",
		"COALESCE(c.why_this_matters, '')", "COALESCE(c.what_to_watch_next, '')",
		"c.score", "COALESCE(c.ranking_rationale, '')",
		"COALESCE(c.clinical_maturity_level, '')",
	}
}

// CreateClusters persists a dedup batch: every cluster row plus its item
// memberships, in one transaction.
func (s *Store) CreateClusters(ctx context.Context, batch []model.NewCluster) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, nc := range batch {
			query, args, err := s.builder.
				Insert("clusters").
				Columns("title", "summary", "score", "created_at", "updated_at").
				Values(nc.Title, nullableString(nc.Summary), nc.Score, now, now).
				ToSql()
			if err != nil {
				return fmt.Errorf("build cluster insert: %w", err)
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("insert cluster: %w", err)
			}
			clusterID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("cluster id: %w", err)
			}

			for _, itemID := range nc.ItemIDs {
				query, args, err := s.builder.
					Insert("cluster_items").
					Columns("cluster_id", "raw_item_id").
					Values(clusterID, itemID).
					ToSql()
				if err != nil {
					return fmt.Errorf("build cluster item insert: %w", err)
				}
				if _, err := tx.ExecContext(ctx, query, args...); err != nil {
					return fmt.Errorf("link item %d to cluster %d: %w", itemID, clusterID, err)
				}
			}
		}
		return nil
	})
}

// UntaggedClusters returns up to limit clusters with no topic rows yet.
func (s *Store) UntaggedClusters(ctx context.Context, limit int) ([]*model.Cluster, error) {
	q := s.builder.
		Select(clusterColumns()...).
		From("clusters c").
		Where("NOT EXISTS (SELECT 1 FROM cluster_topics ct WHERE ct.cluster_id = c.id)").
		OrderBy("c.id ASC").
		Limit(uint64(limit))
	return s.queryClusters(ctx, q)
}

// UnscoredClusters returns up to limit clusters that have no score
// breakdown yet or whose score sits below the unscored floor.
func (s *Store) UnscoredClusters(ctx context.Context, limit int) ([]*model.Cluster, error) {
	q := s.builder.
		Select(clusterColumns()...).
		From("clusters c").
		LeftJoin("score_breakdowns sb ON sb.cluster_id = c.id").
		Where(sq.Or{
			sq.Expr("sb.id IS NULL"),
			sq.Lt{"c.score": unscoredFloor},
		}).
		OrderBy("c.id ASC").
		Limit(uint64(limit))
	return s.queryClusters(ctx, q)
}

// UnwrittenClusters returns up to limit clusters still lacking a
// narrative summary.
func (s *Store) UnwrittenClusters(ctx context.Context, limit int) ([]*model.Cluster, error) {
	q := s.builder.
		Select(clusterColumns()...).
		From("clusters c").
		Where("c.summary IS NULL OR c.summary = ''").
		OrderBy("c.id ASC").
		Limit(uint64(limit))
	return s.queryClusters(ctx, q)
}

// TopClusters returns the highest-scored clusters store-wide, ties broken
// by id for determinism.
func (s *Store) TopClusters(ctx context.Context, limit int) ([]*model.Cluster, error) {
	q := s.builder.
		Select(clusterColumns()...).
		From("clusters c").
		OrderBy("c.score DESC", "c.id ASC").
		Limit(uint64(limit))
	return s.queryClusters(ctx, q)
}

// ApplyTags commits a tagger batch: topic links, set-once clinical
// maturity, and frontier-lab enrichment on items.
func (s *Store) ApplyTags(ctx context.Context, batch []model.TagUpdate) error {
	bySlug, err := s.TopicsBySlug(ctx)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, update := range batch {
			for _, slug := range update.TopicSlugs {
				topic, ok := bySlug[slug]
				if !ok {
					return fmt.Errorf("unknown topic slug %q", slug)
				}
				query, args, err := s.builder.
					Insert("cluster_topics").
					Options("OR IGNORE").
					Columns("cluster_id", "topic_id").
					Values(update.ClusterID, topic.ID).
					ToSql()
				if err != nil {
					return fmt.Errorf("build topic link insert: %w", err)
				}
				if _, err := tx.ExecContext(ctx, query, args...); err != nil {
					return fmt.Errorf("link topic %q to cluster %d: %w", slug, update.ClusterID, err)
				}
			}

			if update.Maturity != "" {
				// Set once: later passes never overwrite an assigned level.
				_, err := tx.ExecContext(ctx,
					`UPDATE clusters SET clinical_maturity_level = ?, updated_at = ?
					 WHERE id = ? AND clinical_maturity_level IS NULL`,
					string(update.Maturity), time.Now().UTC(), update.ClusterID)
				if err != nil {
					return fmt.Errorf("set maturity on cluster %d: %w", update.ClusterID, err)
				}
			}

			for itemID, lab := range update.ItemLabels {
				_, err := tx.ExecContext(ctx,
					`UPDATE raw_items SET frontier_lab = ?
					 WHERE id = ? AND (frontier_lab IS NULL OR frontier_lab = '')`,
					lab, itemID)
				if err != nil {
					return fmt.Errorf("label item %d: %w", itemID, err)
				}
			}
		}
		return nil
	})
}

// ApplyScores commits a scorer batch: breakdown upsert keyed on cluster
// plus the recomputed overall score and rationale.
func (s *Store) ApplyScores(ctx context.Context, batch []model.ScoreUpdate) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, update := range batch {
			query, args, err := s.builder.
				Insert("score_breakdowns").
				Columns("cluster_id", "relevance_score", "impact_score",
					"credibility_score", "novelty_score", "corroboration_score").
				Values(update.ClusterID, update.Breakdown.Relevance, update.Breakdown.Impact,
					update.Breakdown.Credibility, update.Breakdown.Novelty, update.Breakdown.Corroboration).
				Suffix(`ON CONFLICT(cluster_id) DO UPDATE SET
					relevance_score = excluded.relevance_score,
					impact_score = excluded.impact_score,
					credibility_score = excluded.credibility_score,
					novelty_score = excluded.novelty_score,
					corroboration_score = excluded.corroboration_score`).
				ToSql()
			if err != nil {
				return fmt.Errorf("build breakdown upsert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("upsert breakdown for cluster %d: %w", update.ClusterID, err)
			}

			_, err = tx.ExecContext(ctx,
				`UPDATE clusters SET score = ?, ranking_rationale = ?, updated_at = ? WHERE id = ?`,
				update.Overall, update.Rationale, now, update.ClusterID)
			if err != nil {
				return fmt.Errorf("update score on cluster %d: %w", update.ClusterID, err)
			}
		}
		return nil
	})
}

// ApplyNarratives commits a narrator batch: narrative text plus a fully
// rebuilt citation set per cluster.
func (s *Store) ApplyNarratives(ctx context.Context, batch []model.NarrativeUpdate) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, update := range batch {
			_, err := tx.ExecContext(ctx,
				`UPDATE clusters SET summary = ?, why_this_matters = ?, what_to_watch_next = ?, updated_at = ?
				 WHERE id = ?`,
				update.Summary, update.WhyThisMatters, update.WhatToWatchNext, now, update.ClusterID)
			if err != nil {
				return fmt.Errorf("update narrative on cluster %d: %w", update.ClusterID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`DELETE FROM citations WHERE cluster_id = ?`, update.ClusterID); err != nil {
				return fmt.Errorf("clear citations for cluster %d: %w", update.ClusterID, err)
			}
			for _, citation := range update.Citations {
				query, args, err := s.builder.
					Insert("citations").
					Columns("cluster_id", "raw_item_id", "citation_text", "url").
					Values(update.ClusterID, citation.RawItemID, citation.Text, citation.URL).
					ToSql()
				if err != nil {
					return fmt.Errorf("build citation insert: %w", err)
				}
				if _, err := tx.ExecContext(ctx, query, args...); err != nil {
					return fmt.Errorf("insert citation for cluster %d: %w", update.ClusterID, err)
				}
			}
		}
		return nil
	})
}

// Citations returns a cluster's citations in insertion order.
func (s *Store) Citations(ctx context.Context, clusterID int64) ([]model.Citation, error) {
	query, args, err := s.builder.
		Select("id", "cluster_id", "raw_item_id", "COALESCE(citation_text, '')", "url").
		From("citations").
		Where(sq.Eq{"cluster_id": clusterID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build citations query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query citations: %w", err)
	}
	defer rows.Close()

	var citations []model.Citation
	for rows.Next() {
		var c model.Citation
		if err := rows.Scan(&c.ID, &c.ClusterID, &c.RawItemID, &c.Text, &c.URL); err != nil {
			return nil, fmt.Errorf("scan citation: %w", err)
		}
		citations = append(citations, c)
	}
	return citations, rows.Err()
}

// ClusterCount returns the total number of clusters in the store.
func (s *Store) ClusterCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clusters").Scan(&n); err != nil {
		return 0, fmt.Errorf("count clusters: %w", err)
	}
	return n, nil
}

func (s *Store) queryClusters(ctx context.Context, q sq.SelectBuilder) ([]*model.Cluster, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cluster query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	var clusters []*model.Cluster
	for rows.Next() {
		var c model.Cluster
		var maturity string
		if err := rows.Scan(&c.ID, &c.Title, &c.Summary, &c.WhyThisMatters, &c.WhatToWatchNext,
			&c.Score, &c.RankingRationale, &maturity); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		c.ClinicalMaturity = model.ClinicalMaturityLevel(maturity)
		clusters = append(clusters, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clusters: %w", err)
	}

	for _, c := range clusters {
		if err := s.hydrateCluster(ctx, c); err != nil {
			return nil, err
		}
	}
	return clusters, nil
}

func (s *Store) hydrateCluster(ctx context.Context, c *model.Cluster) error {
	items, err := s.itemsForCluster(ctx, c.ID)
	if err != nil {
		return err
	}
	c.Items = items

	topics, err := s.topicsForCluster(ctx, c.ID)
	if err != nil {
		return err
	}
	c.Topics = topics

	breakdown, err := s.breakdownForCluster(ctx, c.ID)
	if err != nil {
		return err
	}
	c.Breakdown = breakdown
	return nil
}

func (s *Store) topicsForCluster(ctx context.Context, clusterID int64) ([]model.Topic, error) {
	query, args, err := s.builder.
		Select("t.id", "t.name", "t.slug").
		From("topics t").
		Join("cluster_topics ct ON ct.topic_id = t.id").
		Where(sq.Eq{"ct.cluster_id": clusterID}).
		OrderBy("t.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cluster topics query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cluster topics: %w", err)
	}
	defer rows.Close()

	var topics []model.Topic
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("scan cluster topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (s *Store) breakdownForCluster(ctx context.Context, clusterID int64) (*model.ScoreBreakdown, error) {
	query, args, err := s.builder.
		Select("id", "cluster_id", "relevance_score", "impact_score",
			"credibility_score", "novelty_score", "corroboration_score").
		From("score_breakdowns").
		Where(sq.Eq{"cluster_id": clusterID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build breakdown query: %w", err)
	}

	var b model.ScoreBreakdown
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&b.ID, &b.ClusterID, &b.Relevance, &b.Impact, &b.Credibility, &b.Novelty, &b.Corroboration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query breakdown: %w", err)
	}
	return &b, nil
}
