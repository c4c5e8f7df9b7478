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

// GetOrCreateSource upserts a source by url and returns its id.
func (s *Store) GetOrCreateSource(ctx context.Context, src model.Source) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM sources WHERE url = ?", src.URL).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("look up source: %w", err)
	}

	query, args, err := s.builder.
		Insert("sources").
		Columns("name", "url", "source_type", "is_active").
		Values(src.Name, src.URL, string(src.Type), src.IsActive).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build source insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert source: %w", err)
	}
	return res.LastInsertId()
}

// InsertRawItem persists one ingested item and returns its id.
func (s *Store) InsertRawItem(ctx context.Context, item model.RawItem) (int64, error) {
	ingested := item.IngestedAt
	if ingested.IsZero() {
		ingested = time.Now().UTC()
	}

	query, args, err := s.builder.
		Insert("raw_items").
		Columns("source_id", "title", "url", "content", "published_at", "ingested_at", "frontier_lab").
		Values(item.SourceID, item.Title, item.URL,
			nullableString(item.Content), nullableTime(item.PublishedAt), ingested,
			nullableString(item.FrontierLab)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build item insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert raw item: %w", err)
	}
	return res.LastInsertId()
}

// HasItemURL reports whether an item with the given url already exists.
// Ingestion deduplicates urls before arrival; the seeder uses this to
// stay idempotent.
func (s *Store) HasItemURL(ctx context.Context, url string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM raw_items WHERE url = ? LIMIT 1", url).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up item url: %w", err)
	}
	return true, nil
}

// UnclusteredItems returns up to limit items not yet owned by any
// cluster, ordered by ingestion time then id. That ordering is the
// deduplicator's deterministic anchor-selection rule.
func (s *Store) UnclusteredItems(ctx context.Context, limit int) ([]model.RawItem, error) {
	query, args, err := s.builder.
		Select(itemColumns()...).
		From("raw_items ri").
		Join("sources s ON s.id = ri.source_id").
		Where("NOT EXISTS (SELECT 1 FROM cluster_items ci WHERE ci.raw_item_id = ri.id)").
		OrderBy("ri.ingested_at ASC", "ri.id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unclustered query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unclustered items: %w", err)
	}
	defer rows.Close()

	var items []model.RawItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unclustered items: %w", err)
	}
	return items, nil
}

func itemColumns() []string {
	return []string{
		"ri.id", "ri.source_id", "s.source_type", "ri.title", "ri.url",
		"COALESCE(ri.content, '')", "ri.published_at", "ri.ingested_at",
		"COALESCE(ri.frontier_lab, '')",
	}
}

func scanItem(rows *sql.Rows) (model.RawItem, error) {
	var item model.RawItem
	var sourceType string
	var published sql.NullTime
	if err := rows.Scan(&item.ID, &item.SourceID, &sourceType, &item.Title, &item.URL,
		&item.Content, &published, &item.IngestedAt, &item.FrontierLab); err != nil {
		return item, fmt.Errorf("scan raw item: %w", err)
	}
	item.SourceType = model.SourceType(sourceType)
	if published.Valid {
		t := published.Time
		item.PublishedAt = &t
	}
	return item, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// itemsForCluster loads a cluster's raw items in the cluster's item
// order (ingestion time then id, anchor first).
func (s *Store) itemsForCluster(ctx context.Context, clusterID int64) ([]model.RawItem, error) {
	query, args, err := s.builder.
		Select(itemColumns()...).
		From("raw_items ri").
		Join("sources s ON s.id = ri.source_id").
		Join("cluster_items ci ON ci.raw_item_id = ri.id").
		Where(sq.Eq{"ci.cluster_id": clusterID}).
		OrderBy("ri.ingested_at ASC", "ri.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cluster items query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cluster items: %w", err)
	}
	defer rows.Close()

	var items []model.RawItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
