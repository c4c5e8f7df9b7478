package store

import (
	"context"
	"database/sql"
	"fmt"

	cache "github.com/patrickmn/go-cache"

	"github.com/vporoshin/curator/internal/model"
)

const topicsCacheKey = "topics:by-slug"

// EnsureTopics upserts the topic vocabulary by slug. Runs before every
// pipeline pass so configured topics always resolve to rows.
func (s *Store) EnsureTopics(ctx context.Context, rules []model.TopicRule) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, rule := range rules {
			query, args, err := s.builder.
				Insert("topics").
				Columns("name", "slug").
				Values(rule.Name, rule.Slug).
				Suffix("ON CONFLICT(slug) DO UPDATE SET name = excluded.name").
				ToSql()
			if err != nil {
				return fmt.Errorf("build topic upsert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("upsert topic %q: %w", rule.Slug, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.topics.Delete(topicsCacheKey)
	return nil
}

// TopicsBySlug returns the topic vocabulary keyed by slug. Topics are
// reference data that changes only through EnsureTopics, so the result
// is cached.
func (s *Store) TopicsBySlug(ctx context.Context) (map[string]model.Topic, error) {
	if cached, ok := s.topics.Get(topicsCacheKey); ok {
		return cached.(map[string]model.Topic), nil
	}

	query, args, err := s.builder.
		Select("id", "name", "slug").
		From("topics").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build topics query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	bySlug := make(map[string]model.Topic)
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		bySlug[t.Slug] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}

	s.topics.Set(topicsCacheKey, bySlug, cache.DefaultExpiration)
	return bySlug, nil
}
