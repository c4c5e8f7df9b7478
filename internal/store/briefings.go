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

const briefingDateLayout = "2006-01-02"

// BriefingByDate returns the briefing for the given date, or nil when the
// date has no briefing yet.
func (s *Store) BriefingByDate(ctx context.Context, date time.Time) (*model.DailyBriefing, error) {
	day := model.BriefingDate(date).Format(briefingDateLayout)

	var b model.DailyBriefing
	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, briefing_date, COALESCE(content, ''), created_at
		 FROM daily_briefings WHERE briefing_date = ?`, day).
		Scan(&b.ID, &stored, &b.Content, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query briefing: %w", err)
	}

	b.Date, err = time.ParseInLocation(briefingDateLayout, stored, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse briefing date %q: %w", stored, err)
	}

	query, args, err := s.builder.
		Select("cluster_id").
		From("briefing_clusters").
		Where(sq.Eq{"briefing_id": b.ID}).
		OrderBy("cluster_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build briefing clusters query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query briefing clusters: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan briefing cluster: %w", err)
		}
		b.ClusterIDs = append(b.ClusterIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate briefing clusters: %w", err)
	}
	return &b, nil
}

// CreateBriefing persists a briefing and its cluster links and returns
// the new briefing id. The unique date constraint rejects duplicates.
func (s *Store) CreateBriefing(ctx context.Context, date time.Time, content string, clusterIDs []int64) (int64, error) {
	day := model.BriefingDate(date).Format(briefingDateLayout)
	now := time.Now().UTC()

	var briefingID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query, args, err := s.builder.
			Insert("daily_briefings").
			Columns("briefing_date", "content", "created_at").
			Values(day, content, now).
			ToSql()
		if err != nil {
			return fmt.Errorf("build briefing insert: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("insert briefing: %w", err)
		}
		briefingID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("briefing id: %w", err)
		}

		for _, clusterID := range clusterIDs {
			query, args, err := s.builder.
				Insert("briefing_clusters").
				Columns("briefing_id", "cluster_id").
				Values(briefingID, clusterID).
				ToSql()
			if err != nil {
				return fmt.Errorf("build briefing cluster insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("link cluster %d to briefing: %w", clusterID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return briefingID, nil
}
