package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"

	"github.com/hitoshi/newshub/internal/model"
)

// PostgresActivityRepo はPostgreSQLを使用した行動台帳リポジトリ。
// 台帳は追記専用で、全アナリティクスはここへの集計クエリから導出される。
type PostgresActivityRepo struct {
	db *sql.DB
}

// NewPostgresActivityRepo はPostgresActivityRepoを生成する。
func NewPostgresActivityRepo(db *sql.DB) *PostgresActivityRepo {
	return &PostgresActivityRepo{db: db}
}

// Insert は行動イベントを台帳に追記する。
func (r *PostgresActivityRepo) Insert(ctx context.Context, event *model.ActivityEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var source any
	if event.ArticleSource != "" {
		source = event.ArticleSource
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO activity_events (user_id, type, article_id, article_title, article_source, duration_ms, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		event.UserID, event.Type, event.ArticleID, event.ArticleTitle,
		source, event.DurationMs, metadata,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity event: %w", err)
	}
	return nil
}

// ListRecentByType は指定種別のイベントを新しい順に最大limit件返す。
func (r *PostgresActivityRepo) ListRecentByType(ctx context.Context, userID string, eventType model.ActivityType, limit int) ([]*model.ActivityEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, article_id, article_title, article_source, duration_ms, metadata, created_at
		 FROM activity_events
		 WHERE user_id = $1 AND type = $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		userID, eventType, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity events: %w", err)
	}
	defer rows.Close()

	var events []*model.ActivityEvent
	for rows.Next() {
		event := &model.ActivityEvent{}
		var source sql.NullString
		var metadata []byte
		if err := rows.Scan(
			&event.ID, &event.UserID, &event.Type, &event.ArticleID,
			&event.ArticleTitle, &source, &event.DurationMs, &metadata, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity event: %w", err)
		}
		event.ArticleSource = source.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity events: %w", err)
	}

	return events, nil
}

// CountReads は全期間のreadイベント件数を返す。
func (r *PostgresActivityRepo) CountReads(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM activity_events WHERE user_id = $1 AND type = 'read'`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reads: %w", err)
	}
	return count, nil
}

// SumDurationMs は全種別のduration_ms合計を返す。
func (r *PostgresActivityRepo) SumDurationMs(ctx context.Context, userID string) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(duration_ms), 0) FROM activity_events WHERE user_id = $1`,
		userID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum durations: %w", err)
	}
	return sum, nil
}

// ReadTrendsByDay はreadイベント件数を日単位で集計して返す。
// 直近7日間（当日含む）に限定し、日付昇順で返す。
func (r *PostgresActivityRepo) ReadTrendsByDay(ctx context.Context, userID string) ([]DayCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date_trunc('day', created_at) AS day, count(*)
		 FROM activity_events
		 WHERE user_id = $1 AND type = 'read'
		   AND created_at >= date_trunc('day', now()) - interval '6 days'
		 GROUP BY day
		 ORDER BY day ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query read trends: %w", err)
	}
	defer rows.Close()

	var trends []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan read trend: %w", err)
		}
		trends = append(trends, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate read trends: %w", err)
	}

	return trends, nil
}

// TopSources はreadイベントをarticle_sourceごとに集計し、件数降順で上位limit件を返す。
// NULLソースは "Unknown" に分類する。
func (r *PostgresActivityRepo) TopSources(ctx context.Context, userID string, limit int) ([]SourceCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT COALESCE(article_source, 'Unknown') AS source, count(*) AS cnt
		 FROM activity_events
		 WHERE user_id = $1 AND type = 'read'
		 GROUP BY source
		 ORDER BY cnt DESC, source ASC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query top sources: %w", err)
	}
	defer rows.Close()

	var sources []SourceCount
	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		sources = append(sources, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top sources: %w", err)
	}

	return sources, nil
}

// PeakReadingHour は日付+時間帯の単一バケットのread件数が全履歴で
// 最大となる時間帯（0〜23）を返す。同数の場合は小さい時間帯を優先する。
func (r *PostgresActivityRepo) PeakReadingHour(ctx context.Context, userID string) (int, bool, error) {
	var hour int
	err := r.db.QueryRowContext(ctx,
		`SELECT extract(hour FROM created_at)::int AS hour
		 FROM activity_events
		 WHERE user_id = $1 AND type = 'read'
		 GROUP BY date_trunc('day', created_at), hour
		 ORDER BY count(*) DESC, hour ASC
		 LIMIT 1`,
		userID,
	).Scan(&hour)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query peak reading hour: %w", err)
	}

	return hour, true, nil
}

// AvgReadSeconds はduration_msが非ゼロのreadイベントの平均秒数を返す。
// 対象イベントがない場合は0を返す。
func (r *PostgresActivityRepo) AvgReadSeconds(ctx context.Context, userID string) (int, error) {
	var avgMs sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT AVG(duration_ms)
		 FROM activity_events
		 WHERE user_id = $1 AND type = 'read' AND duration_ms > 0`,
		userID,
	).Scan(&avgMs)
	if err != nil {
		return 0, fmt.Errorf("failed to query avg read duration: %w", err)
	}
	if !avgMs.Valid {
		return 0, nil
	}

	return int(math.Round(avgMs.Float64 / 1000)), nil
}

// compile-time interface check
var _ ActivityRepository = (*PostgresActivityRepo)(nil)
