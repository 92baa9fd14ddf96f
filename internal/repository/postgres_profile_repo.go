package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/newshub/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロファイルリポジトリ。
// プロファイルはJSONB blobとして保存し、スキーマの進化に追従しやすくする。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// Get は指定ユーザーのプロファイルを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	var blob []byte
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT profile, updated_at FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(&blob, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	profile := &model.UserProfile{}
	if err := json.Unmarshal(blob, profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	profile.UserID = userID
	profile.UpdatedAt = updatedAt

	return profile, nil
}

// Upsert はプロファイルblob全体をUPSERTする。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, profile *model.UserProfile) error {
	blob, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, profile, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET
		     profile = EXCLUDED.profile,
		     updated_at = EXCLUDED.updated_at`,
		profile.UserID, blob, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
