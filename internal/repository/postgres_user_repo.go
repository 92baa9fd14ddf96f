package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/newshub/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, avatar_url, provider, profile_picture,
		        banner_image, bio, location, website, twitter_handle, github_handle,
		        profile_completed, created_at, last_login_at, is_active
		 FROM users WHERE id = $1`,
		id,
	).Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.AvatarURL, &user.Provider,
		&user.ProfilePicture, &user.BannerImage, &user.Bio, &user.Location,
		&user.Website, &user.TwitterHandle, &user.GitHubHandle,
		&user.ProfileCompleted, &user.CreatedAt, &user.LastLoginAt, &user.IsActive,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// Upsert はユーザーを1回の論理操作でUPSERTする。
// INSERT ... ON CONFLICTの単一文で行うため、同一IDへの同時初回ログインは
// ロックなしで単一行に収束する。既存行の場合はlast_login_atのみを更新し、
// 他のカラム（特にid）には一切触れない。
// xmax = 0 は挿入された行、非0は更新された行を示す。
func (r *PostgresUserRepo) Upsert(ctx context.Context, candidate *model.User) (*model.UpsertResult, error) {
	now := time.Now()

	var inserted bool
	var profileCompleted bool
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (
		     id, email, display_name, avatar_url, provider, profile_picture,
		     banner_image, bio, location, website, twitter_handle, github_handle,
		     profile_completed, created_at, last_login_at, is_active
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, FALSE, $13, $13, TRUE)
		 ON CONFLICT (id) DO UPDATE SET last_login_at = $13
		 RETURNING (xmax = 0), profile_completed`,
		candidate.ID, candidate.Email, candidate.DisplayName, candidate.AvatarURL,
		candidate.Provider, candidate.ProfilePicture, candidate.BannerImage,
		candidate.Bio, candidate.Location, candidate.Website,
		candidate.TwitterHandle, candidate.GitHubHandle, now,
	).Scan(&inserted, &profileCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return &model.UpsertResult{
		IsNewUser:        inserted,
		ProfileCompleted: profileCompleted,
	}, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
