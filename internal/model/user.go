// Package model はドメインモデルを定義する。
package model

import "time"

// Provider はOAuth認証プロバイダーの種別を表す。
type Provider string

const (
	// ProviderGoogle はGoogle OAuthを表す。
	ProviderGoogle Provider = "google"
	// ProviderGitHub はGitHub OAuthを表す。
	ProviderGitHub Provider = "github"
	// ProviderTwitter はTwitter OAuth (PKCE) を表す。
	ProviderTwitter Provider = "twitter"
	// ProviderDiscord はDiscord OAuthを表す。
	ProviderDiscord Provider = "discord"
)

// IsValid はプロバイダー種別がサポート対象かを返す。
func (p Provider) IsValid() bool {
	switch p {
	case ProviderGoogle, ProviderGitHub, ProviderTwitter, ProviderDiscord:
		return true
	}
	return false
}

// User はサービス利用ユーザーを表す。
// IDはプロバイダー名で名前空間化された不透明な文字列（例: "google:1234"）で、
// 作成後は不変。同一IDでの再認証はlast_login_atのみを更新し、行を再作成しない。
type User struct {
	ID               string
	Email            string
	DisplayName      string
	AvatarURL        string
	Provider         Provider
	ProfilePicture   string
	BannerImage      string
	Bio              string
	Location         string
	Website          string
	TwitterHandle    string
	GitHubHandle     string
	ProfileCompleted bool
	CreatedAt        time.Time
	LastLoginAt      time.Time
	IsActive         bool
}

// UpsertResult はユーザーUPSERTの結果を表す。
// 既存ユーザーの場合はIsNewUser=falseで、保存済みのProfileCompletedを返す。
type UpsertResult struct {
	IsNewUser        bool
	ProfileCompleted bool
}
