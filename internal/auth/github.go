package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/newshub/internal/model"
)

const (
	defaultGitHubTokenURL    = "https://github.com/login/oauth/access_token"
	defaultGitHubUserInfoURL = "https://api.github.com/user"
	defaultGitHubEmailsURL   = "https://api.github.com/user/emails"
)

// GitHubConfig はGitHubプロバイダーの設定。
type GitHubConfig struct {
	ClientID     string
	ClientSecret string

	// テスト用にオーバーライド可能なURL
	TokenURL    string
	UserInfoURL string
	EmailsURL   string
}

// GitHubProvider はGitHub OAuthによる認証を提供する。
// ユーザー情報にemailが含まれない場合、emailsエンドポイントから
// プライマリアドレスを補完する。
type GitHubProvider struct {
	config GitHubConfig
	client *http.Client
}

// NewGitHubProvider はGitHubProviderを生成する。
func NewGitHubProvider(config GitHubConfig) *GitHubProvider {
	if config.TokenURL == "" {
		config.TokenURL = defaultGitHubTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGitHubUserInfoURL
	}
	if config.EmailsURL == "" {
		config.EmailsURL = defaultGitHubEmailsURL
	}
	return &GitHubProvider{config: config, client: http.DefaultClient}
}

// Name はプロバイダー名を返す。
func (p *GitHubProvider) Name() model.Provider {
	return model.ProviderGitHub
}

type githubTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type githubUserInfo struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// ExchangeToken は認可コードをアクセストークンに交換する。
// GitHubはAcceptヘッダーでJSONレスポンスを明示する必要がある。
func (p *GitHubProvider) ExchangeToken(ctx context.Context, input ExchangeInput) (string, error) {
	form := url.Values{
		"code":          {input.Code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {input.RedirectURI},
	}

	body, err := postForm(ctx, p.client, p.config.TokenURL, form.Encode(), map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return "", err
	}

	var tokenResp githubTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}

	return tokenResp.AccessToken, nil
}

// FetchUserInfo はアクセストークンでGitHubのユーザー情報を取得する。
func (p *GitHubProvider) FetchUserInfo(ctx context.Context, accessToken string) (*ProviderUser, error) {
	var userInfo githubUserInfo
	if err := getJSON(ctx, p.client, p.config.UserInfoURL, accessToken, &userInfo); err != nil {
		return nil, err
	}
	if userInfo.ID == 0 {
		return nil, fmt.Errorf("empty id in user info response")
	}

	email := userInfo.Email
	if email == "" {
		backfilled, err := p.fetchPrimaryEmail(ctx, accessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to backfill email: %w", err)
		}
		email = backfilled
	}

	name := userInfo.Name
	if name == "" {
		name = userInfo.Login
	}

	return &ProviderUser{
		ID:      strconv.FormatInt(userInfo.ID, 10),
		Email:   email,
		Name:    name,
		Picture: userInfo.AvatarURL,
	}, nil
}

// fetchPrimaryEmail はemailsエンドポイントからプライマリアドレスを取得する。
// プライマリが見つからない場合は先頭のアドレスを返す。
func (p *GitHubProvider) fetchPrimaryEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []githubEmail
	if err := getJSON(ctx, p.client, p.config.EmailsURL, accessToken, &emails); err != nil {
		return "", err
	}

	for _, e := range emails {
		if e.Primary {
			return e.Email, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, nil
	}
	return "", nil
}

// compile-time interface check
var _ Provider = (*GitHubProvider)(nil)
