package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hitoshi/newshub/internal/model"
)

const (
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// GoogleConfig はGoogleプロバイダーの設定。
type GoogleConfig struct {
	ClientID     string
	ClientSecret string

	// テスト用にオーバーライド可能なURL
	TokenURL    string
	UserInfoURL string
}

// GoogleProvider はGoogle OAuth 2.0による認証を提供する。
type GoogleProvider struct {
	config GoogleConfig
	client *http.Client
}

// NewGoogleProvider はGoogleProviderを生成する。
func NewGoogleProvider(config GoogleConfig) *GoogleProvider {
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}
	return &GoogleProvider{config: config, client: http.DefaultClient}
}

// Name はプロバイダー名を返す。
func (p *GoogleProvider) Name() model.Provider {
	return model.ProviderGoogle
}

// googleTokenResponse はGoogleのトークンエンドポイントのレスポンス。
type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// googleUserInfo はGoogleのユーザー情報エンドポイントのレスポンス。
type googleUserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ExchangeToken は認可コードをアクセストークンに交換する。
func (p *GoogleProvider) ExchangeToken(ctx context.Context, input ExchangeInput) (string, error) {
	form := url.Values{
		"code":          {input.Code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {input.RedirectURI},
		"grant_type":    {"authorization_code"},
	}

	body, err := postForm(ctx, p.client, p.config.TokenURL, form.Encode(), nil)
	if err != nil {
		return "", err
	}

	var tokenResp googleTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}

	return tokenResp.AccessToken, nil
}

// FetchUserInfo はアクセストークンでGoogleのユーザー情報を取得する。
func (p *GoogleProvider) FetchUserInfo(ctx context.Context, accessToken string) (*ProviderUser, error) {
	var userInfo googleUserInfo
	if err := getJSON(ctx, p.client, p.config.UserInfoURL, accessToken, &userInfo); err != nil {
		return nil, err
	}
	if userInfo.Sub == "" {
		return nil, fmt.Errorf("empty sub in user info response")
	}

	return &ProviderUser{
		ID:      userInfo.Sub,
		Email:   userInfo.Email,
		Name:    userInfo.Name,
		Picture: userInfo.Picture,
	}, nil
}

// compile-time interface check
var _ Provider = (*GoogleProvider)(nil)
