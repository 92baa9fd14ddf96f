package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hitoshi/newshub/internal/model"
)

const (
	defaultTwitterTokenURL    = "https://api.twitter.com/2/oauth2/token"
	defaultTwitterUserInfoURL = "https://api.twitter.com/2/users/me?user.fields=profile_image_url"
)

// TwitterConfig はTwitterプロバイダーの設定。
type TwitterConfig struct {
	ClientID     string
	ClientSecret string

	// テスト用にオーバーライド可能なURL
	TokenURL    string
	UserInfoURL string
}

// TwitterProvider はTwitter OAuth 2.0（PKCE）による認証を提供する。
// トークン交換にはcode_verifierとBasic認証の両方が必要になる。
// Twitter APIはemailを返さないため、Emailは空のまま正規化される。
type TwitterProvider struct {
	config TwitterConfig
	client *http.Client
}

// NewTwitterProvider はTwitterProviderを生成する。
func NewTwitterProvider(config TwitterConfig) *TwitterProvider {
	if config.TokenURL == "" {
		config.TokenURL = defaultTwitterTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultTwitterUserInfoURL
	}
	return &TwitterProvider{config: config, client: http.DefaultClient}
}

// Name はプロバイダー名を返す。
func (p *TwitterProvider) Name() model.Provider {
	return model.ProviderTwitter
}

type twitterTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type twitterUserInfo struct {
	Data struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Username        string `json:"username"`
		ProfileImageURL string `json:"profile_image_url"`
	} `json:"data"`
}

// ExchangeToken は認可コードをアクセストークンに交換する。
func (p *TwitterProvider) ExchangeToken(ctx context.Context, input ExchangeInput) (string, error) {
	if input.CodeVerifier == "" {
		return "", fmt.Errorf("code_verifier is required for twitter token exchange")
	}

	form := url.Values{
		"code":          {input.Code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {input.RedirectURI},
		"code_verifier": {input.CodeVerifier},
	}

	basic := base64.StdEncoding.EncodeToString([]byte(p.config.ClientID + ":" + p.config.ClientSecret))
	body, err := postForm(ctx, p.client, p.config.TokenURL, form.Encode(), map[string]string{
		"Authorization": "Basic " + basic,
	})
	if err != nil {
		return "", err
	}

	var tokenResp twitterTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}

	return tokenResp.AccessToken, nil
}

// FetchUserInfo はアクセストークンでTwitterのユーザー情報を取得する。
func (p *TwitterProvider) FetchUserInfo(ctx context.Context, accessToken string) (*ProviderUser, error) {
	var userInfo twitterUserInfo
	if err := getJSON(ctx, p.client, p.config.UserInfoURL, accessToken, &userInfo); err != nil {
		return nil, err
	}
	if userInfo.Data.ID == "" {
		return nil, fmt.Errorf("empty id in user info response")
	}

	name := userInfo.Data.Name
	if name == "" {
		name = userInfo.Data.Username
	}

	return &ProviderUser{
		ID:      userInfo.Data.ID,
		Name:    name,
		Picture: userInfo.Data.ProfileImageURL,
	}, nil
}

// compile-time interface check
var _ Provider = (*TwitterProvider)(nil)
