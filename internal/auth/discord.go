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
	defaultDiscordTokenURL    = "https://discord.com/api/oauth2/token"
	defaultDiscordUserInfoURL = "https://discord.com/api/users/@me"
	discordCDNBase            = "https://cdn.discordapp.com"
)

// DiscordConfig はDiscordプロバイダーの設定。
type DiscordConfig struct {
	ClientID     string
	ClientSecret string

	// テスト用にオーバーライド可能なURL
	TokenURL    string
	UserInfoURL string
}

// DiscordProvider はDiscord OAuth2による認証を提供する。
type DiscordProvider struct {
	config DiscordConfig
	client *http.Client
}

// NewDiscordProvider はDiscordProviderを生成する。
func NewDiscordProvider(config DiscordConfig) *DiscordProvider {
	if config.TokenURL == "" {
		config.TokenURL = defaultDiscordTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultDiscordUserInfoURL
	}
	return &DiscordProvider{config: config, client: http.DefaultClient}
}

// Name はプロバイダー名を返す。
func (p *DiscordProvider) Name() model.Provider {
	return model.ProviderDiscord
}

type discordTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type discordUserInfo struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Email      string `json:"email"`
	Avatar     string `json:"avatar"`
}

// ExchangeToken は認可コードをアクセストークンに交換する。
func (p *DiscordProvider) ExchangeToken(ctx context.Context, input ExchangeInput) (string, error) {
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

	var tokenResp discordTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}

	return tokenResp.AccessToken, nil
}

// FetchUserInfo はアクセストークンでDiscordのユーザー情報を取得する。
// 表示名はglobal_nameを優先し、なければusernameを使用する。
func (p *DiscordProvider) FetchUserInfo(ctx context.Context, accessToken string) (*ProviderUser, error) {
	var userInfo discordUserInfo
	if err := getJSON(ctx, p.client, p.config.UserInfoURL, accessToken, &userInfo); err != nil {
		return nil, err
	}
	if userInfo.ID == "" {
		return nil, fmt.Errorf("empty id in user info response")
	}

	name := userInfo.GlobalName
	if name == "" {
		name = userInfo.Username
	}

	picture := ""
	if userInfo.Avatar != "" {
		picture = fmt.Sprintf("%s/avatars/%s/%s.png", discordCDNBase, userInfo.ID, userInfo.Avatar)
	}

	return &ProviderUser{
		ID:      userInfo.ID,
		Email:   userInfo.Email,
		Name:    name,
		Picture: picture,
	}, nil
}

// compile-time interface check
var _ Provider = (*DiscordProvider)(nil)
