// Package auth は複数プロバイダーのOAuth認証フローを単一の契約に正規化する。
// 各プロバイダーは「コード交換→ユーザー情報取得→正規化」という同じ3段階を
// Providerインターフェースの背後に実装し、オーケストレーターは
// プロバイダー名以外を意識しない。
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hitoshi/newshub/internal/model"
)

// ProviderUser はプロバイダーから取得して正規化したユーザー情報。
type ProviderUser struct {
	ID      string // プロバイダー内のユーザーID
	Email   string
	Name    string
	Picture string
}

// ExchangeInput はトークン交換に必要な入力。
// CodeVerifierはPKCEを要求するプロバイダー（Twitter）のみが使用する。
type ExchangeInput struct {
	Code         string
	RedirectURI  string
	CodeVerifier string
}

// Provider はOAuthプロバイダーの共通インターフェース。
type Provider interface {
	// Name はプロバイダー名を返す。
	Name() model.Provider
	// ExchangeToken は認可コードをアクセストークンに交換する。
	ExchangeToken(ctx context.Context, input ExchangeInput) (string, error)
	// FetchUserInfo はアクセストークンでユーザー情報を取得し正規化する。
	FetchUserInfo(ctx context.Context, accessToken string) (*ProviderUser, error)
}

// postForm はフォームエンコードされたPOSTを実行しボディを返す。
// 2xx以外のステータスはエラーとして扱う。
func postForm(ctx context.Context, client *http.Client, endpoint string, form string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// getJSON はBearerトークン付きGETを実行し、レスポンスをoutにデコードする。
func getJSON(ctx context.Context, client *http.Client, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse user info response: %w", err)
	}

	return nil
}
