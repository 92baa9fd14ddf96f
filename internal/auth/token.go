package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/newshub/internal/model"
)

// SessionClaims はセッショントークンに載せるクレーム。
type SessionClaims struct {
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// TokenIssuer は短命のHS256セッショントークンを発行・検証する。
type TokenIssuer struct {
	secret []byte
	maxAge time.Duration
}

// NewTokenIssuer はTokenIssuerを生成する。
// maxAgeが0以下の場合は30分を使用する。
func NewTokenIssuer(secret string, maxAge time.Duration) *TokenIssuer {
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	return &TokenIssuer{secret: []byte(secret), maxAge: maxAge}
}

// Issue はユーザーに対するセッショントークンを発行する。
func (t *TokenIssuer) Issue(user *model.User) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Email:    user.Email,
		Name:     user.DisplayName,
		Provider: string(user.Provider),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.maxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse はトークンを検証しクレームを返す。
// 署名不正または期限切れの場合はエラーを返す。
func (t *TokenIssuer) Parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}
