package auth

import (
	"testing"
	"time"

	"github.com/hitoshi/newshub/internal/model"
)

func testUser() *model.User {
	return &model.User{
		ID:          "google:12345",
		Email:       "user@gmail.com",
		DisplayName: "Test User",
		Provider:    model.ProviderGoogle,
	}
}

// 発行したトークンが検証でき、クレームが一致することを検証
func TestTokenIssuer_IssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer("secret", 30*time.Minute)

	token, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if claims.Subject != "google:12345" {
		t.Errorf("sub = %q", claims.Subject)
	}
	if claims.Email != "user@gmail.com" {
		t.Errorf("email = %q", claims.Email)
	}
	if claims.Provider != "google" {
		t.Errorf("provider = %q", claims.Provider)
	}
	if claims.ExpiresAt == nil {
		t.Fatal("expが設定されていません")
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 || remaining > 31*time.Minute {
		t.Errorf("有効期限が約30分ではありません: %v", remaining)
	}
}

// 異なる秘密鍵で署名されたトークンが拒否されることを検証
func TestTokenIssuer_Parse_WrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("secret-a", 30*time.Minute)
	other := NewTokenIssuer("secret-b", 30*time.Minute)

	token, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := other.Parse(token); err == nil {
		t.Error("異なる秘密鍵のトークンは拒否されるべき")
	}
}

// 期限切れトークンが拒否されることを検証
func TestTokenIssuer_Parse_Expired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Nanosecond)

	token, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := issuer.Parse(token); err == nil {
		t.Error("期限切れトークンは拒否されるべき")
	}
}

// 改竄されたトークンが拒否されることを検証
func TestTokenIssuer_Parse_Garbage(t *testing.T) {
	issuer := NewTokenIssuer("secret", 30*time.Minute)

	if _, err := issuer.Parse("not-a-jwt"); err == nil {
		t.Error("不正な形式のトークンは拒否されるべき")
	}
}
