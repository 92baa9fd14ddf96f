package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/newshub/internal/model"
	"github.com/hitoshi/newshub/internal/repository"
)

// CallbackRequest はOAuthコールバックの入力。
type CallbackRequest struct {
	Code         string
	RedirectURI  string
	Provider     string
	CodeVerifier string
}

// AuthResult は認証成功時の結果。
type AuthResult struct {
	AccessToken      string
	User             *model.User
	IsNewUser        bool
	ProfileCompleted bool
}

// Orchestrator は4プロバイダーのOAuthフローを単一の契約に正規化する。
// 各試行は「交換→取得→正規化→UPSERT→セッション発行」の順に進み、
// いずれかの段階で失敗した場合は試行全体を中断する。
// 部分的なユーザーがUPSERTされることはない。
type Orchestrator struct {
	providers map[model.Provider]Provider
	userRepo  repository.UserRepository
	tokens    *TokenIssuer
	logger    *slog.Logger
}

// NewOrchestrator はOrchestratorを生成する。
func NewOrchestrator(
	providers []Provider,
	userRepo repository.UserRepository,
	tokens *TokenIssuer,
	logger *slog.Logger,
) *Orchestrator {
	byName := make(map[model.Provider]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Orchestrator{
		providers: byName,
		userRepo:  userRepo,
		tokens:    tokens,
		logger:    logger,
	}
}

// Authenticate はOAuthコールバックを処理し、セッショントークンを発行する。
func (o *Orchestrator) Authenticate(ctx context.Context, req CallbackRequest) (*AuthResult, error) {
	if req.Code == "" {
		return nil, model.NewValidationError("codeは必須です")
	}

	providerName := model.Provider(req.Provider)
	provider, ok := o.providers[providerName]
	if !ok {
		return nil, model.NewUnsupportedProviderError(req.Provider)
	}

	accessToken, err := provider.ExchangeToken(ctx, ExchangeInput{
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
		CodeVerifier: req.CodeVerifier,
	})
	if err != nil {
		o.logger.Error("トークン交換に失敗しました",
			slog.String("provider", req.Provider),
			slog.String("error", err.Error()),
		)
		return nil, model.NewAuthProviderError(req.Provider, "トークン交換に失敗しました")
	}

	providerUser, err := provider.FetchUserInfo(ctx, accessToken)
	if err != nil {
		o.logger.Error("ユーザー情報の取得に失敗しました",
			slog.String("provider", req.Provider),
			slog.String("error", err.Error()),
		)
		return nil, model.NewAuthProviderError(req.Provider, "ユーザー情報の取得に失敗しました")
	}

	candidate := normalizeUser(providerName, providerUser)

	result, err := o.userRepo.Upsert(ctx, candidate)
	if err != nil {
		o.logger.Error("ユーザーのUPSERTに失敗しました",
			slog.String("user_id", candidate.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewPersistenceError()
	}

	candidate.ProfileCompleted = result.ProfileCompleted

	sessionToken, err := o.tokens.Issue(candidate)
	if err != nil {
		o.logger.Error("セッショントークンの発行に失敗しました",
			slog.String("user_id", candidate.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewAuthProviderError(req.Provider, "セッションの発行に失敗しました")
	}

	if result.IsNewUser {
		o.logger.Info("新規ユーザーを作成しました",
			slog.String("user_id", candidate.ID),
			slog.String("provider", req.Provider),
		)
	} else {
		o.logger.Info("既存ユーザーがログインしました",
			slog.String("user_id", candidate.ID),
			slog.String("provider", req.Provider),
		)
	}

	return &AuthResult{
		AccessToken:      sessionToken,
		User:             candidate,
		IsNewUser:        result.IsNewUser,
		ProfileCompleted: result.ProfileCompleted,
	}, nil
}

// normalizeUser はプロバイダー固有のユーザー情報を共通のUserに変換する。
// IDはプロバイダー名で名前空間化され、作成後は不変となる。
func normalizeUser(provider model.Provider, pu *ProviderUser) *model.User {
	now := time.Now()
	return &model.User{
		ID:          string(provider) + ":" + pu.ID,
		Email:       pu.Email,
		DisplayName: pu.Name,
		AvatarURL:   pu.Picture,
		Provider:    provider,
		CreatedAt:   now,
		LastLoginAt: now,
		IsActive:    true,
	}
}
