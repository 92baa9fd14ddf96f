package repository

import (
	"testing"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresActivityRepoはActivityRepositoryインターフェースを満たすことを検証
func TestPostgresActivityRepo_ImplementsInterface(t *testing.T) {
	var _ ActivityRepository = (*PostgresActivityRepo)(nil)
}

// PostgresSubscriptionRepoはSubscriptionRepositoryインターフェースを満たすことを検証
func TestPostgresSubscriptionRepo_ImplementsInterface(t *testing.T) {
	var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
}

// PostgresProfileRepoはProfileRepositoryインターフェースを満たすことを検証
func TestPostgresProfileRepo_ImplementsInterface(t *testing.T) {
	var _ ProfileRepository = (*PostgresProfileRepo)(nil)
}

// 各リポジトリが正しく初期化されることを検証
func TestNewRepos_Initialize(t *testing.T) {
	if NewPostgresUserRepo(nil) == nil {
		t.Error("expected non-nil user repo")
	}
	if NewPostgresActivityRepo(nil) == nil {
		t.Error("expected non-nil activity repo")
	}
	if NewPostgresSubscriptionRepo(nil) == nil {
		t.Error("expected non-nil subscription repo")
	}
	if NewPostgresProfileRepo(nil) == nil {
		t.Error("expected non-nil profile repo")
	}
}
