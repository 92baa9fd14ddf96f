package guard

import (
	"context"
	"errors"
	"testing"
	"time"
)

// 即時完了する操作はデッドラインに関わらずその値を返すことを検証
func TestRunWithDeadline_ImmediateSettle_ReturnsValue(t *testing.T) {
	got, err := RunWithDeadline(context.Background(), "test", 1*time.Millisecond,
		func(ctx context.Context) (string, error) {
			return "value", nil
		},
		func() string { return "fallback" },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "value" {
		t.Errorf("got %q, want %q", got, "value")
	}
}

// 完了しない操作はdeadline+ε以内にフォールバック値を返すことを検証
func TestRunWithDeadline_NeverSettles_ReturnsFallback(t *testing.T) {
	start := time.Now()
	got, err := RunWithDeadline(context.Background(), "test", 50*time.Millisecond,
		func(ctx context.Context) (int, error) {
			select {} // 永久にブロック
		},
		func() int { return 42 },
	)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want fallback 42", got)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("fallback took too long: %v", elapsed)
	}
}

// 操作自身のエラーはフォールバックに変換されずそのまま返ることを検証
func TestRunWithDeadline_OperationError_NotConvertedToFallback(t *testing.T) {
	wantErr := errors.New("upstream exploded")
	_, err := RunWithDeadline(context.Background(), "test", 100*time.Millisecond,
		func(ctx context.Context) (string, error) {
			return "", wantErr
		},
		func() string { return "fallback" },
	)
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

// 操作内のpanicがエラーとして返り、プロセスを落とさないことを検証
func TestRunWithDeadline_OperationPanic_ReturnsError(t *testing.T) {
	_, err := RunWithDeadline(context.Background(), "test", 100*time.Millisecond,
		func(ctx context.Context) (string, error) {
			panic("boom")
		},
		func() string { return "fallback" },
	)
	if err == nil {
		t.Fatal("expected error from panicking operation")
	}
}

// 遅い操作がデッドライン後も走り続け、その結果が破棄されることを検証
func TestRunWithDeadline_SlowOperation_ResultDiscarded(t *testing.T) {
	opFinished := make(chan struct{})

	got, err := RunWithDeadline(context.Background(), "test", 10*time.Millisecond,
		func(ctx context.Context) (string, error) {
			time.Sleep(50 * time.Millisecond)
			close(opFinished)
			return "late", nil
		},
		func() string { return "fallback" },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fallback" {
		t.Errorf("got %q, want %q", got, "fallback")
	}

	// 操作は強制キャンセルされず完了まで走る
	select {
	case <-opFinished:
	case <-time.After(1 * time.Second):
		t.Error("operation should have been allowed to finish")
	}
}
