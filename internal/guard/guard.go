// Package guard はデッドライン付き実行のラッパーを提供する。
// 上流に依存するすべての呼び出しはこのガード経由で実行される。
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// result は操作の完了結果を保持する。
type result[T any] struct {
	value T
	err   error
}

// RunWithDeadline は操作をデッドラインと競争させて実行する。
//
// 操作がデッドライン前に完了した場合はその結果をそのまま返す
// （操作自身のエラーもフォールバックに変換せず返す）。
// デッドラインが先に経過した場合はfallbackの値を返し、タイムアウトをログに記録する。
// 元の操作は強制キャンセルされない。完了まで走り続けることを許容し、
// その結果は破棄される。協調的キャンセルではなく、2つの完了の競争である。
func RunWithDeadline[T any](ctx context.Context, name string, deadline time.Duration, op func(context.Context) (T, error), fallback func() T) (T, error) {
	start := time.Now()
	done := make(chan result[T], 1)

	go func() {
		// 操作側のpanicはガードの境界で吸収し、エラーとして返す
		defer func() {
			if rec := recover(); rec != nil {
				var zero T
				done <- result[T]{value: zero, err: fmt.Errorf("operation panicked: %v", rec)}
			}
		}()

		// 呼び出し元のコンテキストをそのまま渡す。
		// デッドライン用の派生コンテキストは作らない（強制キャンセルしないため）。
		v, err := op(ctx)
		done <- result[T]{value: v, err: err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.value, res.err
	case <-timer.C:
		slog.Warn("deadline exceeded, using fallback",
			slog.String("operation", name),
			slog.Duration("deadline", deadline),
			slog.Float64("elapsed_ms", float64(time.Since(start).Milliseconds())),
		)
		return fallback(), nil
	}
}
