// Package task はfire-and-forget方式のバックグラウンドタスク実行を提供する。
// 呼び出し元はタスクの完了を待たず、失敗はログに記録されるのみで
// リクエスト処理の結果には影響しない。
package task

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task は実行されるバックグラウンド処理。
// エラーはログ記録のみで、呼び出し元には伝播しない。
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner は有界キューとワーカーゴルーチンでタスクを実行する。
// キューが満杯の場合、新しいタスクは破棄されログに記録される。
type Runner struct {
	queue   chan Task
	logger  *slog.Logger
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// NewRunner はRunnerを生成しワーカーを起動する。
// workersが0以下の場合はデフォルト値4、queueSizeが0以下の場合は256を使用する。
func NewRunner(logger *slog.Logger, workers, queueSize int, timeout time.Duration) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		queue:   make(chan Task, queueSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	return r
}

// Enqueue はタスクをキューに投入する。ブロックせず、
// キューが満杯または停止済みの場合はfalseを返してタスクを破棄する。
func (r *Runner) Enqueue(t Task) bool {
	select {
	case <-r.ctx.Done():
		return false
	case r.queue <- t:
		return true
	default:
		r.logger.Warn("タスクキューが満杯のためタスクを破棄しました",
			slog.String("task", t.Name),
		)
		return false
	}
}

// Shutdown はワーカーを停止し、実行中のタスクの完了を待つ。
// キューに残ったタスクは実行されずに破棄される。
func (r *Runner) Shutdown() {
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) worker() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case t := <-r.queue:
			r.execute(t)
		}
	}
}

// execute はタスクを1件実行する。panicも回復し、
// 失敗はすべてログ記録のみで吸収する。
func (r *Runner) execute(t Task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("バックグラウンドタスクでpanicが発生しました",
				slog.String("task", t.Name),
				slog.Any("panic", rec),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := t.Run(ctx); err != nil {
		r.logger.Error("バックグラウンドタスクが失敗しました",
			slog.String("task", t.Name),
			slog.String("error", err.Error()),
		)
	}
}
