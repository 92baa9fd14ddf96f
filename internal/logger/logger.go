// Package logger はnewshub全体で共有するJSON構造化ログの初期化を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup は集約パイプラインやHTTPハンドラが共有するslog.Loggerを生成する。
// 1行1イベントのJSONをwに書き出す。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}

// SetupDefault はSetupで生成したロガーをプロセスのデフォルトに据える。
// wがnilの場合はos.Stdoutに出力する（コンテナでの運用を想定）。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w)
	slog.SetDefault(logger)
}
