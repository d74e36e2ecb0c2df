// Package logging はアプリケーション全体の構造化ログを設定する
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/gogpu/gg"
)

var (
	mu     sync.RWMutex
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

// Options はロガーの設定
type Options struct {
	Level  string    // debug / info / warn / error
	Format string    // text / json
	Output io.Writer // 省略時は標準出力
}

// Init はグローバルロガーを初期化する
// 描画ライブラリ(gg)のログも同じロガーに流す
func Init(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	l := slog.New(handler)

	mu.Lock()
	logger = l
	mu.Unlock()

	slog.SetDefault(l)
	gg.SetLogger(l.With("component", "gg"))

	return l
}

// L は現在のグローバルロガーを返す
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Component はコンポーネント名付きのロガーを返す
func Component(name string) *slog.Logger {
	return L().With("component", name)
}

// ParseLevel は文字列のログレベルを変換する
// 不明な値は info として扱う
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
