package main

import (
	"context"
	"os"

	"photobooth/internal/config"
	"photobooth/internal/logging"
	"photobooth/internal/server"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		logging.L().Error("設定の読み込みに失敗しました", "error", err)
		os.Exit(1)
	}

	logger := logging.Init(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	// サーバーを起動
	if err := server.Run(context.Background(), cfg); err != nil {
		logger.Error("サーバーの起動に失敗しました", "error", err)
		os.Exit(1)
	}
}
