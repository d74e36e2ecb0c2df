package server

import (
	"context"
	"fmt"

	"photobooth/internal/booth"
	"photobooth/internal/camera"
	"photobooth/internal/composite"
	"photobooth/internal/config"
	"photobooth/internal/frames"
)

// NewDeps は設定からブースの構成要素を組み立てる
// カメラはセッション開始まで起動しない
func NewDeps(cfg *config.Config) (Deps, error) {
	catalog, err := loadCatalog(cfg.Frames)
	if err != nil {
		return Deps{}, err
	}

	opts := []frames.AssetOption{frames.WithTimeout(cfg.Frames.LoadTimeout)}
	if cfg.Frames.BuiltinFallback {
		opts = append(opts, frames.WithBuiltinFallback(catalog.List()))
	}
	assetDir := cfg.Frames.AssetDir
	if assetDir == "" {
		assetDir = "."
	}
	overlays := frames.NewAssetLoader(assetDir, opts...)

	factory := camera.NewVideoSourceFactory(camera.NewLinuxDiscovery())
	cam := camera.NewSession(factory, camera.SessionConfig{
		SourceType: cfg.Camera.Source,
		Source: camera.SourceConfig{
			Device:      cfg.Camera.Device,
			Devices:     cfg.Camera.Devices,
			Constraints: cfg.Camera.Constraints(),
		},
		FrameTimeout: cfg.Camera.FrameTimeout,
	})

	b := booth.New(booth.Options{
		Camera:            cam,
		Catalog:           catalog,
		Compositor:        composite.NewPipeline(cfg.Capture.Layout, overlays),
		CountdownStart:    cfg.Capture.CountdownStart,
		CountdownInterval: cfg.Capture.CountdownInterval,
		CaptureTimeout:    cfg.Capture.Timeout,
	})

	return Deps{
		Booth:    b,
		Camera:   cam,
		Catalog:  catalog,
		Overlays: overlays,
	}, nil
}

func loadCatalog(cfg config.FramesConfig) (*frames.Catalog, error) {
	if cfg.Catalog == "" {
		return frames.NewCatalog(frames.DefaultDefinitions())
	}
	catalog, err := frames.LoadCatalogFile(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("フレーム一覧の読み込みに失敗: %w", err)
	}
	return catalog, nil
}

// Run は設定からサーバーを組み立てて起動する
// ctx のキャンセルかシグナルの受信まで戻らない
func Run(ctx context.Context, cfg *config.Config) error {
	deps, err := NewDeps(cfg)
	if err != nil {
		return err
	}
	return New(cfg, deps).Start(ctx)
}
