package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"photobooth/internal/camera"
)

// clearEnv はテスト中に設定へ影響する環境変数を空にする
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "SERVER_HOST", "SERVER_PORT", "PORT", "CAMERA_SOURCE",
		"CAMERA_DEVICE", "FRAME_ASSET_DIR", "FRAME_CATALOG", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

// TestConfigLoad は設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host == "" {
		t.Error("サーバーホストが設定されていません")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("デフォルトのポート番号が違います: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("シャットダウンのタイムアウトが違います: %s", cfg.Server.ShutdownTimeout)
	}

	if cfg.Camera.Source != camera.SourceTypeUSBCamera || cfg.Camera.FacingMode != camera.FacingUser {
		t.Errorf("カメラのデフォルト値が違います: %+v", cfg.Camera)
	}

	layout := cfg.Capture.Layout
	if layout.Portrait.Width != 1080 || layout.Portrait.Height != 1920 {
		t.Errorf("縦向きの出力解像度が違います: %+v", layout.Portrait)
	}
	if layout.Landscape.Width != 1280 || layout.Landscape.Height != 720 || !layout.Mirror {
		t.Errorf("横向きの出力設定が違います: %+v", layout)
	}
	if cfg.Capture.CountdownStart != 3 || cfg.Capture.CountdownInterval != time.Second {
		t.Errorf("カウントダウンの設定が違います: %+v", cfg.Capture)
	}
	if cfg.Frames.LoadTimeout != 5*time.Second {
		t.Errorf("フレーム読み込みのタイムアウトが違います: %s", cfg.Frames.LoadTimeout)
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{"正常な設定", func(*Config) {}, false},
		{"無効なポート番号", func(c *Config) { c.Server.Port = 99999 }, true},
		{"無効なカメラソース", func(c *Config) { c.Camera.Source = "x11_screen" }, true},
		{"無効なカメラの向き", func(c *Config) { c.Camera.FacingMode = "side" }, true},
		{"解像度が0", func(c *Config) { c.Camera.Width = 0 }, true},
		{"FPSが大きすぎる", func(c *Config) { c.Camera.FPS = 120 }, true},
		{"出力解像度が0", func(c *Config) { c.Capture.Layout.Portrait.Height = 0 }, true},
		{"横向きの幅が奇数", func(c *Config) { c.Capture.Layout.Landscape.Width = 1281 }, true},
		{"カウントダウンが0", func(c *Config) { c.Capture.CountdownStart = 0 }, true},
		{"カウントダウン間隔が0", func(c *Config) { c.Capture.CountdownInterval = 0 }, true},
		{"アセットなし・代替あり", func(c *Config) { c.Frames.AssetDir = "" }, false},
		{"アセットなし・代替なし", func(c *Config) {
			c.Frames.AssetDir = ""
			c.Frames.BuiltinFallback = false
		}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラーが発生しました: %v", err)
			}
		})
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "192.168.1.100",
			Port: 9090,
		},
	}

	expected := "192.168.1.100:9090"
	if actual := cfg.ServerAddress(); actual != expected {
		t.Errorf("サーバーアドレスが一致しません: got %s, want %s", actual, expected)
	}
}

// TestEnvironmentVariables は環境変数の処理をテストする
func TestEnvironmentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_HOST", "test.example.com")
	t.Setenv("PORT", "7000")
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("CAMERA_SOURCE", "test_pattern")
	t.Setenv("CAMERA_DEVICE", "/dev/video4")
	t.Setenv("FRAME_ASSET_DIR", "/srv/frames")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "test.example.com" {
		t.Errorf("環境変数のホストが反映されていません: got %s", cfg.Server.Host)
	}
	// SERVER_PORT は PORT より優先される
	if cfg.Server.Port != 9999 {
		t.Errorf("環境変数のポートが反映されていません: got %d, want 9999", cfg.Server.Port)
	}
	if cfg.Camera.Source != camera.SourceTypeTestPattern || cfg.Camera.Device != "/dev/video4" {
		t.Errorf("カメラの環境変数が反映されていません: %+v", cfg.Camera)
	}
	if cfg.Frames.AssetDir != "/srv/frames" || cfg.Log.Level != "debug" {
		t.Errorf("環境変数が反映されていません: frames=%+v log=%+v", cfg.Frames, cfg.Log)
	}
}

// TestLoadFile はYAMLファイルからの読み込みをテストする
func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9000
camera:
  source: test_pattern
  facing_mode: environment
  devices:
    environment: /dev/video2
capture:
  countdown_start: 5
  countdown_interval: 500ms
  layout:
    portrait:
      width: 720
      height: 1280
    landscape:
      width: 1280
      height: 720
    mirror: false
log:
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("ファイルのポートが反映されていません: %d", cfg.Server.Port)
	}
	// ファイルに無い項目はデフォルト値のまま
	if cfg.Server.Host != "0.0.0.0" || cfg.Camera.FPS != 15 {
		t.Errorf("デフォルト値が失われています: %+v %+v", cfg.Server, cfg.Camera)
	}
	if cfg.Camera.Devices[camera.FacingEnvironment] != "/dev/video2" {
		t.Errorf("向きごとのデバイスが反映されていません: %v", cfg.Camera.Devices)
	}
	if c := cfg.Camera.Constraints(); c.FacingMode != camera.FacingEnvironment || c.Width != 1280 {
		t.Errorf("要求条件が違います: %+v", c)
	}
	if cfg.Capture.CountdownStart != 5 || cfg.Capture.CountdownInterval != 500*time.Millisecond {
		t.Errorf("カウントダウンの設定が反映されていません: %+v", cfg.Capture)
	}
	if cfg.Capture.Layout.Portrait.Width != 720 || cfg.Capture.Layout.Mirror {
		t.Errorf("出力設定が反映されていません: %+v", cfg.Capture.Layout)
	}
	// 環境変数がファイルより優先される
	if cfg.Log.Format != "text" {
		t.Errorf("環境変数が優先されていません: %s", cfg.Log.Format)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("存在しないファイルでエラーになりませんでした")
	}

	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("server: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(broken); err == nil {
		t.Error("不正なYAMLでエラーになりませんでした")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("server:\n  port: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFile(invalid)
	if err == nil || !strings.Contains(err.Error(), "ポート") {
		t.Errorf("検証エラーが期待されました: %v", err)
	}
}
