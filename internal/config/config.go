package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"photobooth/internal/camera"
	"photobooth/internal/composite"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Camera  CameraConfig  `yaml:"camera"`
	Frames  FramesConfig  `yaml:"frames"`
	Capture CaptureConfig `yaml:"capture"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"` // ストリーミングのため0(無効)が既定
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	Source       camera.VideoSourceType       `yaml:"source"`  // usb_camera / test_pattern
	Device       string                       `yaml:"device"`  // 明示的なデバイスパス (例: /dev/video0)
	Devices      map[camera.FacingMode]string `yaml:"devices"` // 向きごとのデバイスパス
	FacingMode   camera.FacingMode            `yaml:"facing_mode"`
	Width        int                          `yaml:"width"`
	Height       int                          `yaml:"height"`
	FPS          int                          `yaml:"fps"`
	FrameTimeout time.Duration                `yaml:"frame_timeout"` // 開始直後に最初のフレームを待つ時間
}

// Constraints はストリームの要求条件を返す
func (c CameraConfig) Constraints() camera.Constraints {
	return camera.Constraints{
		FacingMode: c.FacingMode,
		Width:      c.Width,
		Height:     c.Height,
		FPS:        c.FPS,
	}
}

// FramesConfig はフレーム画像の設定
type FramesConfig struct {
	AssetDir        string        `yaml:"asset_dir"`        // フレーム画像のディレクトリ
	Catalog         string        `yaml:"catalog"`          // フレーム一覧のYAML(省略時は組み込みの一覧)
	LoadTimeout     time.Duration `yaml:"load_timeout"`     // 画像デコードのタイムアウト
	BuiltinFallback bool          `yaml:"builtin_fallback"` // 画像がない場合に組み込みフレームを使う
}

// CaptureConfig は撮影と合成の設定
type CaptureConfig struct {
	CountdownStart    int              `yaml:"countdown_start"`
	CountdownInterval time.Duration    `yaml:"countdown_interval"`
	Timeout           time.Duration    `yaml:"timeout"` // フレーム取得から合成までの上限
	Layout            composite.Layout `yaml:"layout"`
}

// LogConfig はログの設定
type LogConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Format string `yaml:"format"` // text / json
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0,
			ShutdownTimeout: 5 * time.Second,
		},
		Camera: CameraConfig{
			Source:       camera.SourceTypeUSBCamera,
			Devices:      map[camera.FacingMode]string{},
			FacingMode:   camera.FacingUser,
			Width:        1280,
			Height:       720,
			FPS:          15,
			FrameTimeout: camera.DefaultFrameTimeout,
		},
		Frames: FramesConfig{
			AssetDir:        "public",
			LoadTimeout:     5 * time.Second,
			BuiltinFallback: true,
		},
		Capture: CaptureConfig{
			CountdownStart:    3,
			CountdownInterval: time.Second,
			Timeout:           15 * time.Second,
			Layout:            composite.DefaultLayout(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load は設定を読み込む
// デフォルト値 -> CONFIG_FILE のYAML -> 環境変数 の順に上書きする
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile は指定されたYAMLファイルを使って設定を読み込む
// path が空の場合はファイルを読まない
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Server.Port = getEnvAsIntOrDefault("SERVER_PORT", c.Server.Port)

	c.Camera.Source = camera.VideoSourceType(getEnvOrDefault("CAMERA_SOURCE", string(c.Camera.Source)))
	c.Camera.Device = getEnvOrDefault("CAMERA_DEVICE", c.Camera.Device)

	c.Frames.AssetDir = getEnvOrDefault("FRAME_ASSET_DIR", c.Frames.AssetDir)
	c.Frames.Catalog = getEnvOrDefault("FRAME_CATALOG", c.Frames.Catalog)

	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("無効なポート番号: %d", c.Server.Port))
	}

	switch c.Camera.Source {
	case camera.SourceTypeUSBCamera, camera.SourceTypeTestPattern:
	default:
		errs = append(errs, fmt.Errorf("無効なカメラソース: %q", c.Camera.Source))
	}
	if err := c.Camera.Constraints().Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Frames.AssetDir == "" && !c.Frames.BuiltinFallback {
		errs = append(errs, errors.New("フレーム画像のディレクトリが設定されていません"))
	}

	layout := c.Capture.Layout
	if !layout.Portrait.Valid() || !layout.Landscape.Valid() {
		errs = append(errs, fmt.Errorf("無効な出力解像度: portrait=%v landscape=%v", layout.Portrait, layout.Landscape))
	}
	if layout.Landscape.Width%2 != 0 {
		errs = append(errs, fmt.Errorf("横向きの幅は偶数にしてください: %d", layout.Landscape.Width))
	}
	if c.Capture.CountdownStart < 1 {
		errs = append(errs, fmt.Errorf("無効なカウントダウン開始値: %d", c.Capture.CountdownStart))
	}
	if c.Capture.CountdownInterval <= 0 {
		errs = append(errs, fmt.Errorf("無効なカウントダウン間隔: %s", c.Capture.CountdownInterval))
	}

	return errors.Join(errs...)
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
