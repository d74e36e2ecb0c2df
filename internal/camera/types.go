package camera

import (
	"context"
	"errors"
	"fmt"
)

// Status はカメラの動作状態を表す
type Status string

const (
	StatusInactive    Status = "inactive"    // カメラは停止中
	StatusActive      Status = "active"      // カメラは動作中
	StatusUnavailable Status = "unavailable" // 権限がない、またはデバイスがない
	StatusError       Status = "error"       // ストリーミング中にエラーが発生
)

// FacingMode はカメラの向きを表す
type FacingMode string

const (
	FacingUser        FacingMode = "user"        // 利用者側(インカメラ)
	FacingEnvironment FacingMode = "environment" // 外側(アウトカメラ)
)

var (
	// ErrNoStream はストリームが存在しない状態で撮影しようとした場合のエラー
	ErrNoStream = errors.New("カメラストリームがありません")

	// ErrNoDevice はカメラデバイスが見つからない場合のエラー
	ErrNoDevice = errors.New("カメラデバイスが見つかりません")

	// ErrFrameTimeout は最初のフレームが届かない場合のエラー
	ErrFrameTimeout = errors.New("フレームの取得がタイムアウトしました")
)

// Constraints はストリームに要求する条件
type Constraints struct {
	FacingMode FacingMode `yaml:"facing_mode" json:"facing_mode"`
	Width      int        `yaml:"width" json:"width"`
	Height     int        `yaml:"height" json:"height"`
	FPS        int        `yaml:"fps" json:"fps"`
}

// DefaultConstraints はデフォルトの要求条件を返す
func DefaultConstraints() Constraints {
	return Constraints{
		FacingMode: FacingUser,
		Width:      1280,
		Height:     720,
		FPS:        15,
	}
}

// Validate は要求条件の妥当性を検証する
func (c Constraints) Validate() error {
	switch c.FacingMode {
	case FacingUser, FacingEnvironment:
	default:
		return fmt.Errorf("無効なカメラの向き: %q", c.FacingMode)
	}

	if c.FPS <= 0 || c.FPS > 60 {
		return fmt.Errorf("無効なFPS値: %d", c.FPS)
	}

	if c.Width <= 0 || c.Width > 4096 {
		return fmt.Errorf("無効な幅: %d", c.Width)
	}

	if c.Height <= 0 || c.Height > 4096 {
		return fmt.Errorf("無効な高さ: %d", c.Height)
	}

	return nil
}

// withDefaults は未指定の項目をデフォルト値で補う
func (c Constraints) withDefaults() Constraints {
	d := DefaultConstraints()
	if c.FacingMode == "" {
		c.FacingMode = d.FacingMode
	}
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Height <= 0 {
		c.Height = d.Height
	}
	if c.FPS <= 0 {
		c.FPS = d.FPS
	}
	return c
}

// Discovery はカメラデバイスの検出機能を提供する
type Discovery interface {
	// ScanDevices はシステム内の利用可能なカメラデバイスをスキャンする
	ScanDevices(ctx context.Context) ([]string, error)

	// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
	IsDeviceAvailable(ctx context.Context, device string) bool

	// GetDeviceInfo はデバイスの詳細情報を取得する
	GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error)
}

// DeviceInfo はカメラデバイスの詳細情報を表す
type DeviceInfo struct {
	Device      string       `json:"device"`
	Name        string       `json:"name"`
	Driver      string       `json:"driver"`
	Resolutions []Resolution `json:"resolutions"`
	Formats     []string     `json:"formats"`
}

// Resolution はカメラの解像度を表す
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
