package booth

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"photobooth/internal/camera"
	"photobooth/internal/composite"
	"photobooth/internal/frames"
)

var (
	// ErrNoFrameSelected はフレーム未選択で撮影しようとした場合のエラー
	ErrNoFrameSelected = errors.New("フレームを選択してください")

	// ErrUnknownFrame は存在しないフレームを選択した場合のエラー
	ErrUnknownFrame = errors.New("フレームが見つかりません")

	// ErrCaptureInProgress はカウントダウンまたは合成の実行中を表す
	ErrCaptureInProgress = errors.New("撮影中です")

	// ErrPreviewActive はプレビュー表示中で撮影できないことを表す
	ErrPreviewActive = errors.New("プレビュー表示中です")

	// ErrNoImage は合成結果がまだないことを表す
	ErrNoImage = errors.New("撮影した画像がありません")

	// ErrSessionClosed は終了済みのセッションを操作した場合のエラー
	ErrSessionClosed = errors.New("セッションは終了しています")

	// ErrNoSession は開始されたセッションがないことを表す
	ErrNoSession = errors.New("セッションが開始されていません")
)

// Camera はセッションが使うカメラ操作
type Camera interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Frame(ctx context.Context) (image.Image, error)
	Status() camera.Status
}

// StatusWatcher はストリーム側の状態変化を通知できるカメラ
// 通知はまとめられることがあり、受け取った側は Status を読み直す
type StatusWatcher interface {
	WatchStatus() (<-chan struct{}, func())
}

// Compositor は撮影画像とフレームの合成処理
type Compositor interface {
	Portrait(ctx context.Context, frame image.Image, def frames.Definition) (composite.Result, error)
	LandscapeShot(ctx context.Context, frame image.Image) (*image.RGBA, error)
	MergeLandscape(ctx context.Context, left, right image.Image, def frames.Definition) (composite.Result, error)
}

// Snapshot はある時点のセッション状態
type Snapshot struct {
	ID             string             `json:"id"`
	Version        uint64             `json:"version"`
	SelectedFrame  *int               `json:"selected_frame,omitempty"`
	Orientation    frames.Orientation `json:"orientation,omitempty"`
	LandscapeStep  int                `json:"landscape_step"`
	HasFirstShot   bool               `json:"has_first_shot"`
	Countdown      int                `json:"countdown,omitempty"`
	Capturing      bool               `json:"capturing"`
	PreviewVisible bool               `json:"preview_visible"`
	HasImage       bool               `json:"has_image"`
	PageVisible    bool               `json:"page_visible"`
	Camera         camera.Status      `json:"camera"`
	ButtonLabel    string             `json:"button_label"`
	Hint           string             `json:"hint,omitempty"`
	CanCapture     bool               `json:"can_capture"`
	CanCancel      bool               `json:"can_cancel"`
	LastError      string             `json:"last_error,omitempty"`
	Closed         bool               `json:"closed"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Busy はカウントダウンまたは合成の実行中かを返す
func (s Snapshot) Busy() bool {
	return s.Countdown > 0 || s.Capturing
}

// Download は保存用の画像
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DownloadFilename は保存時のファイル名を返す
func DownloadFilename(t time.Time) string {
	return fmt.Sprintf("photo-frame-%d.png", t.UnixMilli())
}
