package camera

import (
	"context"
	"sync"
)

// VideoSourceType はソースタイプを定義
type VideoSourceType string

const (
	// SourceTypeUSBCamera はUSBカメラソースを表す
	SourceTypeUSBCamera VideoSourceType = "usb_camera"
	// SourceTypeTestPattern は合成映像ソースを表す(カメラのない端末・テスト用)
	SourceTypeTestPattern VideoSourceType = "test_pattern"
)

// VideoSource は全ての動画源を統一するインターフェース
// フレームはJPEGエンコード済みのバイト列で流れる
type VideoSource interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	Frames() <-chan []byte
	Errors() <-chan error

	Info() VideoSourceInfo
	Status() Status
}

// VideoSourceInfo はソース情報を表す
type VideoSourceInfo struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        VideoSourceType `json:"type"`
	Device      string          `json:"device,omitempty"`
	Constraints Constraints     `json:"constraints"`
}

// baseVideoSource は共通実装を提供
type baseVideoSource struct {
	info      VideoSourceInfo
	frameChan chan []byte
	errorChan chan error
	status    Status
	mu        sync.RWMutex
}

func newBaseVideoSource(info VideoSourceInfo) baseVideoSource {
	return baseVideoSource{
		info:      info,
		frameChan: make(chan []byte, 10),
		errorChan: make(chan error, 5),
		status:    StatusInactive,
	}
}

// Info は基本情報を返す
func (b *baseVideoSource) Info() VideoSourceInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.info
}

// Status はステータスを返す
func (b *baseVideoSource) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// Frames はフレームチャンネルを返す
func (b *baseVideoSource) Frames() <-chan []byte {
	return b.frameChan
}

// Errors はエラーチャンネルを返す
func (b *baseVideoSource) Errors() <-chan error {
	return b.errorChan
}

// sendLatest はチャンネルがいっぱいの場合に古い値を捨てて送信する
func sendLatest[T any](ch chan T, v T, stop <-chan struct{}) bool {
	select {
	case ch <- v:
		return true
	case <-stop:
		return false
	default:
	}

	select {
	case <-ch:
	default:
	}

	select {
	case ch <- v:
		return true
	case <-stop:
		return false
	default:
		return false
	}
}
