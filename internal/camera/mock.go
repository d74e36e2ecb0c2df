package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"sync/atomic"
)

// MockVideoSource はテスト用の VideoSource 実装
// 開始時に指定のフレームを1枚流し、以降は Emit で任意に流す
type MockVideoSource struct {
	baseVideoSource

	startErr error
	initial  []byte

	starts atomic.Int32
	stops  atomic.Int32
}

// NewMockVideoSource は新しいMockVideoSourceを作成する
// startErr を指定すると Start が常に失敗する(権限拒否の再現)
func NewMockVideoSource(initial []byte, startErr error) *MockVideoSource {
	return &MockVideoSource{
		baseVideoSource: newBaseVideoSource(VideoSourceInfo{
			ID:          "mock",
			Name:        "Mock Camera",
			Type:        "mock",
			Constraints: DefaultConstraints(),
		}),
		startErr: startErr,
		initial:  initial,
	}
}

// Start はモックを開始する
func (m *MockVideoSource) Start(_ context.Context) error {
	m.starts.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		m.status = StatusUnavailable
		return m.startErr
	}
	m.status = StatusActive
	if m.initial != nil {
		sendLatest(m.frameChan, m.initial, nil)
	}
	return nil
}

// Stop はモックを停止する
func (m *MockVideoSource) Stop(_ context.Context) error {
	m.stops.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusInactive
	return nil
}

// Emit はフレームを1枚流す
func (m *MockVideoSource) Emit(frame []byte) {
	sendLatest(m.frameChan, frame, nil)
}

// Fail はストリーミングエラーを流す
func (m *MockVideoSource) Fail(err error) {
	sendLatest(m.errorChan, err, nil)
}

// StartCount は Start が呼ばれた回数を返す
func (m *MockVideoSource) StartCount() int {
	return int(m.starts.Load())
}

// StopCount は Stop が呼ばれた回数を返す
func (m *MockVideoSource) StopCount() int {
	return int(m.stops.Load())
}

// SolidJPEG は単色のJPEGフレームを作成する
func SolidJPEG(width, height int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	return buf.Bytes()
}

// MockFactory は常に同じソースを返す VideoSourceFactory
type MockFactory struct {
	Source    VideoSource
	CreateErr error
	created   atomic.Int32
}

// CreateSource はモックソースを返す
func (f *MockFactory) CreateSource(_ context.Context, _ VideoSourceType, _ SourceConfig) (VideoSource, error) {
	f.created.Add(1)
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	return f.Source, nil
}

// SupportedTypes はモックのタイプを返す
func (f *MockFactory) SupportedTypes() []VideoSourceType {
	return []VideoSourceType{"mock"}
}

// CreatedCount は CreateSource が呼ばれた回数を返す
func (f *MockFactory) CreatedCount() int {
	return int(f.created.Load())
}
