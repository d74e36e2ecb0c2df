package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"
)

// TestPatternSource は合成したカラーバーを流す VideoSource 実装
// カメラのない端末での動作確認に使う
type TestPatternSource struct {
	baseVideoSource

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewTestPatternSource は新しいTestPatternSourceを作成する
func NewTestPatternSource(info VideoSourceInfo) *TestPatternSource {
	return &TestPatternSource{baseVideoSource: newBaseVideoSource(info)}
}

// Start はフレーム生成を開始する
func (s *TestPatternSource) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusActive {
		return nil
	}

	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.generate(s.info.Constraints, s.stopCh)

	s.status = StatusActive
	return nil
}

// Stop はフレーム生成を停止する
func (s *TestPatternSource) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return nil
	}

	close(s.stopCh)
	s.wg.Wait()
	s.status = StatusInactive
	return nil
}

func (s *TestPatternSource) generate(c Constraints, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(c.FPS))
	defer ticker.Stop()

	for n := 0; ; n++ {
		frame, err := RenderTestPattern(c.Width, c.Height, n)
		if err != nil {
			sendLatest(s.errorChan, err, stop)
		} else if !sendLatest(s.frameChan, frame, stop) {
			select {
			case <-stop:
				return
			default:
			}
		}

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

var testPatternBars = []color.RGBA{
	{R: 0xC0, G: 0xC0, B: 0xC0, A: 0xFF},
	{R: 0xC0, G: 0xC0, B: 0x00, A: 0xFF},
	{R: 0x00, G: 0xC0, B: 0xC0, A: 0xFF},
	{R: 0x00, G: 0xC0, B: 0x00, A: 0xFF},
	{R: 0xC0, G: 0x00, B: 0xC0, A: 0xFF},
	{R: 0xC0, G: 0x00, B: 0x00, A: 0xFF},
	{R: 0x00, G: 0x00, B: 0xC0, A: 0xFF},
}

// RenderTestPattern はカラーバーと n に応じて動くマーカーを描いたJPEGを返す
func RenderTestPattern(width, height, n int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	barWidth := max(width/len(testPatternBars), 1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := min(x/barWidth, len(testPatternBars)-1)
			img.SetRGBA(x, y, testPatternBars[i])
		}
	}

	// 動きが分かるように黒い帯を横に流す
	marker := max(height/12, 1)
	offset := (n * 8) % max(width, 1)
	for y := height - marker; y < height; y++ {
		for x := offset; x < min(offset+marker, width); x++ {
			img.SetRGBA(x, y, color.RGBA{A: 0xFF})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("テストパターンのエンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}
