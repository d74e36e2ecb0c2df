package camera

import (
	"context"
	"fmt"
	"sync"
)

// USBCameraSource はUSBカメラの VideoSource 実装
type USBCameraSource struct {
	baseVideoSource

	capturer *V4L2Capturer

	stopCh chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// ffmpegからの生のフレーム
	internalFrameChan chan []byte
	internalErrorChan chan error
}

// NewUSBCameraSource は新しいUSBCameraSourceを作成する
func NewUSBCameraSource(info VideoSourceInfo) *USBCameraSource {
	c := info.Constraints
	return &USBCameraSource{
		baseVideoSource:   newBaseVideoSource(info),
		capturer:          NewV4L2Capturer(info.Device, c.Width, c.Height, c.FPS),
		internalFrameChan: make(chan []byte, 10),
		internalErrorChan: make(chan error, 5),
	}
}

// Start はカメラを開始する
// テストキャプチャに失敗した場合(権限なし・使用中など)はエラーを返す
func (s *USBCameraSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusActive {
		return nil
	}

	if err := s.capturer.TestCapture(ctx); err != nil {
		s.status = StatusUnavailable
		return fmt.Errorf("カメラのテストキャプチャに失敗: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopCh = make(chan struct{})

	s.capturer.StartStream(streamCtx, s.internalFrameChan, s.internalErrorChan)

	s.wg.Add(1)
	go s.forwardFrames(s.stopCh)

	s.status = StatusActive
	return nil
}

// Stop はカメラを停止してffmpegを終了させる
func (s *USBCameraSource) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		s.status = StatusInactive
		return nil
	}

	s.cancel()
	close(s.stopCh)
	s.wg.Wait()

	s.status = StatusInactive
	return nil
}

// forwardFrames はキャプチャからのフレームとエラーを外部チャンネルへ転送する
func (s *USBCameraSource) forwardFrames(stop <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-stop:
			return

		case frame := <-s.internalFrameChan:
			if !sendLatest(s.frameChan, frame, stop) {
				return
			}

		case err := <-s.internalErrorChan:
			if !sendLatest(s.errorChan, err, stop) {
				return
			}
		}
	}
}
