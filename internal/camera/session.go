package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"photobooth/internal/logging"
)

// DefaultFrameTimeout は開始直後に最初のフレームを待つ時間
const DefaultFrameTimeout = 5 * time.Second

// SessionConfig はカメラセッションの設定
type SessionConfig struct {
	SourceType   VideoSourceType
	Source       SourceConfig
	FrameTimeout time.Duration
}

// Session はブース画面に紐づくカメラストリームを管理する
// ストリームは高々1つで、開始と停止は直列に実行される
type Session struct {
	factory VideoSourceFactory
	config  SessionConfig
	logger  *slog.Logger

	// Start/Stop を直列化する
	opMu sync.Mutex

	mu        sync.Mutex
	source    VideoSource
	status    Status
	lastErr   error
	cancel    context.CancelFunc
	done      chan struct{}
	ready     chan struct{}
	latest    []byte
	subs      map[int]chan []byte
	nextSubID int
	watchers  map[int]chan struct{}
}

// NewSession は新しいSessionを作成する
func NewSession(factory VideoSourceFactory, config SessionConfig) *Session {
	if config.FrameTimeout <= 0 {
		config.FrameTimeout = DefaultFrameTimeout
	}
	return &Session{
		factory:  factory,
		config:   config,
		logger:   logging.Component("camera"),
		status:   StatusInactive,
		subs:     make(map[int]chan []byte),
		watchers: make(map[int]chan struct{}),
	}
}

// Start はストリームを要求してライブビューに接続する
// 権限拒否やデバイスなしの場合は状態を unavailable にしてエラーなしで戻る
func (s *Session) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	running := s.source != nil
	s.mu.Unlock()
	if running {
		return nil
	}

	source, err := s.factory.CreateSource(ctx, s.config.SourceType, s.config.Source)
	if err != nil {
		s.markUnavailable(err)
		return nil
	}

	// ストリームはリクエストのコンテキストより長く生きる
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := source.Start(runCtx); err != nil {
		cancel()
		s.markUnavailable(err)
		return nil
	}

	done := make(chan struct{})
	ready := make(chan struct{})

	s.mu.Lock()
	s.source = source
	s.cancel = cancel
	s.done = done
	s.ready = ready
	s.latest = nil
	s.setStatusLocked(StatusActive)
	s.lastErr = nil
	s.mu.Unlock()

	go s.pump(runCtx, source, ready, done)

	info := source.Info()
	s.logger.Info("カメラを開始しました", "source", info.Type, "name", info.Name, "device", info.Device)
	return nil
}

func (s *Session) markUnavailable(err error) {
	s.mu.Lock()
	s.setStatusLocked(StatusUnavailable)
	s.lastErr = err
	s.mu.Unlock()

	s.logger.Warn("カメラを利用できません", "error", err)
}

// Stop はストリームを停止して解放する
// ストリームがない場合は何もしない
func (s *Session) Stop(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	source, cancel, done := s.source, s.cancel, s.done
	s.source = nil
	s.cancel = nil
	s.done = nil
	s.ready = nil
	s.latest = nil
	if s.status == StatusActive || s.status == StatusError {
		s.setStatusLocked(StatusInactive)
	}
	s.mu.Unlock()

	if source == nil {
		return nil
	}

	cancel()
	err := source.Stop(ctx)
	<-done

	if err != nil {
		return fmt.Errorf("カメラの停止に失敗: %w", err)
	}
	s.logger.Info("カメラを停止しました")
	return nil
}

// pump はソースのフレームを保持し、購読者に配信する
func (s *Session) pump(ctx context.Context, source VideoSource, ready, done chan struct{}) {
	defer close(done)

	frames := source.Frames()
	errs := source.Errors()
	first := true

	for {
		select {
		case <-ctx.Done():
			return

		case frame := <-frames:
			s.mu.Lock()
			if s.source != source {
				s.mu.Unlock()
				return
			}
			s.latest = frame
			if s.status == StatusError {
				s.setStatusLocked(StatusActive)
			}
			subs := make([]chan []byte, 0, len(s.subs))
			for _, ch := range s.subs {
				subs = append(subs, ch)
			}
			s.mu.Unlock()

			if first {
				close(ready)
				first = false
			}
			for _, ch := range subs {
				sendLatest(ch, frame, nil)
			}

		case err := <-errs:
			s.mu.Lock()
			if s.source == source {
				s.setStatusLocked(StatusError)
				s.lastErr = err
			}
			s.mu.Unlock()
			s.logger.Warn("ストリーミングエラー", "error", err)
		}
	}
}

// Frame は最新のフレームを画像として返す
// 開始直後でまだフレームがない場合は FrameTimeout まで待つ
func (s *Session) Frame(ctx context.Context) (image.Image, error) {
	data, err := s.FrameJPEG(ctx)
	if err != nil {
		return nil, err
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("フレームのデコードに失敗: %w", err)
	}
	return img, nil
}

// FrameJPEG は最新のフレームをJPEGのまま返す
func (s *Session) FrameJPEG(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if s.source == nil {
		s.mu.Unlock()
		return nil, ErrNoStream
	}
	if s.latest != nil {
		frame := s.latest
		s.mu.Unlock()
		return frame, nil
	}
	ready := s.ready
	s.mu.Unlock()

	timer := time.NewTimer(s.config.FrameTimeout)
	defer timer.Stop()

	select {
	case <-ready:
	case <-timer.C:
		return nil, ErrFrameTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		// 待機中に停止された
		return nil, ErrNoStream
	}
	return s.latest, nil
}

// Subscribe はライブビュー用にJPEGフレームを購読する
// 返される関数で購読を解除する。ストリームの停止・再開をまたいで購読は継続する
func (s *Session) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 2)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// WatchStatus は状態が変わるたびに通知を受け取る
// 通知はまとめられるため、受け取ったら Status を読み直す
func (s *Session) WatchStatus() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// setStatusLocked は状態を更新して監視者に通知する。mu を保持して呼ぶ
func (s *Session) setStatusLocked(status Status) {
	if s.status == status {
		return
	}
	s.status = status
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Status は現在の状態を返す
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// StatusInfo はAPIで返すカメラの状態
type StatusInfo struct {
	Status    Status           `json:"status"`
	Source    *VideoSourceInfo `json:"source,omitempty"`
	LastError string           `json:"last_error,omitempty"`
}

// Info は現在の状態とソース情報を返す
func (s *Session) Info() StatusInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := StatusInfo{Status: s.status}
	if s.source != nil {
		si := s.source.Info()
		info.Source = &si
	}
	if s.lastErr != nil {
		info.LastError = s.lastErr.Error()
	}
	return info
}

// Active はストリームが存在するかを返す
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source != nil
}
