package booth

import (
	"context"
	"sync"
)

// Booth は端末に1つだけ存在する撮影セッションを管理する
type Booth struct {
	opts Options

	mu      sync.Mutex
	current *Session
}

// New は新しいBoothを作成する
func New(opts Options) *Booth {
	return &Booth{opts: opts.withDefaults()}
}

// Open は新しい画面訪問としてセッションを開始する
// 既存のセッションは終了してカメラを解放してから置き換える
func (b *Booth) Open(ctx context.Context) (*Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil {
		if err := b.current.End(ctx); err != nil {
			return nil, err
		}
		b.current = nil
	}

	s := NewSession(b.opts)
	if err := s.Open(ctx); err != nil {
		_ = s.End(context.WithoutCancel(ctx))
		return nil, err
	}
	b.current = s
	return s, nil
}

// Current は現在のセッションを返す
func (b *Booth) Current() (*Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return nil, ErrNoSession
	}
	select {
	case <-b.current.Done():
		b.current = nil
		return nil, ErrNoSession
	default:
	}
	return b.current, nil
}

// Close は現在のセッションを終了する
func (b *Booth) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return nil
	}
	err := b.current.End(ctx)
	b.current = nil
	return err
}
