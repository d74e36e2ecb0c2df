// Package countdown は撮影前のカウントダウンを提供する
package countdown

import (
	"errors"
	"sync"
	"time"
)

const (
	// DefaultStart はカウントダウンの開始値
	DefaultStart = 3
	// DefaultInterval はカウントダウンの間隔
	DefaultInterval = time.Second
)

// ErrAlreadyRunning はカウントダウン中に再度開始しようとした場合のエラー
var ErrAlreadyRunning = errors.New("countdown already running")

// TickFunc はカウントが変化するたびに呼ばれる
// value が 0 の場合はカウントダウンの終了(表示の消去)を表す
type TickFunc func(value int)

// Timer は一定間隔でカウントを減らし、0になったら完了処理を呼ぶ
type Timer struct {
	start    int
	interval time.Duration

	mu      sync.Mutex
	value   int
	running bool
	stop    chan struct{}
}

// New は新しいTimerを作成する
// start または interval が0以下の場合はデフォルト値を使用する
func New(start int, interval time.Duration) *Timer {
	if start <= 0 {
		start = DefaultStart
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Timer{start: start, interval: interval}
}

// Begin はカウントダウンを開始する
// onTick は開始値を含む各カウントで、onComplete は0に達したときに1回だけ呼ばれる
// どちらもタイマーのゴルーチンから順番に呼ばれる
func (t *Timer) Begin(onTick TickFunc, onComplete func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrAlreadyRunning
	}
	t.running = true
	t.value = t.start
	t.stop = make(chan struct{})

	go t.run(t.stop, onTick, onComplete)
	return nil
}

func (t *Timer) run(stop chan struct{}, onTick TickFunc, onComplete func()) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	if onTick != nil {
		select {
		case <-stop:
			return
		default:
			onTick(t.start)
		}
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		t.mu.Lock()
		// Cancel と競合した場合は停止側を優先する
		if t.stop != stop {
			t.mu.Unlock()
			return
		}
		t.value--
		value := t.value
		done := value <= 0
		if done {
			t.value = 0
			t.running = false
			t.stop = nil
		}
		t.mu.Unlock()

		if onTick != nil {
			onTick(value)
		}
		if done {
			if onComplete != nil {
				onComplete()
			}
			return
		}
	}
}

// Cancel は実行中のカウントダウンを完了処理なしで停止する
// 停止後に onComplete が呼ばれることはない。停止した場合は true を返す
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return false
	}
	close(t.stop)
	t.stop = nil
	t.running = false
	t.value = 0
	t.mu.Unlock()
	return true
}

// Value は現在のカウントを返す
// カウントダウン中でない場合は false を返す
func (t *Timer) Value() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0, false
	}
	return t.value, true
}

// Running はカウントダウン中かを返す
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
