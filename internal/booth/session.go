package booth

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"photobooth/internal/camera"
	"photobooth/internal/composite"
	"photobooth/internal/countdown"
	"photobooth/internal/frames"
	"photobooth/internal/logging"
)

// DefaultCaptureTimeout は1回の撮影(フレーム取得から合成まで)の上限時間
const DefaultCaptureTimeout = 15 * time.Second

// Options はセッションの依存関係と設定
type Options struct {
	Camera            Camera
	Catalog           *frames.Catalog
	Compositor        Compositor
	CountdownStart    int
	CountdownInterval time.Duration
	CaptureTimeout    time.Duration
	Now               func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CaptureTimeout <= 0 {
		o.CaptureTimeout = DefaultCaptureTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// state はセッションループだけが触る可変状態
type state struct {
	frameID       int
	def           frames.Definition
	landscapeStep int
	firstShot     *image.RGBA
	countdown     int
	capturing     bool
	generation    uint64
	cancelCapture context.CancelFunc
	result        *composite.Result
	preview       bool
	releasing     bool
	pageVisible   bool
	lastErr       error
	closed        bool

	// 処理中に要求したカメラ操作の完了通知
	cameraDone <-chan struct{}
}

func (st *state) busy() bool {
	return st.countdown > 0 || st.capturing
}

type reply struct {
	err        error
	cameraDone <-chan struct{}
}

type command struct {
	fn    func(st *state) error
	reply chan reply
}

type cameraOp struct {
	start bool
	done  chan struct{}
}

// Session は1回の画面訪問に対応する撮影セッション
// 状態は run ゴルーチンだけが所有し、外部からの操作と非同期の完了通知は
// すべて commands チャンネル経由で渡される
type Session struct {
	id     string
	opts   Options
	timer  *countdown.Timer
	logger *slog.Logger

	commands chan command
	events   chan func(st *state)
	refreshQ chan struct{}
	cameraQ  chan cameraOp
	done     chan struct{}

	mu        sync.RWMutex
	snapshot  Snapshot
	version   uint64
	subs      map[int]chan Snapshot
	nextSubID int
	subsDone  bool
}

// NewSession は新しいセッションを作成して状態ループを開始する
// カメラはまだ開始しない(Open で開始する)
func NewSession(opts Options) *Session {
	opts = opts.withDefaults()
	id := uuid.NewString()

	s := &Session{
		id:       id,
		opts:     opts,
		timer:    countdown.New(opts.CountdownStart, opts.CountdownInterval),
		logger:   logging.Component("booth").With("session", id),
		commands: make(chan command),
		events:   make(chan func(st *state), 16),
		refreshQ: make(chan struct{}, 1),
		cameraQ:  make(chan cameraOp, 32),
		done:     make(chan struct{}),
		subs:     make(map[int]chan Snapshot),
	}

	st := &state{}
	s.publish(st)

	go s.run(st)
	go s.cameraWorker()
	if w, ok := opts.Camera.(StatusWatcher); ok {
		go s.watchCamera(w)
	}

	return s
}

// ID はセッションIDを返す
func (s *Session) ID() string {
	return s.id
}

// Done はセッション終了時にクローズされるチャンネルを返す
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) run(st *state) {
	defer close(s.done)

	for {
		select {
		case cmd := <-s.commands:
			st.cameraDone = nil
			err := cmd.fn(st)
			s.publish(st)
			cmd.reply <- reply{err: err, cameraDone: st.cameraDone}
			st.cameraDone = nil

		case ev := <-s.events:
			ev(st)
			s.publish(st)

		case <-s.refreshQ:
			s.publish(st)
		}

		if st.closed {
			close(s.cameraQ)
			s.closeSubscribers()
			return
		}
	}
}

// do は状態ループ上で fn を実行し、要求されたカメラ操作の完了まで待つ
func (s *Session) do(ctx context.Context, fn func(st *state) error) error {
	cmd := command{fn: fn, reply: make(chan reply, 1)}

	select {
	case s.commands <- cmd:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	r := <-cmd.reply
	if r.cameraDone != nil {
		select {
		case <-r.cameraDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return r.err
}

// post は非同期の完了通知を状態ループに渡す
// セッション終了後の通知は捨てる
func (s *Session) post(ev func(st *state)) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// refresh はカメラ状態の変化をスナップショットに反映させる
// 未処理の要求があれば publish 時点の状態を読むのでまとめてよい
func (s *Session) refresh() {
	select {
	case s.refreshQ <- struct{}{}:
	default:
	}
}

// watchCamera はカメラ側で起きた状態変化を反映する
func (s *Session) watchCamera(w StatusWatcher) {
	changes, stop := w.WatchStatus()
	defer stop()

	for {
		select {
		case <-changes:
			s.refresh()
		case <-s.done:
			return
		}
	}
}

func (s *Session) cameraWorker() {
	// リクエストのコンテキストとは独立して最後まで実行する
	ctx := context.Background()

	for op := range s.cameraQ {
		var err error
		if op.start {
			err = s.opts.Camera.Start(ctx)
		} else {
			err = s.opts.Camera.Stop(ctx)
		}
		if err != nil {
			s.logger.Warn("カメラ操作に失敗しました", "start", op.start, "error", err)
		}
		close(op.done)
		s.refresh()
	}
}

func (s *Session) enqueueCamera(start bool) <-chan struct{} {
	op := cameraOp{start: start, done: make(chan struct{})}
	s.cameraQ <- op
	return op.done
}

func (s *Session) requestCamera(st *state, start bool) {
	st.cameraDone = s.enqueueCamera(start)
}

// syncCamera はカメラをあるべき状態に揃える
// 表示中かつプレビュー非表示のときだけストリームを持つ
func (s *Session) syncCamera(st *state) {
	s.requestCamera(st, st.pageVisible && !st.preview && !st.releasing && !st.closed)
}

// abort は実行中のカウントダウンと撮影を破棄する
// 以降に届く古い完了通知は世代番号で無視される
func (s *Session) abort(st *state) {
	st.generation++
	s.timer.Cancel()
	st.countdown = 0
	if st.cancelCapture != nil {
		st.cancelCapture()
		st.cancelCapture = nil
	}
	st.capturing = false
	st.releasing = false
}

func (s *Session) resetLandscape(st *state) {
	st.landscapeStep = 0
	st.firstShot = nil
}

func (s *Session) checkOpen(st *state) error {
	if st.closed {
		return ErrSessionClosed
	}
	return nil
}

// Open は画面の表示開始としてカメラを開始する
func (s *Session) Open(ctx context.Context) error {
	return s.SetVisibility(ctx, true)
}

// SelectFrame はフレームを選択する
// 横向きの2枚撮りの途中であれば最初からやり直しになる
func (s *Session) SelectFrame(ctx context.Context, id int) error {
	return s.do(ctx, func(st *state) error {
		if err := s.checkOpen(st); err != nil {
			return err
		}
		if st.preview {
			return ErrPreviewActive
		}
		if st.busy() {
			return ErrCaptureInProgress
		}

		def, ok := s.opts.Catalog.Get(id)
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownFrame, id)
		}

		st.frameID = id
		st.def = def
		st.lastErr = nil
		s.resetLandscape(st)
		s.logger.Info("フレームを選択しました", "frame", id, "orientation", def.Orientation)
		return nil
	})
}

// Capture は撮影ボタンの操作を処理する
// 縦向きはカウントダウン後に1枚撮る。横向きは1回目で待機状態に入り、
// 2回目と3回目でそれぞれ左右の1枚をカウントダウン後に撮る
func (s *Session) Capture(ctx context.Context) error {
	return s.do(ctx, func(st *state) error {
		if err := s.checkOpen(st); err != nil {
			return err
		}
		if st.preview {
			return ErrPreviewActive
		}
		if st.frameID == 0 {
			return ErrNoFrameSelected
		}
		if st.busy() {
			return ErrCaptureInProgress
		}

		if st.def.Orientation == frames.Landscape && st.landscapeStep == 0 {
			st.landscapeStep = 1
			st.lastErr = nil
			return nil
		}

		gen := st.generation
		// 0 は startCapture が撮影開始と同時に反映する
		onTick := func(v int) {
			if v <= 0 {
				return
			}
			s.post(func(st *state) {
				if st.generation == gen {
					st.countdown = v
				}
			})
		}
		onComplete := func() {
			s.post(func(st *state) { s.startCapture(st, gen) })
		}
		if err := s.timer.Begin(onTick, onComplete); err != nil {
			if errors.Is(err, countdown.ErrAlreadyRunning) {
				return ErrCaptureInProgress
			}
			return err
		}

		if v, ok := s.timer.Value(); ok {
			st.countdown = v
		}
		st.lastErr = nil
		return nil
	})
}

// startCapture はカウントダウン完了後に撮影と合成を開始する
func (s *Session) startCapture(st *state, gen uint64) {
	if st.generation != gen || st.closed {
		return
	}

	st.countdown = 0
	st.capturing = true

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CaptureTimeout)
	st.cancelCapture = cancel

	def := st.def
	step := st.landscapeStep
	first := st.firstShot

	go func() {
		defer cancel()
		s.capture(ctx, gen, def, step, first)
	}()
}

// capture は状態ループの外でフレーム取得と合成を行い、結果を通知する
func (s *Session) capture(ctx context.Context, gen uint64, def frames.Definition, step int, first *image.RGBA) {
	frame, err := s.opts.Camera.Frame(ctx)
	if err != nil {
		s.post(func(st *state) { s.captureFailed(st, gen, fmt.Errorf("フレームの取得に失敗: %w", err)) })
		return
	}

	c := s.opts.Compositor
	switch {
	case def.Orientation == frames.Portrait:
		result, err := c.Portrait(ctx, frame, def)
		s.postResult(gen, result, err)

	case step == 1:
		shot, err := c.LandscapeShot(ctx, frame)
		if err != nil {
			s.post(func(st *state) { s.captureFailed(st, gen, err) })
			return
		}
		s.post(func(st *state) {
			if st.generation != gen {
				return
			}
			st.capturing = false
			st.cancelCapture = nil
			st.firstShot = shot
			st.landscapeStep = 2
		})

	default:
		shot, err := c.LandscapeShot(ctx, frame)
		if err != nil {
			s.post(func(st *state) { s.captureFailed(st, gen, err) })
			return
		}
		result, err := c.MergeLandscape(ctx, first, shot, def)
		s.postResult(gen, result, err)
	}
}

func (s *Session) postResult(gen uint64, result composite.Result, err error) {
	if err != nil {
		s.post(func(st *state) { s.captureFailed(st, gen, err) })
		return
	}
	s.post(func(st *state) { s.releaseForPreview(st, gen, result) })
}

// releaseForPreview はストリームの停止を待ってからプレビューを表示する
// 停止までは撮影中のまま扱う
func (s *Session) releaseForPreview(st *state, gen uint64, result composite.Result) {
	if st.generation != gen || st.closed {
		return
	}
	st.cancelCapture = nil
	st.releasing = true
	released := s.enqueueCamera(false)

	go func() {
		<-released
		s.post(func(st *state) { s.showPreview(st, gen, result) })
	}()
}

func (s *Session) captureFailed(st *state, gen uint64, err error) {
	if st.generation != gen {
		return
	}
	st.capturing = false
	st.cancelCapture = nil
	st.lastErr = err
	s.logger.Warn("撮影に失敗しました", "error", err)
}

// showPreview は解放済みのストリームのもとで合成結果とプレビュー表示を同時に確定する
func (s *Session) showPreview(st *state, gen uint64, result composite.Result) {
	if st.generation != gen || st.closed {
		return
	}
	st.capturing = false
	st.releasing = false
	st.result = &result
	st.preview = true
	s.resetLandscape(st)

	s.logger.Info("撮影が完了しました", "frame", st.frameID, "width", result.Width, "height", result.Height, "bytes", len(result.PNG))
}

// CancelSequence は横向きの2枚撮りを中断して最初に戻す
func (s *Session) CancelSequence(ctx context.Context) error {
	return s.do(ctx, func(st *state) error {
		if err := s.checkOpen(st); err != nil {
			return err
		}
		if st.preview {
			return ErrPreviewActive
		}
		s.abort(st)
		s.resetLandscape(st)
		s.syncCamera(st)
		return nil
	})
}

// Retake は撮影結果を破棄してカメラを再開する
func (s *Session) Retake(ctx context.Context) error {
	return s.do(ctx, func(st *state) error {
		if err := s.checkOpen(st); err != nil {
			return err
		}
		s.abort(st)
		s.resetLandscape(st)
		st.result = nil
		st.preview = false
		st.lastErr = nil
		s.syncCamera(st)
		return nil
	})
}

// SetVisibility は画面の表示状態を反映する
// 非表示になるとカメラを止め、実行中のカウントダウンと撮影も破棄する
func (s *Session) SetVisibility(ctx context.Context, visible bool) error {
	return s.do(ctx, func(st *state) error {
		if err := s.checkOpen(st); err != nil {
			return err
		}
		if !visible && st.busy() {
			s.abort(st)
		}
		st.pageVisible = visible
		s.syncCamera(st)
		return nil
	})
}

// Download は合成結果を保存用のファイル名とともに返す
func (s *Session) Download(ctx context.Context) (Download, error) {
	var d Download
	err := s.do(ctx, func(st *state) error {
		if st.result == nil {
			return ErrNoImage
		}
		d = Download{
			Filename:    DownloadFilename(s.opts.Now()),
			ContentType: "image/png",
			Data:        st.result.PNG,
		}
		return nil
	})
	return d, err
}

// Preview は合成結果を返す
func (s *Session) Preview(ctx context.Context) (composite.Result, error) {
	var r composite.Result
	err := s.do(ctx, func(st *state) error {
		if st.result == nil {
			return ErrNoImage
		}
		r = *st.result
		return nil
	})
	return r, err
}

// End は完了ボタンまたは画面遷移としてセッションを終了する
// ストリームを解放してから戻る。2回目以降は何もしない
func (s *Session) End(ctx context.Context) error {
	err := s.do(ctx, func(st *state) error {
		if st.closed {
			return nil
		}
		s.abort(st)
		st.closed = true
		st.pageVisible = false
		s.requestCamera(st, false)
		s.logger.Info("セッションを終了しました")
		return nil
	})
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

// Snapshot は最新の状態を返す
// カメラの状態は呼び出し時点の値に置き換える
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()

	snap.Camera = s.opts.Camera.Status()
	return snap
}

// Subscribe は状態が変わるたびにスナップショットを受け取る
// 登録直後に現在の状態が1件届く。セッション終了時にチャンネルはクローズされる
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	if s.subsDone {
		ch <- s.snapshot
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	ch <- s.snapshot
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subsDone = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// publish は状態からスナップショットを作成して購読者に配信する
func (s *Session) publish(st *state) {
	camStatus := s.opts.Camera.Status()
	usable := camStatus != camera.StatusUnavailable

	snap := Snapshot{
		ID:             s.id,
		LandscapeStep:  st.landscapeStep,
		HasFirstShot:   st.firstShot != nil,
		Countdown:      st.countdown,
		Capturing:      st.capturing,
		PreviewVisible: st.preview,
		HasImage:       st.result != nil,
		PageVisible:    st.pageVisible,
		Camera:         camStatus,
		ButtonLabel:    st.buttonLabel(),
		Hint:           st.hint(usable),
		CanCapture:     !st.closed && !st.preview && st.frameID != 0 && !st.busy(),
		CanCancel:      !st.closed && !st.preview && st.landscapeStep > 0,
		Closed:         st.closed,
		UpdatedAt:      s.opts.Now(),
	}
	if st.frameID != 0 {
		id := st.frameID
		snap.SelectedFrame = &id
		snap.Orientation = st.def.Orientation
	}
	if st.lastErr != nil {
		snap.LastError = st.lastErr.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sameState(s.snapshot, snap) && s.version > 0 {
		return
	}
	s.version++
	snap.Version = s.version
	s.snapshot = snap

	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// 遅い購読者には最新の状態だけを残す
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// sameState は時刻とバージョン以外が一致するかを返す
func sameState(a, b Snapshot) bool {
	a.Version, b.Version = 0, 0
	a.UpdatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	if (a.SelectedFrame == nil) != (b.SelectedFrame == nil) {
		return false
	}
	if a.SelectedFrame != nil && *a.SelectedFrame != *b.SelectedFrame {
		return false
	}
	a.SelectedFrame, b.SelectedFrame = nil, nil
	return a == b
}
