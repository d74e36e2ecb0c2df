package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"photobooth/internal/booth"
	"photobooth/internal/camera"
	"photobooth/internal/config"
	"photobooth/internal/frames"
	"photobooth/internal/logging"
)

// Deps はサーバーが扱うブースの構成要素
type Deps struct {
	Booth    *booth.Booth
	Camera   *camera.Session
	Catalog  *frames.Catalog
	Overlays frames.Loader
}

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	deps       Deps
	engine     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger

	// ストリーミング中のハンドラをシャットダウン時に終わらせる
	baseCtx    context.Context
	cancelBase context.CancelFunc

	addrMu sync.Mutex
	addr   net.Addr

	shutdownOnce sync.Once
	shutdownErr  error
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, deps Deps) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:     cfg,
		deps:       deps,
		logger:     logging.Component("server"),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}

	s.engine = s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      s.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return s.baseCtx },
	}

	return s
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr はリッスン中のアドレスを返す。起動前は nil
func (s *Server) Addr() net.Addr {
	s.addrMu.Lock()
	defer s.addrMu.Unlock()
	return s.addr
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET("/health", s.handleHealth)

	api := engine.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/frames", s.handleListFrames)
	api.GET("/frames/:id/overlay", s.handleFrameOverlay)

	session := api.Group("/session")
	session.POST("", s.handleOpenSession)
	session.GET("", s.handleGetSession)
	session.POST("/frame", s.handleSelectFrame)
	session.POST("/capture", s.handleCapture)
	session.POST("/cancel", s.handleCancel)
	session.POST("/retake", s.handleRetake)
	session.POST("/visibility", s.handleVisibility)
	session.POST("/end", s.handleEnd)
	session.GET("/preview", s.handlePreview)
	session.GET("/download", s.handleDownload)

	api.GET("/camera/stream", s.handleCameraStream)

	engine.GET("/ws/session", s.handleSessionWebSocket)

	engine.GET("/", s.handleIndex)
	engine.StaticFS("/assets", GetAssetsFS())

	return engine
}

// requestLogger はリクエストをslogで記録するミドルウェア
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug("リクエスト",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

// Start はサーバーを起動する
// コンテキストのキャンセルかシグナルの受信でシャットダウンする
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}

	s.addrMu.Lock()
	s.addr = ln.Addr()
	s.addrMu.Unlock()

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		s.logger.Info("HTTPサーバーを起動しています", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		s.logger.Info("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.Info("シグナルを受信しました", "signal", sig.String())
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
// 撮影セッションを終了してカメラを解放してからHTTPサーバーを止める
func (s *Server) Shutdown() error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown()
	})
	return s.shutdownErr
}

func (s *Server) shutdown() error {
	s.logger.Info("サーバーをシャットダウンしています...")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// MJPEGとWebSocketのハンドラを終わらせる
	s.cancelBase()

	var errs []error
	if s.deps.Booth != nil {
		if err := s.deps.Booth.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("セッションの終了に失敗: %w", err))
		}
	}
	if s.deps.Camera != nil {
		if err := s.deps.Camera.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("カメラの停止に失敗: %w", err))
		}
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("サーバーのシャットダウンに失敗: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.Info("サーバーが正常にシャットダウンされました")
	return nil
}
