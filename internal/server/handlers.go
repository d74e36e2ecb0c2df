package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"photobooth/internal/booth"
	"photobooth/internal/frames"
)

// handleHealth はヘルスチェックエンドポイント
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// handleStatus はシステム状態取得エンドポイント
func (s *Server) handleStatus(c *gin.Context) {
	response := StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: s.config.Server.Host,
			Port: s.config.Server.Port,
		},
		Timestamp: time.Now(),
	}
	if s.deps.Camera != nil {
		response.Camera = s.deps.Camera.Info()
	}
	if s.deps.Catalog != nil {
		response.Frames = s.deps.Catalog.Len()
	}
	if sess, err := s.deps.Booth.Current(); err == nil {
		snap := sess.Snapshot()
		response.Session = &snap
	}

	c.JSON(http.StatusOK, response)
}

// handleListFrames はフレーム一覧取得エンドポイント
func (s *Server) handleListFrames(c *gin.Context) {
	defs := s.deps.Catalog.List()
	list := make([]FrameInfo, 0, len(defs))
	for _, def := range defs {
		list = append(list, FrameInfo{
			Definition: def,
			Shots:      def.Shots(),
			OverlayURL: fmt.Sprintf("/api/frames/%d/overlay", def.ID),
		})
	}

	c.JSON(http.StatusOK, FramesResponse{Frames: list})
}

// handleFrameOverlay はフレーム画像をPNGで返す
func (s *Server) handleFrameOverlay(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_frame_id", "フレームIDが不正です", err)
		return
	}

	def, ok := s.deps.Catalog.Get(id)
	if !ok {
		s.respondError(c, booth.ErrUnknownFrame)
		return
	}

	img, err := s.deps.Overlays.Load(c.Request.Context(), def.ImageRef)
	if err != nil {
		s.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		s.respondError(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// handleOpenSession は画面訪問としてセッションを開始する
func (s *Server) handleOpenSession(c *gin.Context) {
	sess, err := s.deps.Booth.Open(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.logger.Info("セッションを開始しました", "session", sess.ID())
	c.JSON(http.StatusCreated, sess.Snapshot())
}

// handleGetSession は現在のセッション状態を返す
func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// handleSelectFrame はフレームを選択する
func (s *Server) handleSelectFrame(c *gin.Context) {
	var req SelectFrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "frame_id を指定してください", err)
		return
	}

	s.withSession(c, http.StatusOK, func(ctx context.Context, sess *booth.Session) error {
		return sess.SelectFrame(ctx, req.FrameID)
	})
}

// handleCapture は撮影ボタンの操作
// カウントダウンと合成は非同期に進むため 202 を返す
func (s *Server) handleCapture(c *gin.Context) {
	s.withSession(c, http.StatusAccepted, func(ctx context.Context, sess *booth.Session) error {
		return sess.Capture(ctx)
	})
}

// handleCancel は横向きの撮影シーケンスを中止する
func (s *Server) handleCancel(c *gin.Context) {
	s.withSession(c, http.StatusOK, func(ctx context.Context, sess *booth.Session) error {
		return sess.CancelSequence(ctx)
	})
}

// handleRetake は撮り直し
func (s *Server) handleRetake(c *gin.Context) {
	s.withSession(c, http.StatusOK, func(ctx context.Context, sess *booth.Session) error {
		return sess.Retake(ctx)
	})
}

// handleVisibility は画面の表示状態の変化を受け取る
func (s *Server) handleVisibility(c *gin.Context) {
	var req VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "visible を指定してください", err)
		return
	}

	s.withSession(c, http.StatusOK, func(ctx context.Context, sess *booth.Session) error {
		return sess.SetVisibility(ctx, *req.Visible)
	})
}

// handleEnd は完了ボタンまたは画面遷移
func (s *Server) handleEnd(c *gin.Context) {
	s.withSession(c, http.StatusOK, func(ctx context.Context, sess *booth.Session) error {
		return sess.End(ctx)
	})
}

// handlePreview は合成結果をそのまま返す
func (s *Server) handlePreview(c *gin.Context) {
	sess, ok := s.currentSession(c)
	if !ok {
		return
	}

	result, err := sess.Preview(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", result.PNG)
}

// handleDownload は合成結果を添付ファイルとして返す
func (s *Server) handleDownload(c *gin.Context) {
	sess, ok := s.currentSession(c)
	if !ok {
		return
	}

	d, err := sess.Download(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, d.ContentType, d.Data)
}

// handleCameraStream はライブビューをMJPEGで配信する
func (s *Server) handleCameraStream(c *gin.Context) {
	streamMJPEG(c, s.deps.Camera.Subscribe)
}

// handleIndex は埋め込みのページを返す
func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", getIndexHTML())
}

// ヘルパー関数

// currentSession は現在のセッションを返す。無い場合はエラーレスポンスを書く
func (s *Server) currentSession(c *gin.Context) (*booth.Session, bool) {
	sess, err := s.deps.Booth.Current()
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return sess, true
}

// withSession は現在のセッションに操作を適用し、成功時はスナップショットを返す
func (s *Server) withSession(c *gin.Context, status int, fn func(ctx context.Context, sess *booth.Session) error) {
	sess, ok := s.currentSession(c)
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), sess); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(status, sess.Snapshot())
}

// errorStatus はエラーをHTTPステータスとエラーコードに変換する
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, booth.ErrNoFrameSelected):
		return http.StatusBadRequest, "no_frame_selected"
	case errors.Is(err, booth.ErrUnknownFrame):
		return http.StatusNotFound, "frame_not_found"
	case errors.Is(err, booth.ErrCaptureInProgress):
		return http.StatusConflict, "capture_in_progress"
	case errors.Is(err, booth.ErrPreviewActive):
		return http.StatusConflict, "preview_active"
	case errors.Is(err, booth.ErrNoImage):
		return http.StatusNotFound, "no_image"
	case errors.Is(err, booth.ErrNoSession):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, booth.ErrSessionClosed):
		return http.StatusGone, "session_closed"
	case errors.Is(err, frames.ErrOverlayLoad):
		return http.StatusBadGateway, "overlay_load_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// respondError はエラーに応じたレスポンスを書く
func (s *Server) respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("リクエストの処理に失敗しました", "path", c.FullPath(), "error", err)
		writeError(c, status, code, "処理に失敗しました", err)
		return
	}
	writeError(c, status, code, err.Error(), nil)
}

// writeError はエラーレスポンスを書く
func writeError(c *gin.Context, status int, code, message string, cause error) {
	response := ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	}
	if cause != nil {
		response.Details = stringPtr(cause.Error())
	}
	c.AbortWithStatusJSON(status, response)
}

// stringPtr は文字列のポインタを返すヘルパー関数
func stringPtr(s string) *string {
	return &s
}

// streamMJPEG はMJPEGストリームを配信する
// クライアントが切断するかサーバーが停止するまで戻らない
func streamMJPEG(c *gin.Context, subscribe func() (<-chan []byte, func())) {
	// レスポンスライターを取得
	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	frameChan, unsubscribe := subscribe()
	defer unsubscribe()

	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	flusher.Flush()

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			return

		case frame, ok := <-frameChan:
			if !ok {
				return
			}
			if err := writeMJPEGFrame(writer, frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeMJPEGFrame はマルチパートの1フレームを書き込む
func writeMJPEGFrame(w io.Writer, frame []byte) error {
	header := fmt.Sprintf("--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
