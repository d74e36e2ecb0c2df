package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"photobooth/internal/booth"
)

const (
	// writeWait は1回の書き込みの待ち時間
	writeWait = 10 * time.Second

	// pongWait はpongを待つ時間
	pongWait = 60 * time.Second

	// pingPeriod は pongWait より短くする
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize はクライアントから受け取るメッセージの上限
	maxMessageSize = 4096
)

// イベントの種類
const (
	eventSnapshot = "snapshot"
	eventClosed   = "closed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// キオスク端末のページからのみ接続される
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleSessionWebSocket はセッション状態の変化をWebSocketで配信する
// クライアントからは画面の表示状態を受け取る
func (s *Server) handleSessionWebSocket(c *gin.Context) {
	sess, ok := s.currentSession(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade がエラーレスポンスを書き込み済み
		s.logger.Warn("WebSocketの接続に失敗しました", "error", err)
		return
	}

	client := &sessionClient{
		conn:    conn,
		session: sess,
		logger:  s.logger.With("session", sess.ID(), "remote", c.Request.RemoteAddr),
	}
	client.run(c.Request.Context())
}

// sessionClient は1つのWebSocket接続
// 書き込みは writePump のゴルーチンだけが行う
type sessionClient struct {
	conn    *websocket.Conn
	session *booth.Session
	logger  *slog.Logger
}

func (sc *sessionClient) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		sc.readPump(ctx)
	}()

	sc.writePump(ctx, readDone)
	sc.conn.Close()
	<-readDone
}

// readPump はクライアントのメッセージを読み、切断とpongを検知する
func (sc *sessionClient) readPump(ctx context.Context) {
	sc.conn.SetReadLimit(maxMessageSize)
	sc.conn.SetReadDeadline(time.Now().Add(pongWait))
	sc.conn.SetPongHandler(func(string) error {
		return sc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := sc.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sc.logger.Debug("WebSocketの読み込みを終了します", "error", err)
			}
			return
		}

		switch msg.Type {
		case "visibility":
			if msg.Visible == nil {
				continue
			}
			if err := sc.session.SetVisibility(ctx, *msg.Visible); err != nil {
				sc.logger.Warn("表示状態の更新に失敗しました", "error", err)
			}
		default:
			sc.logger.Debug("不明なメッセージ", "type", msg.Type)
		}
	}
}

// writePump はスナップショットとpingを送る
func (sc *sessionClient) writePump(ctx context.Context, readDone <-chan struct{}) {
	snapshots, unsubscribe := sc.session.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sc.writeClose(websocket.CloseGoingAway)
			return

		case <-readDone:
			return

		case snap, ok := <-snapshots:
			if !ok {
				// セッションが終了した
				sc.write(SessionEvent{Type: eventClosed})
				sc.writeClose(websocket.CloseNormalClosure)
				return
			}
			if err := sc.write(SessionEvent{Type: eventSnapshot, Snapshot: &snap}); err != nil {
				return
			}

		case <-ticker.C:
			sc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (sc *sessionClient) write(event SessionEvent) error {
	sc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return sc.conn.WriteJSON(event)
}

func (sc *sessionClient) writeClose(code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = sc.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
