package server

import (
	"time"

	"photobooth/internal/booth"
	"photobooth/internal/camera"
	"photobooth/internal/frames"
)

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerInfo はサーバーの待ち受け情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status    string            `json:"status"`
	Server    ServerInfo        `json:"server"`
	Camera    camera.StatusInfo `json:"camera"`
	Frames    int               `json:"frames"`
	Session   *booth.Snapshot   `json:"session,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// FrameInfo はフレーム一覧の1件
type FrameInfo struct {
	frames.Definition
	Shots      int    `json:"shots"`
	OverlayURL string `json:"overlay_url"`
}

// FramesResponse はフレーム一覧のレスポンス
type FramesResponse struct {
	Frames []FrameInfo `json:"frames"`
}

// SelectFrameRequest はフレーム選択のリクエスト
type SelectFrameRequest struct {
	FrameID int `json:"frame_id" binding:"required"`
}

// VisibilityRequest は画面の表示状態のリクエスト
type VisibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Details   *string   `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionEvent はWebSocketで送るイベント
type SessionEvent struct {
	Type     string          `json:"type"`
	Snapshot *booth.Snapshot `json:"snapshot,omitempty"`
}

// ClientMessage はWebSocketでクライアントから受け取るメッセージ
type ClientMessage struct {
	Type    string `json:"type"`
	Visible *bool  `json:"visible,omitempty"`
}
