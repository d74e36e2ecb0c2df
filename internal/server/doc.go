// Package server は、撮影ブースのHTTP APIとWebSocket通信を管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// WebSocket接続の管理、埋め込みページの配信を担当します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - 撮影セッション操作のAPI（フレーム選択、撮影、撮り直し、保存）
//   - カメラのライブビュー（MJPEG）の配信
//   - セッション状態の変化のWebSocket配信
//   - 静的ファイル（HTML/CSS/JS）の配信
//
// 仕様:
//   - ルーティングはgin、WebSocketはgorilla/websocketを使用
//   - エラーは {error, message, details, timestamp} のJSONで返す
//   - シャットダウン時はセッションを終了してカメラを解放する
package server
