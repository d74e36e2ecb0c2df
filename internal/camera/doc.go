// Package camera ブース画面のカメラストリームを管理する
//
// # 責務
// - 向き(facing mode)と解像度の条件からストリームを要求する
// - ストリームのライブビュー配信と撮影用の最新フレーム保持
// - 画面の表示・非表示やプレビュー表示に合わせた開始・停止
// - V4L2デバイスの検出と実名取得
//
// # 仕様
// - Session: ストリームは高々1つ。開始と停止は直列に実行する
// - 権限拒否・デバイスなしは致命的エラーにせず unavailable 状態にする
// - VideoSource: usb_camera(ffmpeg経由のV4L2) と test_pattern(合成映像)
// - V4L2 Capturer: MJPEGパイプをSOI/EOIマーカーでフレームに分割する
//
// # 前提要件
//   - v4l-utils: カメラ名の取得とデバイス検出に使用
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - ffmpeg: 画像キャプチャとストリーミングに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
