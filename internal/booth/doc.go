// Package booth は撮影セッションの状態遷移とプレビュー・保存を担う
//
// # 責務
// - フレーム選択、カウントダウン、撮影、合成、プレビューまでの一連の流れ
// - 横向きフレームの2枚撮り(待機 -> 1枚目 -> 2枚目 -> 結合)
// - 撮り直し・中断・画面の表示切り替えに伴うカメラの開始と停止
// - 合成結果のプレビューとダウンロード
//
// # 仕様
// - セッションの状態は1つのゴルーチンだけが所有し、操作はメッセージとして渡す
// - カメラの開始と停止は専用のワーカーで直列に実行し、状態ループを止めない
// - 撮影は同時に1つだけ。撮り直し等で破棄された撮影の完了通知は世代番号で捨てる
// - プレビュー表示中と画面が非表示の間はカメラを停止する
package booth
