// Package composite は撮影画像とフレームの合成を担う
//
// # 責務
// - カバーフィット(歪ませずに全面を覆い、はみ出しを中央で切り取る)による描画
// - 左右反転(自撮り向けのミラー表示)
// - 横向きフレーム用の2枚撮りの左右結合
// - フレーム画像の最前面への重ね合わせ
// - PNGエンコード
//
// # 仕様
// - 出力解像度は固定値(縦 1080x1920 / 横 1280x720、横の片側は 640x720)
// - 描画面(Surface)は使い回し、合成の前に必ずリサイズまたはクリアする
// - 各工程は順番に実行し、工程の間でキャンセルを確認する
// - 写真より先にフレームが描かれることはない
package composite
