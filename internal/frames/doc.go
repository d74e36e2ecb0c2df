// Package frames はフォトフレーム(オーバーレイ)の定義と画像の読み込みを担う
//
// # 責務
// - 利用可能なフレーム定義のカタログ(読み取り専用)
// - オーバーレイ画像アセットのデコード(タイムアウト付き)
// - アセットが無い環境向けの組み込みフレームの生成
//
// # 仕様
// - カタログはプロセス起動時に一度だけ構築され、以後変更されない
// - デフォルトは縦向き(id=1, /1.png)と横向き(id=2, /2.png)の2種類
// - YAMLファイルからカタログを読み込むことも可能
// - PNG / JPEG / WebP のオーバーレイをサポート
package frames
