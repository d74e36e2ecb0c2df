package booth

import "photobooth/internal/frames"

// 撮影ボタンと案内の文言
const (
	labelSelectFrame    = "フレームを選んでください"
	labelCapture        = "撮影する"
	labelLandscapeStart = "撮影を始める (2枚)"
	labelLandscapeLeft  = "1枚目を撮る (左)"
	labelLandscapeRight = "2枚目を撮る (右)"
	labelCountdown      = "撮影中..."
	labelPreview        = "撮り直す"

	hintLandscapeLeft  = "ポーズ1: 左側に写ります。中央から動かないでください"
	hintLandscapeRight = "ポーズ2: 右側に写ります。中央から動かないでください"
	hintNoCamera       = "カメラを利用できません。カメラの接続と権限を確認してください"
)

// buttonLabel は現在の状態に対応するボタンの文言を返す
func (st *state) buttonLabel() string {
	switch {
	case st.preview:
		return labelPreview
	case st.frameID == 0:
		return labelSelectFrame
	case st.busy():
		return labelCountdown
	case st.def.Orientation == frames.Portrait:
		return labelCapture
	}

	switch st.landscapeStep {
	case 1:
		return labelLandscapeLeft
	case 2:
		return labelLandscapeRight
	default:
		return labelLandscapeStart
	}
}

// hint は撮影中に表示する案内を返す
func (st *state) hint(cameraUsable bool) string {
	if !cameraUsable && !st.preview && st.pageVisible {
		return hintNoCamera
	}
	if st.def.Orientation != frames.Landscape {
		return ""
	}
	switch st.landscapeStep {
	case 1:
		return hintLandscapeLeft
	case 2:
		return hintLandscapeRight
	}
	return ""
}
