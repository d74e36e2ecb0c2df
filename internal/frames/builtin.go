package frames

import (
	"fmt"
	"image"

	"github.com/gogpu/gg"
)

const (
	builtinBorderColor = "#1E3A8A"
	builtinAccentColor = "#FACC15"
)

// RenderBuiltin は組み込みフレームを描画する
// 外周に不透明な帯を描き、内側は透明のまま残す
// 横向きの場合は中央に左右を仕切る帯を追加する
func RenderBuiltin(orientation Orientation) (image.Image, error) {
	var width, height int
	switch orientation {
	case Portrait:
		width, height = 1080, 1920
	case Landscape:
		width, height = 1280, 720
	default:
		return nil, fmt.Errorf("組み込みフレームが存在しない向きです: %q", orientation)
	}

	dc := gg.NewContext(width, height)
	defer func() {
		_ = dc.Close()
	}()
	dc.Clear()

	w := float64(width)
	h := float64(height)
	band := float64(min(width, height)) / 16

	dc.SetHexColor(builtinBorderColor)
	dc.DrawRectangle(0, 0, w, band)
	dc.DrawRectangle(0, h-band, w, band)
	dc.DrawRectangle(0, band, band, h-2*band)
	dc.DrawRectangle(w-band, band, band, h-2*band)
	if orientation == Landscape {
		dc.DrawRectangle(w/2-band/4, band, band/2, h-2*band)
	}
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("フレームの描画に失敗: %w", err)
	}

	dc.SetHexColor(builtinAccentColor)
	dc.SetLineWidth(band / 6)
	dc.DrawRectangle(band/2, band/2, w-band, h-band)
	if err := dc.Stroke(); err != nil {
		return nil, fmt.Errorf("フレームの描画に失敗: %w", err)
	}

	return dc.Image(), nil
}
