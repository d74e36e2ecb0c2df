package composite

import "math"

// Size は画像サイズ
type Size struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Valid はサイズが正の値かを返す
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Layout は出力解像度の設定
type Layout struct {
	Portrait  Size `yaml:"portrait" json:"portrait"`
	Landscape Size `yaml:"landscape" json:"landscape"`
	Mirror    bool `yaml:"mirror" json:"mirror"`
}

// DefaultLayout はデフォルトの出力解像度を返す
func DefaultLayout() Layout {
	return Layout{
		Portrait:  Size{Width: 1080, Height: 1920},
		Landscape: Size{Width: 1280, Height: 720},
		Mirror:    true,
	}
}

// Half は横向きフレームの片側サイズを返す
func (l Layout) Half() Size {
	return Size{Width: l.Landscape.Width / 2, Height: l.Landscape.Height}
}

// Placement はカバーフィットの配置結果
// X, Y は描画先矩形の左上からのオフセット(負の値ははみ出し)
type Placement struct {
	X, Y          float64
	Width, Height float64
	Scale         float64
}

// CoverFit は元画像を描画先に歪みなく敷き詰める配置を計算する
func CoverFit(srcW, srcH, dstW, dstH int) Placement {
	if srcW <= 0 || srcH <= 0 {
		return Placement{}
	}

	scale := math.Max(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	w := float64(srcW) * scale
	h := float64(srcH) * scale

	return Placement{
		X:      (float64(dstW) - w) / 2,
		Y:      (float64(dstH) - h) / 2,
		Width:  w,
		Height: h,
		Scale:  scale,
	}
}
