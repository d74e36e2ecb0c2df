package composite

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var encoder = png.Encoder{CompressionLevel: png.BestSpeed}

// DrawCover は src を dst の矩形 r にカバーフィットで描画する
// mirror が true の場合は r の中心を軸に左右反転する
// r の外側には描画しない
func DrawCover(dst *image.RGBA, r image.Rectangle, src image.Image, mirror bool) {
	sb := src.Bounds()
	if sb.Empty() || r.Empty() {
		return
	}

	p := CoverFit(sb.Dx(), sb.Dy(), r.Dx(), r.Dy())

	// 元画像座標 -> 描画先座標
	originX := float64(r.Min.X) + p.X - p.Scale*float64(sb.Min.X)
	originY := float64(r.Min.Y) + p.Y - p.Scale*float64(sb.Min.Y)
	m := f64.Aff3{
		p.Scale, 0, originX,
		0, p.Scale, originY,
	}
	if mirror {
		m[0] = -p.Scale
		m[2] = float64(2*r.Min.X+r.Dx()) - originX
	}

	sub, ok := dst.SubImage(r).(*image.RGBA)
	if !ok {
		return
	}
	draw.ApproxBiLinear.Transform(sub, m, src, sb, draw.Src, nil)
}

// DrawOverlay はフレーム画像を r 全面に引き伸ばして重ねる
// 透明部分は下の写真がそのまま見える
func DrawOverlay(dst *image.RGBA, r image.Rectangle, overlay image.Image) {
	ob := overlay.Bounds()
	if ob.Size() == r.Size() {
		draw.Draw(dst, r, overlay, ob.Min, draw.Over)
		return
	}
	draw.ApproxBiLinear.Scale(dst, r, overlay, ob, draw.Over, nil)
}

// place は画像を r にそのまま(サイズが違う場合は拡縮して)配置する
func place(dst *image.RGBA, r image.Rectangle, src image.Image) {
	sb := src.Bounds()
	if sb.Size() == r.Size() {
		draw.Draw(dst, r, src, sb.Min, draw.Src)
		return
	}
	draw.ApproxBiLinear.Scale(dst, r, src, sb, draw.Src, nil)
}

// EncodePNG は画像をPNGにエンコードする
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("PNGエンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}
