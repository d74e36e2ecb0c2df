package composite

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"photobooth/internal/frames"
)

var (
	red         = color.RGBA{R: 255, A: 255}
	blue        = color.RGBA{B: 255, A: 255}
	green       = color.RGBA{G: 255, A: 255}
	black       = color.RGBA{A: 255}
	white       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	transparent = color.RGBA{}
)

func fill(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// splitImage は左半分が left、右半分が right の画像を作成する
func splitImage(w, h int, left, right color.Color) *image.RGBA {
	img := fill(w, h, left)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			img.Set(x, y, right)
		}
	}
	return img
}

// bandOverlay は上端 band ピクセルが不透明な色、それ以外が透明のフレームを作成する
func bandOverlay(w, h, band int, c color.Color) *image.RGBA {
	img := fill(w, h, transparent)
	for y := 0; y < band; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func staticLoader(img image.Image) frames.Loader {
	return frames.LoaderFunc(func(context.Context, string) (image.Image, error) {
		return img, nil
	})
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode failed: %v", err)
	}
	return img
}

func assertColor(t *testing.T, img image.Image, x, y int, want color.Color) {
	t.Helper()
	gr, gg, gb, ga := img.At(x, y).RGBA()
	wr, wg, wb, wa := want.RGBA()
	const tolerance = 0x0300
	for _, pair := range [][2]uint32{{gr, wr}, {gg, wg}, {gb, wb}, {ga, wa}} {
		diff := int64(pair[0]) - int64(pair[1])
		if diff < -tolerance || diff > tolerance {
			t.Errorf("pixel (%d,%d) = %v, want %v", x, y, img.At(x, y), want)
			return
		}
	}
}

var portraitFrame = frames.Definition{ID: 1, ImageRef: "/1.png", Orientation: frames.Portrait}
var landscapeFrame = frames.Definition{ID: 2, ImageRef: "/2.png", Orientation: frames.Landscape}

func TestCoverFit(t *testing.T) {
	testCases := []struct {
		name       string
		srcW, srcH int
		dstW, dstH int
	}{
		{"横長カメラ->縦長", 1280, 720, 1080, 1920},
		{"縦長カメラ->縦長", 720, 1280, 1080, 1920},
		{"小さいカメラ", 320, 240, 1080, 1920},
		{"同じ比率", 640, 720, 640, 720},
		{"横長カメラ->片側", 1920, 1080, 640, 720},
		{"正方形", 500, 500, 1280, 720},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := CoverFit(tc.srcW, tc.srcH, tc.dstW, tc.dstH)

			// レターボックスが生じないこと
			if p.Width < float64(tc.dstW)-1e-9 || p.Height < float64(tc.dstH)-1e-9 {
				t.Errorf("scaled %.2fx%.2f does not cover %dx%d", p.Width, p.Height, tc.dstW, tc.dstH)
			}

			// 少なくとも一方の軸はぴったり一致すること
			exactW := abs(p.Width-float64(tc.dstW)) < 1e-6
			exactH := abs(p.Height-float64(tc.dstH)) < 1e-6
			if !exactW && !exactH {
				t.Errorf("neither axis matches: %+v", p)
			}

			// 中央配置
			if abs(p.X*2+p.Width-float64(tc.dstW)) > 1e-6 || abs(p.Y*2+p.Height-float64(tc.dstH)) > 1e-6 {
				t.Errorf("placement not centered: %+v", p)
			}

			// 縦横比を保つこと
			if abs(p.Width/p.Height-float64(tc.srcW)/float64(tc.srcH)) > 1e-6 {
				t.Errorf("aspect ratio changed: %+v", p)
			}
		})
	}

	if p := CoverFit(0, 0, 100, 100); p.Scale != 0 {
		t.Errorf("Expected zero placement for empty source, got %+v", p)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestPortrait_FixedSize(t *testing.T) {
	layout := DefaultLayout()
	pipeline := NewPipeline(layout, staticLoader(fill(10, 10, transparent)))

	for _, src := range []image.Rectangle{
		image.Rect(0, 0, 640, 480),
		image.Rect(0, 0, 1920, 1080),
		image.Rect(0, 0, 720, 1280),
		image.Rect(10, 20, 330, 260),
	} {
		frame := image.NewRGBA(src)
		result, err := pipeline.Portrait(context.Background(), frame, portraitFrame)
		if err != nil {
			t.Fatalf("Portrait failed: %v", err)
		}

		img := decode(t, result.PNG)
		if img.Bounds().Dx() != 1080 || img.Bounds().Dy() != 1920 {
			t.Errorf("source %v: output %v, want 1080x1920", src, img.Bounds())
		}
		if result.Width != 1080 || result.Height != 1920 {
			t.Errorf("unexpected result size %dx%d", result.Width, result.Height)
		}
	}
}

func TestPortrait_Mirror(t *testing.T) {
	source := splitImage(640, 480, black, white)
	overlay := fill(10, 10, transparent)

	testCases := []struct {
		name        string
		mirror      bool
		left, right color.Color
	}{
		{"ミラーなし", false, black, white},
		{"ミラーあり", true, white, black},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			layout := DefaultLayout()
			layout.Mirror = tc.mirror
			pipeline := NewPipeline(layout, staticLoader(overlay))

			result, err := pipeline.Portrait(context.Background(), source, portraitFrame)
			if err != nil {
				t.Fatalf("Portrait failed: %v", err)
			}
			img := decode(t, result.PNG)

			// 中央付近(縦長に切り抜かれるため左右端から離れた位置)を確認
			assertColor(t, img, 540-100, 960, tc.left)
			assertColor(t, img, 540+100, 960, tc.right)
		})
	}
}

func TestPortrait_OverlayOnTop(t *testing.T) {
	layout := DefaultLayout()
	overlay := bandOverlay(1080, 1920, 100, green)
	pipeline := NewPipeline(layout, staticLoader(overlay))

	result, err := pipeline.Portrait(context.Background(), fill(640, 480, red), portraitFrame)
	if err != nil {
		t.Fatalf("Portrait failed: %v", err)
	}
	img := decode(t, result.PNG)

	// 不透明部分はフレームの色
	assertColor(t, img, 10, 10, green)
	assertColor(t, img, 1070, 90, green)
	// 透明部分は写真がそのまま見える
	assertColor(t, img, 540, 960, red)
	assertColor(t, img, 10, 1910, red)
}

func TestPortrait_OverlayStretched(t *testing.T) {
	layout := DefaultLayout()
	// 小さいフレームでも全面に引き伸ばされる(上端 1/4 が不透明)
	overlay := bandOverlay(100, 100, 25, blue)
	pipeline := NewPipeline(layout, staticLoader(overlay))

	result, err := pipeline.Portrait(context.Background(), fill(640, 480, red), portraitFrame)
	if err != nil {
		t.Fatalf("Portrait failed: %v", err)
	}
	img := decode(t, result.PNG)

	assertColor(t, img, 540, 200, blue)
	assertColor(t, img, 540, 1500, red)
}

func TestPortrait_OverlayLoadFailure(t *testing.T) {
	failing := frames.LoaderFunc(func(context.Context, string) (image.Image, error) {
		return nil, frames.ErrOverlayLoad
	})
	pipeline := NewPipeline(DefaultLayout(), failing)

	_, err := pipeline.Portrait(context.Background(), fill(64, 48, red), portraitFrame)
	if !errors.Is(err, frames.ErrOverlayLoad) {
		t.Fatalf("Expected ErrOverlayLoad, got %v", err)
	}
}

func TestPortrait_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline := NewPipeline(DefaultLayout(), staticLoader(fill(10, 10, transparent)))
	_, err := pipeline.Portrait(ctx, fill(64, 48, red), portraitFrame)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestLandscape_MergeHalves(t *testing.T) {
	layout := DefaultLayout()
	pipeline := NewPipeline(layout, staticLoader(fill(1280, 720, transparent)))
	ctx := context.Background()

	left, err := pipeline.LandscapeShot(ctx, fill(1280, 720, red))
	if err != nil {
		t.Fatalf("LandscapeShot failed: %v", err)
	}
	if left.Bounds().Dx() != 640 || left.Bounds().Dy() != 720 {
		t.Fatalf("Unexpected half size: %v", left.Bounds())
	}

	right, err := pipeline.LandscapeShot(ctx, fill(1280, 720, blue))
	if err != nil {
		t.Fatalf("LandscapeShot failed: %v", err)
	}

	// 2枚目の撮影で1枚目が上書きされていないこと
	assertColor(t, left, 320, 360, red)

	result, err := pipeline.MergeLandscape(ctx, left, right, landscapeFrame)
	if err != nil {
		t.Fatalf("MergeLandscape failed: %v", err)
	}

	img := decode(t, result.PNG)
	if img.Bounds().Dx() != 1280 || img.Bounds().Dy() != 720 {
		t.Fatalf("Unexpected output size: %v", img.Bounds())
	}

	for _, x := range []int{0, 100, 639} {
		assertColor(t, img, x, 360, red)
	}
	for _, x := range []int{640, 1000, 1279} {
		assertColor(t, img, x, 360, blue)
	}
}

func TestLandscape_OverlayOnTop(t *testing.T) {
	layout := DefaultLayout()
	overlay := bandOverlay(1280, 720, 50, green)
	pipeline := NewPipeline(layout, staticLoader(overlay))
	ctx := context.Background()

	left, _ := pipeline.LandscapeShot(ctx, fill(320, 240, red))
	right, _ := pipeline.LandscapeShot(ctx, fill(320, 240, blue))

	result, err := pipeline.MergeLandscape(ctx, left, right, landscapeFrame)
	if err != nil {
		t.Fatalf("MergeLandscape failed: %v", err)
	}
	img := decode(t, result.PNG)

	assertColor(t, img, 100, 10, green)
	assertColor(t, img, 1200, 10, green)
	assertColor(t, img, 100, 400, red)
	assertColor(t, img, 1200, 400, blue)
}

func TestSurface_ResetClears(t *testing.T) {
	surface := NewSurface()
	size := Size{Width: 8, Height: 8}

	canvas := surface.Reset(size)
	canvas.Set(3, 3, red)

	canvas = surface.Reset(size)
	if got := canvas.RGBAAt(3, 3); got != transparent {
		t.Errorf("Expected cleared pixel, got %v", got)
	}

	canvas = surface.Reset(Size{Width: 4, Height: 2})
	if canvas.Bounds().Dx() != 4 || canvas.Bounds().Dy() != 2 {
		t.Errorf("Unexpected size after resize: %v", canvas.Bounds())
	}
}

func TestDrawCover_StaysInsideRect(t *testing.T) {
	dst := fill(100, 50, black)
	r := image.Rect(50, 0, 100, 50)

	DrawCover(dst, r, fill(400, 100, red), true)

	assertColor(t, dst, 25, 25, black)
	assertColor(t, dst, 49, 25, black)
	assertColor(t, dst, 75, 25, red)
}
