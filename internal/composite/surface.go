package composite

import (
	"image"
	"sync"
)

// Surface は使い回されるオフスクリーン描画面
type Surface struct {
	mu  sync.Mutex
	img *image.RGBA
}

// NewSurface は新しいSurfaceを作成する
func NewSurface() *Surface {
	return &Surface{}
}

// Reset は描画面を指定サイズに揃え、全面をクリアして返す
// サイズが変わる場合は再確保する
func (s *Surface) Reset(size Size) *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	rect := image.Rect(0, 0, size.Width, size.Height)
	if s.img == nil || s.img.Rect != rect {
		s.img = image.NewRGBA(rect)
		return s.img
	}

	clear(s.img.Pix)
	return s.img
}

// Clone は描画面の内容を複製して返す
func (s *Surface) Clone() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img == nil {
		return nil
	}
	return cloneRGBA(s.img)
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}
