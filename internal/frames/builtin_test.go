package frames

import "testing"

func TestRenderBuiltin(t *testing.T) {
	testCases := []struct {
		orientation Orientation
		width       int
		height      int
	}{
		{Portrait, 1080, 1920},
		{Landscape, 1280, 720},
	}

	for _, tc := range testCases {
		t.Run(string(tc.orientation), func(t *testing.T) {
			img, err := RenderBuiltin(tc.orientation)
			if err != nil {
				t.Fatalf("RenderBuiltin failed: %v", err)
			}

			b := img.Bounds()
			if b.Dx() != tc.width || b.Dy() != tc.height {
				t.Fatalf("Unexpected size: %v", b)
			}

			// 外周は不透明
			if _, _, _, a := img.At(b.Min.X+5, b.Min.Y+5).RGBA(); a != 0xffff {
				t.Errorf("Border pixel should be opaque, alpha=%d", a)
			}

			// 写真が見える領域は透明
			if _, _, _, a := img.At(b.Min.X+tc.width/4, b.Min.Y+tc.height/2).RGBA(); a != 0 {
				t.Errorf("Inner pixel should be transparent, alpha=%d", a)
			}
		})
	}

	if _, err := RenderBuiltin("square"); err == nil {
		t.Error("Expected error for unknown orientation")
	}
}
