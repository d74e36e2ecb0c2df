package composite

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"photobooth/internal/frames"
)

// Result は合成結果
type Result struct {
	PNG        []byte    `json:"-"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	ComposedAt time.Time `json:"composed_at"`
}

// step は合成処理の1工程
type step struct {
	name string
	run  func(ctx context.Context) error
}

// runSteps は工程を順番に実行する
// 各工程の前にキャンセルを確認し、最初のエラーで中断する
func runSteps(ctx context.Context, steps ...step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// Pipeline は撮影画像とフレームを合成する
// 描画面は1つを使い回すため、同時に1つの合成のみを実行する
type Pipeline struct {
	mu      sync.Mutex
	layout  Layout
	loader  frames.Loader
	surface *Surface
	now     func() time.Time
}

// NewPipeline は新しいPipelineを作成する
func NewPipeline(layout Layout, loader frames.Loader) *Pipeline {
	return &Pipeline{
		layout:  layout,
		loader:  loader,
		surface: NewSurface(),
		now:     time.Now,
	}
}

// Layout は出力解像度の設定を返す
func (p *Pipeline) Layout() Layout {
	return p.layout
}

// Portrait は縦向きフレームの1枚撮りを合成する
// 写真 -> フレーム -> エンコードの順に処理する
func (p *Pipeline) Portrait(ctx context.Context, frame image.Image, def frames.Definition) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	size := p.layout.Portrait
	var (
		canvas  *image.RGBA
		overlay image.Image
		data    []byte
	)

	err := runSteps(ctx,
		step{"描画面の準備", func(context.Context) error {
			canvas = p.surface.Reset(size)
			return nil
		}},
		step{"写真の描画", func(context.Context) error {
			DrawCover(canvas, canvas.Rect, frame, p.layout.Mirror)
			return nil
		}},
		step{"フレームの読み込み", func(ctx context.Context) error {
			var err error
			overlay, err = p.loader.Load(ctx, def.ImageRef)
			return err
		}},
		step{"フレームの描画", func(context.Context) error {
			DrawOverlay(canvas, canvas.Rect, overlay)
			return nil
		}},
		step{"エンコード", func(context.Context) error {
			var err error
			data, err = EncodePNG(canvas)
			return err
		}},
	)
	if err != nil {
		return Result{}, err
	}

	return Result{PNG: data, Width: size.Width, Height: size.Height, ComposedAt: p.now()}, nil
}

// LandscapeShot は横向きフレームの片側1枚を描画して返す
// 戻り値は描画面の複製で、次の合成の影響を受けない
func (p *Pipeline) LandscapeShot(ctx context.Context, frame image.Image) (*image.RGBA, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var shot *image.RGBA

	err := runSteps(ctx,
		step{"描画面の準備", func(context.Context) error {
			canvas := p.surface.Reset(p.layout.Half())
			DrawCover(canvas, canvas.Rect, frame, p.layout.Mirror)
			return nil
		}},
		step{"片側画像の保持", func(context.Context) error {
			shot = p.surface.Clone()
			return nil
		}},
	)
	if err != nil {
		return nil, err
	}
	return shot, nil
}

// MergeLandscape は左右2枚を結合してフレームを重ねる
// 左 -> 右 -> フレーム -> エンコードの順に処理する
func (p *Pipeline) MergeLandscape(ctx context.Context, left, right image.Image, def frames.Definition) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	size := p.layout.Landscape
	half := p.layout.Half()
	var (
		canvas  *image.RGBA
		overlay image.Image
		data    []byte
	)

	leftRect := image.Rect(0, 0, half.Width, half.Height)
	rightRect := image.Rect(half.Width, 0, size.Width, size.Height)

	err := runSteps(ctx,
		step{"描画面の準備", func(context.Context) error {
			canvas = p.surface.Reset(size)
			return nil
		}},
		step{"左側の描画", func(context.Context) error {
			place(canvas, leftRect, left)
			return nil
		}},
		step{"右側の描画", func(context.Context) error {
			place(canvas, rightRect, right)
			return nil
		}},
		step{"フレームの読み込み", func(ctx context.Context) error {
			var err error
			overlay, err = p.loader.Load(ctx, def.ImageRef)
			return err
		}},
		step{"フレームの描画", func(context.Context) error {
			DrawOverlay(canvas, canvas.Rect, overlay)
			return nil
		}},
		step{"エンコード", func(context.Context) error {
			var err error
			data, err = EncodePNG(canvas)
			return err
		}},
	)
	if err != nil {
		return Result{}, err
	}

	return Result{PNG: data, Width: size.Width, Height: size.Height, ComposedAt: p.now()}, nil
}
