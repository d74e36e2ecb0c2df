package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // JPEGオーバーレイ
	_ "image/png"  // PNGオーバーレイ
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/webp" // WebPオーバーレイ
)

// BuiltinPrefix は組み込みフレームを指す画像パスの接頭辞
const BuiltinPrefix = "builtin:"

var (
	// ErrOverlayLoad はオーバーレイ画像の読み込み失敗を表す
	ErrOverlayLoad = errors.New("オーバーレイ画像の読み込みに失敗")

	// ErrAssetNotFound はアセットが存在しないことを表す
	ErrAssetNotFound = errors.New("アセットが見つかりません")
)

// Loader は画像パスからラスター画像を取得する
type Loader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// LoaderFunc は関数をLoaderとして扱うアダプタ
type LoaderFunc func(ctx context.Context, ref string) (image.Image, error)

// Load はLoaderFuncを呼び出す
func (f LoaderFunc) Load(ctx context.Context, ref string) (image.Image, error) {
	return f(ctx, ref)
}

// AssetLoader はファイルシステム上のアセットをデコードするLoader実装
type AssetLoader struct {
	fsys     fs.FS
	timeout  time.Duration
	fallback map[string]Orientation

	mu    sync.RWMutex
	cache map[string]image.Image
}

// AssetOption はAssetLoaderのオプション
type AssetOption func(*AssetLoader)

// WithTimeout はデコードのタイムアウトを設定する
func WithTimeout(timeout time.Duration) AssetOption {
	return func(l *AssetLoader) {
		l.timeout = timeout
	}
}

// WithBuiltinFallback はアセットが無い場合に組み込みフレームで代替する
func WithBuiltinFallback(defs []Definition) AssetOption {
	return func(l *AssetLoader) {
		for _, def := range defs {
			l.fallback[def.ImageRef] = def.Orientation
		}
	}
}

// NewAssetLoader はディレクトリを起点とするAssetLoaderを作成する
func NewAssetLoader(dir string, opts ...AssetOption) *AssetLoader {
	return NewFSLoader(os.DirFS(dir), opts...)
}

// NewFSLoader は任意のfs.FSを起点とするAssetLoaderを作成する
func NewFSLoader(fsys fs.FS, opts ...AssetOption) *AssetLoader {
	l := &AssetLoader{
		fsys:     fsys,
		timeout:  5 * time.Second,
		fallback: make(map[string]Orientation),
		cache:    make(map[string]image.Image),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load は画像パスをデコードして返す
// デコード結果はキャッシュされる
func (l *AssetLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	l.mu.RLock()
	img, ok := l.cache[ref]
	l.mu.RUnlock()
	if ok {
		return img, nil
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	type result struct {
		img image.Image
		err error
	}
	done := make(chan result, 1)

	go func() {
		img, err := l.decode(ref)
		done <- result{img: img, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrOverlayLoad, ref, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrOverlayLoad, ref, res.err)
		}

		l.mu.Lock()
		l.cache[ref] = res.img
		l.mu.Unlock()

		return res.img, nil
	}
}

// decode は実際のデコード処理を行う
func (l *AssetLoader) decode(ref string) (image.Image, error) {
	if orientation, ok := strings.CutPrefix(ref, BuiltinPrefix); ok {
		return RenderBuiltin(Orientation(orientation))
	}

	name, err := assetName(ref)
	if err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if orientation, ok := l.fallback[ref]; ok {
				return RenderBuiltin(orientation)
			}
			return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
		}
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("画像のデコードに失敗: %w", err)
	}

	return img, nil
}

// assetName は "/1.png" 形式の画像パスをfs.FS用の名前に変換する
func assetName(ref string) (string, error) {
	name := path.Clean("/" + strings.TrimSpace(ref))
	name = strings.TrimPrefix(name, "/")
	if name == "" || name == "." || !fs.ValidPath(name) {
		return "", fmt.Errorf("無効な画像パス: %q", ref)
	}
	return name, nil
}
