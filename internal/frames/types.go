package frames

import "fmt"

// Orientation はフレームの向きを表す
type Orientation string

const (
	Portrait  Orientation = "portrait"  // 縦向き(1枚撮り)
	Landscape Orientation = "landscape" // 横向き(2枚撮りを左右に結合)
)

// Valid は向きが定義済みの値かを返す
func (o Orientation) Valid() bool {
	return o == Portrait || o == Landscape
}

// Definition はフレーム定義
type Definition struct {
	ID          int         `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	ImageRef    string      `yaml:"image" json:"image_ref"`
	Orientation Orientation `yaml:"orientation" json:"orientation"`
}

// Shots は撮影に必要な枚数を返す
func (d Definition) Shots() int {
	if d.Orientation == Landscape {
		return 2
	}
	return 1
}

func (d Definition) validate() error {
	if d.ID <= 0 {
		return fmt.Errorf("無効なフレームID: %d", d.ID)
	}
	if d.ImageRef == "" {
		return fmt.Errorf("フレーム %d の画像パスが空です", d.ID)
	}
	if !d.Orientation.Valid() {
		return fmt.Errorf("フレーム %d の向きが無効です: %q", d.ID, d.Orientation)
	}
	return nil
}
