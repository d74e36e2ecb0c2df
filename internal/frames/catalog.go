package frames

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog は読み取り専用のフレーム一覧
type Catalog struct {
	frames []Definition
	byID   map[int]Definition
}

// catalogFile はカタログYAMLファイルの形式
type catalogFile struct {
	Frames []Definition `yaml:"frames"`
}

// DefaultDefinitions は組み込みのフレーム定義を返す
func DefaultDefinitions() []Definition {
	return []Definition{
		{ID: 1, Name: "Frame Portrait", ImageRef: "/1.png", Orientation: Portrait},
		{ID: 2, Name: "Frame Landscape", ImageRef: "/2.png", Orientation: Landscape},
	}
}

// NewCatalog は定義一覧からカタログを作成する
func NewCatalog(defs []Definition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("フレーム定義が空です")
	}

	c := &Catalog{
		frames: make([]Definition, 0, len(defs)),
		byID:   make(map[int]Definition, len(defs)),
	}

	for _, def := range defs {
		if err := def.validate(); err != nil {
			return nil, err
		}
		if _, exists := c.byID[def.ID]; exists {
			return nil, fmt.Errorf("フレームIDが重複しています: %d", def.ID)
		}
		c.byID[def.ID] = def
		c.frames = append(c.frames, def)
	}

	sort.SliceStable(c.frames, func(i, j int) bool {
		return c.frames[i].ID < c.frames[j].ID
	})

	return c, nil
}

// LoadCatalogFile はYAMLファイルからカタログを読み込む
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("カタログファイルの読み込みに失敗: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("カタログファイルの解析に失敗: %w", err)
	}

	return NewCatalog(file.Frames)
}

// List はフレーム一覧のコピーを返す
func (c *Catalog) List() []Definition {
	result := make([]Definition, len(c.frames))
	copy(result, c.frames)
	return result
}

// Get は指定されたIDのフレームを返す
func (c *Catalog) Get(id int) (Definition, bool) {
	def, ok := c.byID[id]
	return def, ok
}

// Len はフレーム数を返す
func (c *Catalog) Len() int {
	return len(c.frames)
}
