package camera

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// SourceConfig はソース作成設定
type SourceConfig struct {
	Device      string                // 明示的なデバイスパス
	Devices     map[FacingMode]string // 向きごとのデバイスパス
	Constraints Constraints           // 要求条件
}

// VideoSourceFactory はソース作成ファクトリー
type VideoSourceFactory interface {
	CreateSource(ctx context.Context, sourceType VideoSourceType, config SourceConfig) (VideoSource, error)
	SupportedTypes() []VideoSourceType
}

// SourceCreator はソース作成関数の型
type SourceCreator func(ctx context.Context, config SourceConfig) (VideoSource, error)

// DefaultVideoSourceFactory は標準実装
type DefaultVideoSourceFactory struct {
	creators  map[VideoSourceType]SourceCreator
	discovery Discovery
}

// NewVideoSourceFactory は新しいファクトリーを作成する
// discovery はデバイス未指定時のUSBカメラ検出に使う
func NewVideoSourceFactory(discovery Discovery) *DefaultVideoSourceFactory {
	factory := &DefaultVideoSourceFactory{
		creators:  make(map[VideoSourceType]SourceCreator),
		discovery: discovery,
	}

	factory.Register(SourceTypeUSBCamera, factory.newUSBCameraSource)
	factory.Register(SourceTypeTestPattern, newTestPatternSourceFromConfig)

	return factory
}

// Register はソース作成関数を登録する
func (f *DefaultVideoSourceFactory) Register(sourceType VideoSourceType, creator SourceCreator) {
	f.creators[sourceType] = creator
}

// CreateSource はソースを作成する
func (f *DefaultVideoSourceFactory) CreateSource(ctx context.Context, sourceType VideoSourceType, config SourceConfig) (VideoSource, error) {
	creator, exists := f.creators[sourceType]
	if !exists {
		return nil, fmt.Errorf("サポートされていないソースタイプ: %s", sourceType)
	}

	config.Constraints = config.Constraints.withDefaults()
	return creator(ctx, config)
}

// SupportedTypes はサポートされているソースタイプを返す
func (f *DefaultVideoSourceFactory) SupportedTypes() []VideoSourceType {
	types := make([]VideoSourceType, 0, len(f.creators))
	for sourceType := range f.creators {
		types = append(types, sourceType)
	}
	slices.Sort(types)
	return types
}

// ResolveDevice は要求された向きに対応するデバイスパスを決める
// 明示指定 -> 向きごとの指定 -> 検出結果の先頭 の順に探す
func ResolveDevice(ctx context.Context, config SourceConfig, discovery Discovery) (string, error) {
	if config.Device != "" {
		return config.Device, nil
	}
	if device, ok := config.Devices[config.Constraints.FacingMode]; ok && device != "" {
		return device, nil
	}
	if discovery == nil {
		return "", ErrNoDevice
	}

	devices, err := discovery.ScanDevices(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoDevice, err)
	}
	if len(devices) == 0 {
		return "", ErrNoDevice
	}
	return devices[0], nil
}

func (f *DefaultVideoSourceFactory) newUSBCameraSource(ctx context.Context, config SourceConfig) (VideoSource, error) {
	device, err := ResolveDevice(ctx, config, f.discovery)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("USB Camera (%s)", device)
	if f.discovery != nil {
		if info, err := f.discovery.GetDeviceInfo(ctx, device); err == nil && info != nil {
			name = info.Name
		}
	}

	return NewUSBCameraSource(VideoSourceInfo{
		ID:          uuid.NewString(),
		Name:        name,
		Type:        SourceTypeUSBCamera,
		Device:      device,
		Constraints: config.Constraints,
	}), nil
}

func newTestPatternSourceFromConfig(_ context.Context, config SourceConfig) (VideoSource, error) {
	return NewTestPatternSource(VideoSourceInfo{
		ID:          uuid.NewString(),
		Name:        "Test Pattern",
		Type:        SourceTypeTestPattern,
		Constraints: config.Constraints,
	}), nil
}
