package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

var deviceNumberPattern = regexp.MustCompile(`(?:^|/)video(\d+)$`)

// commandRunner は外部コマンドを実行して標準出力を返す
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// LinuxDiscovery はLinux環境でのカメラデバイス検出を実装する
// デバイス情報は v4l2-ctl で取得する
type LinuxDiscovery struct {
	glob string
	run  commandRunner
	open func(name string) error
}

// NewLinuxDiscovery は新しいLinuxDiscoveryを作成する
func NewLinuxDiscovery() *LinuxDiscovery {
	return &LinuxDiscovery{
		glob: "/dev/video*",
		run:  runCommand,
		open: openReadOnly,
	}
}

func openReadOnly(name string) error {
	file, err := os.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	return file.Close()
}

// ScanDevices はカラー映像を出力するメインカメラをデバイス番号順に返す
// 同じカメラの複数ノード(メタデータ用など)は最小番号のみを残す
func (d *LinuxDiscovery) ScanDevices(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(d.glob)
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	slices.SortFunc(matches, func(a, b string) int {
		return extractDeviceNumber(a) - extractDeviceNumber(b)
	})

	var devices []string
	seen := make(map[string]bool)
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return devices, err
		}
		if !d.IsDeviceAvailable(ctx, match) {
			continue
		}

		formats, err := d.run(ctx, "v4l2-ctl", "--device", match, "--list-formats-ext")
		if err != nil || !hasColorFormat(string(formats)) {
			continue
		}

		name := d.cardType(ctx, match)
		if name != "" && seen[name] {
			continue
		}
		seen[name] = true
		devices = append(devices, match)
	}

	return devices, nil
}

// IsDeviceAvailable は指定されたデバイスが開けるかチェックする
func (d *LinuxDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	if !deviceNumberPattern.MatchString(device) {
		return false
	}
	return d.open(device) == nil
}

// GetDeviceInfo はデバイスの詳細情報を取得する
func (d *LinuxDiscovery) GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error) {
	if !d.IsDeviceAvailable(ctx, device) {
		return nil, fmt.Errorf("デバイスが利用できません: %s", device)
	}

	info := &DeviceInfo{
		Device: device,
		Name:   d.cardType(ctx, device),
		Driver: "uvcvideo",
	}
	if info.Name == "" {
		info.Name = fmt.Sprintf("カメラ %d", extractDeviceNumber(device))
	}

	if out, err := d.run(ctx, "v4l2-ctl", "--device", device, "--info"); err == nil {
		if driver := parseInfoField(string(out), "Driver name"); driver != "" {
			info.Driver = driver
		}
	}

	if out, err := d.run(ctx, "v4l2-ctl", "--device", device, "--list-formats-ext"); err == nil {
		info.Formats, info.Resolutions = parseFormats(string(out))
	}

	return info, nil
}

// cardType はv4l2-ctlの "Card type" からカメラ名を取得する
func (d *LinuxDiscovery) cardType(ctx context.Context, device string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := d.run(ctx, "v4l2-ctl", "--device", device, "--info")
	if err != nil {
		return ""
	}
	return parseInfoField(string(out), "Card type")
}

// parseInfoField は "Key : Value" 形式の出力から値を取り出す
func parseInfoField(output, key string) string {
	for line := range strings.Lines(output) {
		k, v, ok := strings.Cut(strings.TrimSpace(line), ":")
		if ok && strings.TrimSpace(k) == key {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var (
	formatPattern = regexp.MustCompile(`\[\d+\]:\s*'(\w+)'`)
	sizePattern   = regexp.MustCompile(`Size:\s*\w+\s+(\d+)x(\d+)`)
)

// parseFormats は --list-formats-ext の出力からフォーマットと解像度を取り出す
func parseFormats(output string) ([]string, []Resolution) {
	var formats []string
	var resolutions []Resolution

	for line := range strings.Lines(output) {
		if m := formatPattern.FindStringSubmatch(line); m != nil {
			if !slices.Contains(formats, m[1]) {
				formats = append(formats, m[1])
			}
			continue
		}
		if m := sizePattern.FindStringSubmatch(line); m != nil {
			w, _ := strconv.Atoi(m[1])
			h, _ := strconv.Atoi(m[2])
			r := Resolution{Width: w, Height: h}
			if !slices.Contains(resolutions, r) {
				resolutions = append(resolutions, r)
			}
		}
	}
	return formats, resolutions
}

// hasColorFormat はカラー映像のフォーマットを含むかを返す
// グレースケールのみ(IRカメラなど)は除外する
func hasColorFormat(output string) bool {
	return strings.Contains(output, "YUYV") || strings.Contains(output, "MJPG")
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(device string) int {
	m := deviceNumberPattern.FindStringSubmatch(device)
	if m == nil {
		return 0
	}
	num, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return num
}

// MockDiscovery はテスト用のモックDiscovery実装
type MockDiscovery struct {
	mu          sync.RWMutex
	devices     []string
	deviceInfos map[string]*DeviceInfo
}

// NewMockDiscovery は新しいMockDiscoveryを作成する
func NewMockDiscovery(devices []string) *MockDiscovery {
	m := &MockDiscovery{deviceInfos: make(map[string]*DeviceInfo)}
	for _, device := range devices {
		m.AddDevice(device)
	}
	return m
}

// ScanDevices はモックデバイス一覧を返す
func (m *MockDiscovery) ScanDevices(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.devices), nil
}

// IsDeviceAvailable はモックデバイスが利用可能かチェックする
func (m *MockDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.devices, device)
}

// GetDeviceInfo はモックデバイス情報を取得する
func (m *MockDiscovery) GetDeviceInfo(_ context.Context, device string) (*DeviceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, exists := m.deviceInfos[device]
	if !exists {
		return nil, fmt.Errorf("デバイスが見つかりません: %s", device)
	}
	result := *info
	return &result, nil
}

// AddDevice はテスト用にデバイスを追加する
func (m *MockDiscovery) AddDevice(device string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if slices.Contains(m.devices, device) {
		return
	}
	m.devices = append(m.devices, device)
	m.deviceInfos[device] = &DeviceInfo{
		Device:      device,
		Name:        fmt.Sprintf("テストカメラ %d", len(m.devices)),
		Driver:      "mock",
		Resolutions: []Resolution{{Width: 640, Height: 480}, {Width: 1280, Height: 720}},
		Formats:     []string{"MJPG"},
	}
}

// RemoveDevice はテスト用にデバイスを削除する
func (m *MockDiscovery) RemoveDevice(device string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.devices = slices.DeleteFunc(m.devices, func(d string) bool { return d == device })
	delete(m.deviceInfos, device)
}
