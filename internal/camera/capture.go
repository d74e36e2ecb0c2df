package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"photobooth/internal/logging"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// V4L2Capturer はffmpegを使ってV4L2デバイスからMJPEGストリームを取得する
type V4L2Capturer struct {
	devicePath string
	width      int
	height     int
	fps        int
	logger     *slog.Logger
}

// NewV4L2Capturer は新しいV4L2Capturerを作成する
func NewV4L2Capturer(devicePath string, width, height, fps int) *V4L2Capturer {
	return &V4L2Capturer{
		devicePath: devicePath,
		width:      width,
		height:     height,
		fps:        fps,
		logger:     logging.Component("v4l2").With("device", devicePath),
	}
}

// IsDeviceAvailable はV4L2デバイスが利用可能かチェックする
func (c *V4L2Capturer) IsDeviceAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", c.devicePath, "--info")
	return cmd.Run() == nil
}

func (c *V4L2Capturer) inputArgs() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", c.width, c.height),
		"-r", strconv.Itoa(c.fps),
		"-i", c.devicePath,
	}
}

// CaptureFrameAsJPEG は1フレームをキャプチャしてJPEGバイト配列として返す
func (c *V4L2Capturer) CaptureFrameAsJPEG(ctx context.Context) ([]byte, error) {
	args := append(c.inputArgs(),
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", "2",
		"-",
	)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("フレームキャプチャに失敗: %w (stderr: %s)", err, stderr.String())
	}
	if !bytes.HasPrefix(stdout.Bytes(), jpegSOI) {
		return nil, fmt.Errorf("JPEG以外のデータを受信しました (%d bytes)", stdout.Len())
	}

	return stdout.Bytes(), nil
}

// TestCapture はデバイスが実際に映像を返すかを確認する
// 権限がない場合やデバイスが使用中の場合はここで失敗する
func (c *V4L2Capturer) TestCapture(ctx context.Context) error {
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := c.CaptureFrameAsJPEG(testCtx)
	return err
}

// StartStream は連続キャプチャを開始する
// ctx がキャンセルされるとffmpegは終了し、frameChan への送信も止まる
func (c *V4L2Capturer) StartStream(ctx context.Context, frameChan chan<- []byte, errorChan chan<- error) {
	args := append(c.inputArgs(),
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		errorChan <- fmt.Errorf("stdoutパイプの作成に失敗: %w", err)
		return
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		errorChan <- fmt.Errorf("stderrパイプの作成に失敗: %w", err)
		return
	}

	if err := cmd.Start(); err != nil {
		errorChan <- fmt.Errorf("ffmpegの起動に失敗: %w", err)
		return
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			c.logger.Debug("ffmpeg", "line", scanner.Text())
		}
	}()

	go func() {
		defer func() {
			_ = cmd.Wait() // コンテキストキャンセル時はエラーになるため無視
		}()

		err := readFrames(ctx, stdout, func(frame []byte) bool {
			select {
			case frameChan <- frame:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && ctx.Err() == nil {
			errorChan <- fmt.Errorf("フレーム読み取りエラー: %w", err)
		}
	}()
}

// readFrames はMJPEGパイプをSOI/EOIマーカーで分割して emit に渡す
// emit が false を返すと読み取りを終了する
func readFrames(ctx context.Context, r io.Reader, emit func([]byte) bool) error {
	var splitter frameSplitter
	buffer := make([]byte, 1024*1024)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := r.Read(buffer)
		if n > 0 {
			for _, frame := range splitter.Write(buffer[:n]) {
				if !emit(frame) {
					return nil
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// frameSplitter は連結されたJPEGデータを1枚ずつに分割する
type frameSplitter struct {
	buf bytes.Buffer
}

// Write はデータを追加し、完成したフレームを返す
func (s *frameSplitter) Write(p []byte) [][]byte {
	s.buf.Write(p)

	var frames [][]byte
	for {
		data := s.buf.Bytes()

		start := bytes.Index(data, jpegSOI)
		if start == -1 {
			// SOIの片割れ(末尾のFF)だけは残す
			if len(data) > 0 && data[len(data)-1] == 0xFF {
				s.buf.Reset()
				s.buf.WriteByte(0xFF)
			} else {
				s.buf.Reset()
			}
			return frames
		}

		end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
		if end == -1 {
			if start > 0 {
				rest := append([]byte(nil), data[start:]...)
				s.buf.Reset()
				s.buf.Write(rest)
			}
			return frames
		}

		end += start + len(jpegSOI) + len(jpegEOI)
		frame := make([]byte, end-start)
		copy(frame, data[start:end])
		frames = append(frames, frame)

		rest := append([]byte(nil), data[end:]...)
		s.buf.Reset()
		s.buf.Write(rest)
	}
}
