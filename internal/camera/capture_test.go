package camera

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func fakeJPEG(payload string) []byte {
	frame := append([]byte{}, jpegSOI...)
	frame = append(frame, payload...)
	return append(frame, jpegEOI...)
}

func TestFrameSplitter(t *testing.T) {
	a := fakeJPEG("frame-a")
	b := fakeJPEG("frame-b")
	stream := append(append([]byte("junk"), a...), b...)

	testCases := []struct {
		name  string
		chunk int
	}{
		{"一括", len(stream)},
		{"1バイトずつ", 1},
		{"3バイトずつ", 3},
		{"マーカー境界", len(a) - 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var splitter frameSplitter
			var got [][]byte
			for i := 0; i < len(stream); i += tc.chunk {
				end := min(i+tc.chunk, len(stream))
				got = append(got, splitter.Write(stream[i:end])...)
			}

			if len(got) != 2 {
				t.Fatalf("Expected 2 frames, got %d", len(got))
			}
			if !bytes.Equal(got[0], a) || !bytes.Equal(got[1], b) {
				t.Errorf("Unexpected frames: %q %q", got[0], got[1])
			}
		})
	}
}

func TestFrameSplitter_Incomplete(t *testing.T) {
	var splitter frameSplitter
	if frames := splitter.Write(append([]byte{0xFF, 0xD8}, "partial"...)); len(frames) != 0 {
		t.Fatalf("Expected no frame for incomplete data, got %d", len(frames))
	}
	frames := splitter.Write([]byte{0xFF, 0xD9})
	if len(frames) != 1 {
		t.Fatalf("Expected completed frame, got %d", len(frames))
	}
}

type errReader struct {
	data []byte
	err  error
}

func (r *errReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestReadFrames(t *testing.T) {
	stream := append(fakeJPEG("1"), fakeJPEG("2")...)

	t.Run("EOFで正常終了", func(t *testing.T) {
		var count int
		err := readFrames(context.Background(), bytes.NewReader(stream), func([]byte) bool {
			count++
			return true
		})
		if err != nil {
			t.Fatalf("readFrames failed: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected 2 frames, got %d", count)
		}
	})

	t.Run("emitがfalseで中断", func(t *testing.T) {
		var count int
		_ = readFrames(context.Background(), bytes.NewReader(stream), func([]byte) bool {
			count++
			return false
		})
		if count != 1 {
			t.Errorf("Expected 1 frame, got %d", count)
		}
	})

	t.Run("読み取りエラー", func(t *testing.T) {
		boom := errors.New("boom")
		err := readFrames(context.Background(), &errReader{data: stream, err: boom}, func([]byte) bool { return true })
		if !errors.Is(err, boom) {
			t.Errorf("Expected boom, got %v", err)
		}
	})

	t.Run("キャンセル済み", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := readFrames(ctx, &errReader{err: io.ErrUnexpectedEOF}, func([]byte) bool { return true })
		if err != nil {
			t.Errorf("Expected nil on cancelled context, got %v", err)
		}
	})
}
