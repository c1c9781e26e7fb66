package imagestore

import (
	"bytes"
	"encoding/hex"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/civicmap/internal/model"
)

func pngBytes(t *testing.T, shade uint8) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := range 4 {
		for y := range 4 {
			img.Set(x, y, color.RGBA{R: shade, G: 0, B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestSave(t *testing.T) {
	t.Parallel()

	t.Run("stores png", func(t *testing.T) {
		t.Parallel()

		s, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		data := pngBytes(t, 10)

		img, err := s.Save("r1", bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if !strings.HasSuffix(img.Filename, ".png") || !filenamePattern.MatchString(img.Filename) {
			t.Errorf("unexpected filename %q", img.Filename)
		}
		if img.ContentType != "image/png" || img.HasGPS {
			t.Errorf("unexpected metadata: %+v", img)
		}
		if len(img.ContentHash) != 64 {
			t.Errorf("expected 64 hex digits, got %q", img.ContentHash)
		}

		f, err := s.Open(img.Filename)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer f.Close()
		got, err := io.ReadAll(f)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Error("stored bytes differ")
		}
	})

	t.Run("same bytes, same report, same file", func(t *testing.T) {
		t.Parallel()

		s, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		data := pngBytes(t, 20)

		a, err := s.Save("r1", bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		b, err := s.Save("r1", bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		c, err := s.Save("r2", bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if a.Filename != b.Filename {
			t.Errorf("expected identical names, got %s and %s", a.Filename, b.Filename)
		}
		if a.Filename == c.Filename {
			t.Error("different reports must not share a file")
		}
		if a.ContentHash != c.ContentHash {
			t.Error("content hash must only depend on the bytes")
		}
	})

	t.Run("rejects unsupported and oversized uploads", func(t *testing.T) {
		t.Parallel()

		s, err := New(t.TempDir(), WithMaxSize(64))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if _, err := s.Save("r1", strings.NewReader("plain text is not an image")); !errors.Is(err, model.ErrValidation) {
			t.Errorf("expected ErrValidation for text, got %v", err)
		}
		if _, err := s.Save("r1", bytes.NewReader(make([]byte, 65))); !errors.Is(err, model.ErrValidation) {
			t.Errorf("expected ErrValidation for oversized upload, got %v", err)
		}
		if _, err := s.Save("r1", bytes.NewReader(nil)); !errors.Is(err, model.ErrValidation) {
			t.Errorf("expected ErrValidation for empty upload, got %v", err)
		}
	})
}

func TestOpenAndRemove(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	img, err := s.Save("r1", bytes.NewReader(pngBytes(t, 30)))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := s.Open("../etc/passwd"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for traversal, got %v", err)
	}
	if _, err := s.Open(strings.Repeat("a", 32) + ".png"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown file, got %v", err)
	}

	if err := s.Remove(img.Filename, strings.Repeat("b", 32)+".jpg"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, img.Filename)); !os.IsNotExist(err) {
		t.Error("file should be gone")
	}
	if err := s.Remove("../escape.png"); err == nil {
		t.Error("expected error for invalid name")
	}
}

func TestHasGPS(t *testing.T) {
	t.Parallel()

	if HasGPS(pngBytes(t, 40)) {
		t.Error("png without EXIF must not report GPS")
	}
	if HasGPS([]byte("garbage")) {
		t.Error("garbage must not report GPS")
	}

	tests := []struct {
		name string
		tiff string
		want bool
	}{
		{
			name: "gps latitude",
			tiff: "4d4d002a00000008" +
				"0001" + "8825" + "0004" + "00000001" + "0000001a" + "00000000" +
				"0001" + "0002" + "0005" + "00000003" + "0000002c" + "00000000" +
				strings.Repeat("00", 24),
			want: true,
		},
		{
			name: "little endian gps longitude",
			tiff: "49492a0008000000" +
				"0100" + "2588" + "0400" + "01000000" + "1a000000" + "00000000" +
				"0100" + "0400" + "0500" + "03000000" + "2c000000" + "00000000" +
				strings.Repeat("00", 24),
			want: true,
		},
		{
			name: "gps ifd without position",
			tiff: "4d4d002a00000008" +
				"0001" + "8825" + "0004" + "00000001" + "0000001a" + "00000000" +
				"0001" + "0007" + "0005" + "00000003" + "0000002c" + "00000000" +
				strings.Repeat("00", 24),
			want: false,
		},
		{
			name: "no gps pointer",
			tiff: "4d4d002a00000008" +
				"0001" + "010f" + "0002" + "00000004" + "41434d45" + "00000000",
			want: false,
		},
		{
			name: "gps pointer past the end",
			tiff: "4d4d002a00000008" +
				"0001" + "8825" + "0004" + "00000001" + "7fffffff" + "00000000",
			want: false,
		},
		{
			name: "entry count larger than the block",
			tiff: "4d4d002a00000008" +
				"ffff" + "8825" + "0004" + "00000001" + "0000001a",
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := HasGPS(exifJPEG(t, tt.tiff)); got != tt.want {
				t.Errorf("HasGPS() = %v, want %v", got, tt.want)
			}
		})
	}
}

// exifJPEG wraps a hex TIFF block in a JPEG APP1 segment.
func exifJPEG(t *testing.T, tiffHex string) []byte {
	t.Helper()

	tiff, err := hex.DecodeString(tiffHex)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xd8, 0xff, 0xe1})
	segment := len(tiff) + 8
	buf.Write([]byte{byte(segment >> 8), byte(segment)})
	buf.WriteString("Exif\x00\x00")
	buf.Write(tiff)
	buf.Write([]byte{0xff, 0xd9})
	return buf.Bytes()
}

// TestSaveHugeExifUnitCount stores a 74-byte JPEG whose GPS pointer entry
// claims 0x5d000001 units. Reading it must not decode the tag value.
func TestSaveHugeExifUnitCount(t *testing.T) {
	t.Parallel()

	prefix := "ffd8ffe100404578696600004d4d002a00000008" +
		"0001" + "8825" + "0004" + "5d000001" + "0000001a" + "05b0"
	data, err := hex.DecodeString(prefix)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	data = append(data, make([]byte, 74-len(data)-2)...)
	data = append(data, 0xff, 0xd9)
	if len(data) != 74 {
		t.Fatalf("fixture is %d bytes, want 74", len(data))
	}

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	img, err := s.Save("report-1", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if img.ContentType != "image/jpeg" {
		t.Errorf("content type = %q, want image/jpeg", img.ContentType)
	}
	if img.HasGPS {
		t.Error("malformed GPS IFD must not report GPS")
	}
}
