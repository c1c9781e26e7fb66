// Package imagestore keeps uploaded report images on disk.
//
// Files are named after a SHA3-256 digest of the owning report ID and the
// image bytes, so re-uploading the same photo to the same report is a no-op
// while identical photos on different reports never share a file. Only the
// filename and metadata are handed to the report store.
package imagestore

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	"golang.org/x/crypto/sha3"

	"github.com/nao1215/civicmap/internal/model"
)

// DefaultMaxSize is the largest accepted upload, in bytes.
const DefaultMaxSize = 10 << 20

// extensions maps sniffed content types to file extensions.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// filenamePattern matches names produced by Save.
var filenamePattern = regexp.MustCompile(`^[0-9a-f]{32}\.(jpg|png|gif|webp)$`)

// StoredImage describes a saved file.
type StoredImage struct {
	// Filename is the name under which the file is served.
	Filename string

	// ContentHash is the hex SHA3-256 digest of the image bytes.
	ContentHash string

	// ContentType is the sniffed MIME type.
	ContentType string

	// HasGPS is true when the image carries EXIF GPS tags.
	HasGPS bool

	// Size is the file size in bytes.
	Size int64
}

// Store saves images in a single directory.
type Store struct {
	dir     string
	maxSize int64
}

// Option is a function that configures a Store.
type Option func(*Store)

// WithMaxSize overrides the upload size limit.
func WithMaxSize(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	s := &Store{
		dir:     dir,
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save reads an image for reportID from r and stores it.
// Uploads larger than the size limit or of an unsupported type are
// rejected with a ValidationError.
func (s *Store) Save(reportID string, r io.Reader) (StoredImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return StoredImage{}, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return StoredImage{}, model.NewValidationError("image", fmt.Sprintf("larger than %d bytes", s.maxSize))
	}
	if len(data) == 0 {
		return StoredImage{}, model.NewValidationError("image", "empty upload")
	}

	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return StoredImage{}, model.NewValidationError("image", fmt.Sprintf("unsupported content type %s", contentType))
	}

	contentHash := sha3.Sum256(data)
	h := sha3.New256()
	h.Write([]byte(reportID))
	h.Write([]byte{0})
	h.Write(data)
	name := hex.EncodeToString(h.Sum(nil))[:32] + ext

	img := StoredImage{
		Filename:    name,
		ContentHash: hex.EncodeToString(contentHash[:]),
		ContentType: contentType,
		HasGPS:      HasGPS(data),
		Size:        int64(len(data)),
	}

	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err == nil {
		return img, nil
	}
	if err := writeFileAtomic(s.dir, path, data); err != nil {
		return StoredImage{}, err
	}
	return img, nil
}

// Open opens a stored image. Unknown or malformed names yield a
// NotFoundError.
func (s *Store) Open(filename string) (*os.File, error) {
	if !filenamePattern.MatchString(filename) {
		return nil, model.NewNotFoundError("image", filename)
	}
	f, err := os.Open(filepath.Join(s.dir, filename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.NewNotFoundError("image", filename)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return f, nil
}

// Remove deletes stored images. Missing files are ignored.
func (s *Store) Remove(filenames ...string) error {
	var errs []error
	for _, name := range filenames {
		if !filenamePattern.MatchString(name) {
			errs = append(errs, fmt.Errorf("refusing to remove %q", name))
			continue
		}
		err := os.Remove(filepath.Join(s.dir, name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GPS IFD tags that carry a position.
const (
	tagGPSLatitude  = 0x0002
	tagGPSLongitude = 0x0004
)

// ifdEntrySize is the size of one IFD entry: tag, type, count and value.
const ifdEntrySize = 12

// HasGPS reports whether data carries EXIF GPS position tags.
//
// Only tag IDs are read: IFD0 must point to a GPS IFD that lists a latitude
// or longitude tag. Tag values are never decoded, so a forged unit count
// cannot make the check allocate.
func HasGPS(data []byte) bool {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return false
	}
	header, err := exif.ParseExifHeader(rawExif)
	if err != nil {
		return false
	}

	gpsOffset, ok := ifdValue(rawExif, header.ByteOrder, header.FirstIfdOffset,
		exifcommon.IfdGpsInfoStandardIfdIdentity.TagId())
	if !ok {
		return false
	}
	_, lat := ifdValue(rawExif, header.ByteOrder, gpsOffset, tagGPSLatitude)
	_, lon := ifdValue(rawExif, header.ByteOrder, gpsOffset, tagGPSLongitude)
	return lat || lon
}

// ifdValue looks up tag in the IFD at offset and returns the raw 4-byte
// value field of its entry. Offsets outside raw yield false.
func ifdValue(raw []byte, order binary.ByteOrder, offset uint32, tag uint16) (uint32, bool) {
	start := uint64(offset)
	if start+2 > uint64(len(raw)) {
		return 0, false
	}
	count := uint64(order.Uint16(raw[start:]))
	entries := start + 2
	if entries+count*ifdEntrySize > uint64(len(raw)) {
		count = (uint64(len(raw)) - entries) / ifdEntrySize
	}
	for i := range count {
		entry := raw[entries+i*ifdEntrySize:]
		if order.Uint16(entry) == tag {
			return order.Uint32(entry[8:]), true
		}
	}
	return 0, false
}

func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0640); err != nil {
		return fmt.Errorf("failed to set image permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store image: %w", err)
	}
	return nil
}
