// Package receipts stores the files attached to expenses on local disk.
package receipts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"expenses/internal/core"
	"expenses/internal/log"
)

// DefaultMaxBytes is the receipt size limit when none is configured.
const DefaultMaxBytes int64 = 5 << 20

var (
	ErrUnsupportedType = errors.New("only JPEG, PNG, GIF and PDF receipts are allowed")
	ErrTooLarge        = errors.New("receipt exceeds the maximum allowed size")
)

var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
}

// Upload is a file received with an expense create or update.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Store keeps receipt files in a single directory.
type Store struct {
	dir      string
	maxBytes int64
	now      func() time.Time
	logger   *log.Logger
}

func NewStore(dir string, maxBytes int64) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{
		dir:      dir,
		maxBytes: maxBytes,
		now:      time.Now,
		logger:   log.WithComponent(log.ComponentReceipts),
	}
}

// Dir returns the directory receipts are written to.
func (s *Store) Dir() string { return s.dir }

// MaxBytes returns the per-file size limit.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Init creates the upload directory.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	return nil
}

// Validate checks the declared content type and size of an upload. It is
// called before anything is persisted.
func (s *Store) Validate(u Upload) error {
	if _, ok := allowedTypes[normalizeType(u.ContentType)]; !ok {
		return core.Validation(ErrUnsupportedType)
	}
	if u.Size > s.maxBytes {
		return core.Validation(fmt.Errorf("%w (%d MB)", ErrTooLarge, s.maxBytes>>20))
	}
	return nil
}

// Save validates and writes u under a fresh collision-free name.
func (s *Store) Save(u Upload) (*core.Receipt, error) {
	if err := s.Validate(u); err != nil {
		return nil, err
	}
	contentType := normalizeType(u.ContentType)
	name := s.newName(u.Filename, contentType)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, core.Internal("Failed to store receipt", err)
	}
	// One extra byte lets an understated Size be detected.
	n, err := io.Copy(f, io.LimitReader(u.Body, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxBytes {
		err = core.Validation(ErrTooLarge)
	}
	if err != nil {
		_ = os.Remove(path)
		if core.KindOf(err) == core.KindValidation {
			return nil, err
		}
		return nil, core.Internal("Failed to store receipt", err)
	}

	s.logger.Debug("Receipt stored", log.FieldFilename, name, log.FieldSize, n)
	return &core.Receipt{Filename: name, Path: path, ContentType: contentType}, nil
}

// Open returns the receipt named filename. Only the base name is used, so
// a crafted name cannot escape the upload directory.
func (s *Store) Open(filename string) (*os.File, string, error) {
	name := Sanitize(filename)
	if name == "" {
		return nil, "", core.NewError(core.KindReceiptNotFound, "Receipt not found", nil)
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", core.NewError(core.KindReceiptNotFound, "Receipt not found", err)
		}
		return nil, "", core.Internal("Failed to read receipt", err)
	}
	return f, ContentTypeFor(name), nil
}

// Remove deletes a stored receipt. A missing file is not an error.
func (s *Store) Remove(filename string) error {
	name := Sanitize(filename)
	if name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove receipt %s: %w", name, err)
	}
	return nil
}

func (s *Store) newName(original, contentType string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if _, ok := extTypes[ext]; !ok {
		ext = allowedTypes[contentType]
	}
	return fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), uuid.NewString(), ext)
}

// Sanitize reduces a user supplied filename to its base name.
func Sanitize(filename string) string {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(filename, `\`, "/")))
	if name == "/" || name == "." || name == ".." {
		return ""
	}
	return name
}

var extTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
}

// ContentTypeFor derives the content type of a stored receipt from its
// extension.
func ContentTypeFor(filename string) string {
	if ct, ok := extTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func normalizeType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "image/jpg" || ct == "image/pjpeg" {
		return "image/jpeg"
	}
	return ct
}
