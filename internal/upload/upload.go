// Package upload validates and stores source report PDFs.
package upload

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/reportlens/internal/model"
)

// MaxSize is the largest accepted upload
const MaxSize int64 = 10 << 20

// User-facing validation messages
const (
	FileTypeMessage = "Please upload a PDF file"
	FileSizeMessage = "File size must be less than 10MB"
)

var (
	ErrFileType     = errors.New(FileTypeMessage)
	ErrFileTooLarge = errors.New(FileSizeMessage)
	ErrEmptyData    = errors.New("invalid base64 data")
	ErrFilename     = errors.New("invalid filename")
)

var pdfMagic = []byte("%PDF-")

// Validate checks an upload before anything is stored or sent upstream.
// Size is checked before type.
func Validate(name, contentType string, size int64) error {
	return validate(name, contentType, size, MaxSize)
}

func validate(name, contentType string, size, max int64) error {
	if size > max {
		return ErrFileTooLarge
	}
	if !isPDF(name, contentType) {
		return ErrFileType
	}
	return nil
}

func isPDF(name, contentType string) bool {
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "application/pdf" {
			return true
		}
	}
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// DecodeDataURL decodes a base64 PDF, with or without its data URL prefix
func DecodeDataURL(data string) ([]byte, error) {
	payload := strings.TrimSpace(data)
	if i := strings.Index(payload, ";base64,"); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+len(";base64,"):]
	}
	if payload == "" {
		return nil, ErrEmptyData
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyData, err)
	}
	if len(decoded) == 0 {
		return nil, ErrEmptyData
	}
	return decoded, nil
}

// Store writes uploads into one directory
type Store struct {
	dir     string
	maxSize int64
}

// NewStore creates a store rooted at dir. maxSize <= 0 uses MaxSize.
func NewStore(dir string, maxSize int64) *Store {
	if maxSize <= 0 {
		maxSize = MaxSize
	}
	return &Store{dir: dir, maxSize: maxSize}
}

// Dir returns the uploads directory
func (s *Store) Dir() string {
	return s.dir
}

// MaxSize returns the size limit of this store
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Validate checks an upload against this store's size limit
func (s *Store) Validate(name, contentType string, size int64) error {
	return validate(name, contentType, size, s.maxSize)
}

// Save writes r under name, replacing any existing file with that name.
// The content must start with the PDF signature.
func (s *Store) Save(name string, r io.Reader) (*model.Report, error) {
	filename, err := SanitizeFilename(name)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	head := make([]byte, len(pdfMagic))
	n, _ := io.ReadFull(r, head)
	if !bytes.Equal(head[:n], pdfMagic) {
		_ = tmp.Close()
		return nil, ErrFileType
	}

	hash := sha256.New()
	body := io.MultiReader(bytes.NewReader(head[:n]), io.LimitReader(r, s.maxSize+1-int64(n)))
	written, err := io.Copy(io.MultiWriter(tmp, hash), body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if written > s.maxSize {
		return nil, ErrFileTooLarge
	}

	dest := filepath.Join(s.dir, filename)
	if err := os.Rename(tmpName, dest); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	return &model.Report{
		ID:         uuid.NewString(),
		Filename:   filename,
		Size:       written,
		SHA256:     hex.EncodeToString(hash.Sum(nil)),
		UploadedAt: time.Now().UTC(),
	}, nil
}

// Path returns the on-disk path of a stored upload
func (s *Store) Path(filename string) (string, error) {
	clean, err := SanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, clean), nil
}

// Remove deletes a stored upload. A missing file is not an error.
func (s *Store) Remove(filename string) error {
	path, err := s.Path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// SanitizeFilename reduces name to a safe base name
func SanitizeFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == "/" || base == ".." || base == "" || strings.HasPrefix(base, ".") {
		return "", ErrFilename
	}
	return base, nil
}
