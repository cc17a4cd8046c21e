package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"leavedesk/internal/platform/crypto"
)

const jpegQuality = 60

// Store keeps request attachments on the local filesystem, encrypted at
// rest when a data key is configured. Image uploads are re-encoded as
// JPEG to cap their size; other content is stored verbatim.
type Store struct {
	dir    string
	cipher *crypto.Cipher
}

func New(dir string, cipher *crypto.Cipher) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, cipher: cipher}, nil
}

type Attachment struct {
	Ref         string
	FileName    string
	ContentType string
}

// Save writes one attachment and returns its opaque ref. The ref is a
// generated name; the caller persists it next to the owning record.
func (s *Store) Save(ctx context.Context, fileName, contentType string, data []byte) (Attachment, error) {
	if len(data) == 0 {
		return Attachment{}, fmt.Errorf("empty attachment")
	}

	stored := data
	storedType := contentType
	ext := strings.ToLower(filepath.Ext(fileName))
	if isImageType(contentType) || isImageExt(ext) {
		recoded, err := recompressJPEG(data)
		if err == nil {
			stored = recoded
			storedType = "image/jpeg"
			ext = ".jpg"
		}
	}
	if ext == "" {
		ext = ".bin"
	}

	sealed, err := s.cipher.Seal(stored)
	if err != nil {
		return Attachment{}, fmt.Errorf("seal attachment: %w", err)
	}

	ref := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, ref), sealed, 0o600); err != nil {
		return Attachment{}, fmt.Errorf("write attachment: %w", err)
	}

	return Attachment{Ref: ref, FileName: sanitizeFileName(fileName), ContentType: storedType}, nil
}

// Load reads an attachment back by ref, decrypting when configured.
func (s *Store) Load(ctx context.Context, ref string) ([]byte, error) {
	clean := filepath.Base(ref)
	if clean == "." || clean == ".." || clean == "" {
		return nil, fmt.Errorf("invalid attachment ref")
	}
	sealed, err := os.ReadFile(filepath.Join(s.dir, clean))
	if err != nil {
		return nil, err
	}
	return s.cipher.Open(sealed)
}

func (s *Store) Delete(ctx context.Context, ref string) error {
	clean := filepath.Base(ref)
	if clean == "." || clean == ".." || clean == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, clean))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func recompressJPEG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isImageType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif":
		return true
	}
	return false
}

func sanitizeFileName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.ReplaceAll(base, "\x00", "")
	if base == "." || base == ".." || base == "" {
		return "attachment"
	}
	if len(base) > 120 {
		base = base[len(base)-120:]
	}
	return base
}
