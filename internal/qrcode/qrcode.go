// Package qrcode renders and stores the QR images attached to shortened links.
package qrcode

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	qrc "github.com/skip2/go-qrcode"
)

// Service renders QR codes for short URLs as PNG files in a local directory.
// QR generation is decorative: every caller treats a failure here as
// best-effort and carries on without the image.
type Service struct {
	dir  string
	size int
}

// NewService returns a Service writing size x size pixel PNGs into dir.
func NewService(dir string, size int) *Service {
	return &Service{dir: dir, size: size}
}

// Generate renders a QR code for url and writes it to "<dir>/qr_<linkID>.png".
// Returns the path of the written file.
func (s *Service) Generate(url string, linkID uint) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create QR code directory %s: %w", s.dir, err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("qr_%d.png", linkID))
	if err := qrc.WriteFile(url, qrc.Medium, s.size, path); err != nil {
		return "", fmt.Errorf("failed to write QR code for link %d: %w", linkID, err)
	}
	return path, nil
}

// Read returns the PNG bytes of a previously generated QR code.
func (s *Service) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read QR code file %s: %w", path, err)
	}
	return data, nil
}

// Delete removes a generated QR code file. Missing files are not an error;
// anything else is logged and swallowed.
func (s *Service) Delete(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to delete QR code file %s: %v", path, err)
	}
}
