package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrTooLarge is returned for files over the size limit.
	ErrTooLarge = errors.New("file exceeds maximum upload size")

	// ErrBlocked is returned for file names that must never leave the device.
	ErrBlocked = errors.New("file type not allowed")
)

// Guardrails enforces safety checks on uploads
type Guardrails struct {
	MaxFileSize        int64
	BlockedExtensions  []string
	SensitiveFilenames []string
}

// NewGuardrails creates guardrails with safe defaults and the given size limit.
// maxFileSize <= 0 disables the size check.
func NewGuardrails(maxFileSize int64) *Guardrails {
	return &Guardrails{
		MaxFileSize: maxFileSize,
		BlockedExtensions: []string{
			// Executables
			".exe", ".dll", ".so", ".dylib", ".app",
			// Disk images
			".iso", ".dmg", ".img",
		},
		SensitiveFilenames: []string{
			".env", "id_rsa", "id_ed25519", "credentials.json",
			".aws/credentials", ".ssh/id_rsa",
		},
	}
}

// Check validates a file's name and size before it is read.
func (g *Guardrails) Check(filename string, size int64) error {
	lower := strings.ToLower(filename)
	for _, sensitive := range g.SensitiveFilenames {
		if strings.Contains(lower, sensitive) {
			return fmt.Errorf("%w: sensitive filename %s", ErrBlocked, filename)
		}
	}

	ext := filepath.Ext(lower)
	for _, blocked := range g.BlockedExtensions {
		if ext == blocked {
			return fmt.Errorf("%w: %s", ErrBlocked, ext)
		}
	}

	if g.MaxFileSize > 0 && size > g.MaxFileSize {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrTooLarge, filename, size, g.MaxFileSize)
	}
	return nil
}
