package helper

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// NewIndexDir returns a fresh, never-reused directory path under base for
// one index build. The directory is not created here.
func NewIndexDir(base string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	return filepath.Join(base, id.String()), nil
}

// CreateFolder makes the directory and any missing parents.
func CreateFolder(path string) error {
	return os.MkdirAll(path, 0o755)
}
