package staging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/ports/secondary"
)

var _ secondary.Stager = (*DirStager)(nil)

// DirStager stages each submission in its own <root>/<uuid>/ directory
type DirStager struct {
	root   string
	logger primary.Logger
}

func NewDirStager(root string, logger primary.Logger) *DirStager {
	return &DirStager{root: root, logger: logger}
}

// Stage implements secondary.Stager
func (s *DirStager) Stage(filename string, contents []byte) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return "", fmt.Errorf("invalid filename %q", filename)
	}

	dir := filepath.Join(s.root, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", name, err)
	}
	return path, nil
}

// ReadArtifact implements secondary.Stager
func (s *DirStager) ReadArtifact(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Cleanup implements secondary.Stager. Failures are logged and ignored.
func (s *DirStager) Cleanup(sourcePath string) {
	dir := filepath.Dir(sourcePath)
	if filepath.Dir(dir) != filepath.Clean(s.root) {
		// not one of ours, only remove the file itself
		_ = os.Remove(sourcePath)
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("Failed to clean staging dir", "dir", dir, "error", err)
	}
}
