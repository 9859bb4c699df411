package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Workspace is a per-job scratch directory for downloaded media and extracted
// frames. Directories are never shared between jobs, and the caller owns
// calling Cleanup exactly once on every exit path.
type Workspace struct {
	dir string

	mu      sync.Mutex
	cleaned bool
}

// NewWorkspace allocates a scoped temporary directory for one job.
func NewWorkspace(jobID string) (*Workspace, error) {
	prefix := "adscope-" + sanitizeComponent(jobID) + "-"
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, fmt.Errorf("workspace: create temp dir: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace root.
func (w *Workspace) Dir() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// Write persists bytes at the given relative key inside the workspace and
// returns the absolute path. Keys are cleaned to prevent directory traversal.
func (w *Workspace) Write(key string, data []byte) (string, error) {
	if w == nil {
		return "", errors.New("workspace: not allocated")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(w.dir, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("workspace: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("workspace: write file: %w", err)
	}
	return fullPath, nil
}

// Path resolves a relative key to an absolute path without creating anything.
func (w *Workspace) Path(key string) (string, error) {
	if w == nil {
		return "", errors.New("workspace: not allocated")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(w.dir, filepath.FromSlash(cleanKey)), nil
}

// Cleanup removes the workspace directory. It is safe to call more than once;
// only the first call does work.
func (w *Workspace) Cleanup() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cleaned {
		return
	}
	w.cleaned = true
	_ = os.RemoveAll(w.dir)
}

// sanitizeKey normalizes a key and prevents escaping the workspace root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("workspace: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("workspace: invalid key")
	}
	return cleaned, nil
}

func sanitizeComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "job"
	}
	return b.String()
}
