package cleanup

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/courtbot/internal/domain"
)

// Cleaner removes the files a job leaves behind. Only files under one of
// its roots are ever removed.
type Cleaner struct {
	logger *slog.Logger
	roots  []string
}

// NewCleaner creates a cleaner confined to roots. Empty roots are ignored;
// a cleaner without roots removes nothing.
func NewCleaner(logger *slog.Logger, roots ...string) *Cleaner {
	c := &Cleaner{logger: logger}
	for _, r := range roots {
		if r != "" {
			c.roots = append(c.roots, r)
		}
	}
	return c
}

// Clean removes the job artifact and every evidence file of its frames.
// Each removal is attempted independently; failures are logged.
func (c *Cleaner) Clean(job *domain.Job) {
	paths := append([]string{job.OutputPath}, job.EvidencePaths()...)

	removed := 0
	for _, p := range paths {
		if p == "" {
			continue
		}
		if !c.allowed(p) {
			c.logger.Error("Refusing to remove file outside cleanup roots",
				slog.String("job_id", job.ID),
				slog.String("path", p),
			)
			continue
		}
		ok, err := removeIfPresent(p)
		if err != nil {
			c.logger.Error("Failed to remove job file",
				slog.String("job_id", job.ID),
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			removed++
		}
	}

	c.logger.Debug("Job files cleaned",
		slog.String("job_id", job.ID),
		slog.Int("removed", removed),
	)
}

func (c *Cleaner) allowed(path string) bool {
	for _, root := range c.roots {
		if Within(root, path) {
			return true
		}
	}
	return false
}

// Within reports whether path names a file strictly below root once both
// are made absolute and cleaned.
func Within(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

// removeIfPresent reports whether a file was removed. A missing file is not
// an error.
func removeIfPresent(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
