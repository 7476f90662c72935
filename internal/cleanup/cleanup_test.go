package cleanup

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestClean_RemovesArtifactAndEvidence(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "job.mp4")
	ev1 := filepath.Join(dir, "e1.png")
	ev2 := filepath.Join(dir, "e2.png")
	for _, p := range []string{out, ev1, ev2} {
		writeFile(t, p)
	}

	job := domain.NewJob(domain.JobSpec{
		ID:         "job-1",
		OutputPath: out,
		Frames: []domain.Frame{
			{Text: "a", EvidencePath: ev1},
			{Text: "b"},
			{Text: "c", EvidencePath: ev2},
		},
	})

	var logs bytes.Buffer
	c := NewCleaner(slog.New(slog.NewTextHandler(&logs, nil)), dir)
	c.Clean(job)

	for _, p := range []string{out, ev1, ev2} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), "%s should be removed", p)
	}

	// A second pass finds nothing and logs no error.
	c.Clean(job)
	assert.NotContains(t, logs.String(), "Failed to remove")
}

func TestClean_ContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()

	// A non-empty directory cannot be removed with os.Remove.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.Mkdir(blocked, 0o755))
	writeFile(t, filepath.Join(blocked, "inner"))

	ev := filepath.Join(dir, "e.png")
	writeFile(t, ev)

	job := domain.NewJob(domain.JobSpec{
		ID:         "job-2",
		OutputPath: blocked,
		Frames:     []domain.Frame{{Text: "a", EvidencePath: ev}},
	})

	var logs bytes.Buffer
	c := NewCleaner(slog.New(slog.NewTextHandler(&logs, nil)), dir)
	c.Clean(job)

	_, err := os.Stat(ev)
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, logs.String(), "Failed to remove job file")
}

func TestClean_LeavesFilesOutsideRoots(t *testing.T) {
	outDir := t.TempDir()
	evidenceDir := t.TempDir()
	elsewhere := t.TempDir()

	out := filepath.Join(outDir, "job.mp4")
	ev := filepath.Join(evidenceDir, "e.png")
	foreign := filepath.Join(elsewhere, "important.db")
	traversal := filepath.Join(evidenceDir, "..", filepath.Base(elsewhere), "important.db")
	for _, p := range []string{out, ev, foreign} {
		writeFile(t, p)
	}

	job := domain.NewJob(domain.JobSpec{
		ID:         "job-3",
		OutputPath: out,
		Frames: []domain.Frame{
			{Text: "a", EvidencePath: ev},
			{Text: "b", EvidencePath: foreign},
		},
		Evidence: []string{traversal},
	})

	var logs bytes.Buffer
	c := NewCleaner(slog.New(slog.NewTextHandler(&logs, nil)), outDir, evidenceDir)
	c.Clean(job)

	assert.NoFileExists(t, out)
	assert.NoFileExists(t, ev)
	assert.FileExists(t, foreign)
	assert.Contains(t, logs.String(), "Refusing to remove file outside cleanup roots")
}

func TestWithin(t *testing.T) {
	tests := []struct {
		name string
		root string
		path string
		want bool
	}{
		{"file below root", "/srv/evidence", "/srv/evidence/a.png", true},
		{"nested file", "/srv/evidence", "/srv/evidence/g1/a.png", true},
		{"root itself", "/srv/evidence", "/srv/evidence", false},
		{"sibling directory", "/srv/evidence", "/srv/evidence2/a.png", false},
		{"dot-dot escape", "/srv/evidence", "/srv/evidence/../db/app.db", false},
		{"absolute elsewhere", "/srv/evidence", "/etc/passwd", false},
		{"relative root", "evidence", "evidence/a.png", true},
		{"relative escape", "evidence", "evidence/../../a.png", false},
		{"empty root", "", "/srv/evidence/a.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Within(tt.root, tt.path))
		})
	}
}
