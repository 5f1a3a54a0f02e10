package taskfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Writer persists a full line sequence back to the task file.
type Writer interface {
	WriteLines(path string, lines []string) error
}

// CopyWriter writes to a temporary file first and then copies the result into
// the existing path.
//
// The copy keeps the original inode: renaming the temp file over the task file
// would leave an inode-based watch pointing at the old, unlinked file.
type CopyWriter struct {
	// TempDir holds the staging file. Empty means the task file's directory.
	TempDir string
}

func (w CopyWriter) WriteLines(path string, lines []string) error {
	dir := w.TempDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	bw := bufio.NewWriter(tmp)
	for _, l := range lines {
		if _, err := bw.WriteString(l); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write temp file: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		_ = tmp.Close()
		return err
	}
	defer tmp.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("open task file: %w", err)
	}
	if _, err := io.Copy(dst, tmp); err != nil {
		_ = dst.Close()
		return fmt.Errorf("copy into task file: %w", err)
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		return fmt.Errorf("sync task file: %w", err)
	}
	return dst.Close()
}

// ReadLines reads a file into raw lines, terminators included.
func ReadLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SplitLines(string(b)), nil
}

// SplitLines splits after every '\n', keeping it.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
