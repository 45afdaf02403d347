// Package archive moves processed input files out of the incoming location,
// into a history directory on success or a rejected directory on failure.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// TimestampLayout is appended to archived file names: output.csv becomes
// output_20240501_101500.csv.
const TimestampLayout = "20060102_150405"

// maxCollisions bounds the _N suffixes tried when a timestamped name is taken.
const maxCollisions = 1000

// Archiver moves files into HistoryDir or RejectedDir under a timestamped name.
type Archiver struct {
	HistoryDir  string
	RejectedDir string

	now func() time.Time
}

// New returns an Archiver using the wall clock for timestamps.
func New(historyDir, rejectedDir string) *Archiver {
	return &Archiver{HistoryDir: historyDir, RejectedDir: rejectedDir, now: time.Now}
}

// WithClock returns a copy of a that timestamps names with now.
func (a *Archiver) WithClock(now func() time.Time) *Archiver {
	cp := *a
	cp.now = now
	return &cp
}

// Success moves path into HistoryDir and returns the new location.
func (a *Archiver) Success(path string) (string, error) {
	dest, err := a.move(path, a.HistoryDir)
	if err != nil {
		return "", fmt.Errorf("archive.Archiver.Success: %w", err)
	}
	return dest, nil
}

// Reject moves path into RejectedDir and returns the new location.
func (a *Archiver) Reject(path string) (string, error) {
	dest, err := a.move(path, a.RejectedDir)
	if err != nil {
		return "", fmt.Errorf("archive.Archiver.Reject: %w", err)
	}
	return dest, nil
}

func (a *Archiver) move(src, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	dest, err := a.destination(src, dir)
	if err != nil {
		return "", err
	}

	err = os.Rename(src, dest)
	if errors.Is(err, syscall.EXDEV) {
		err = copyAndRemove(src, dest)
	}
	if err != nil {
		return "", fmt.Errorf("move %s to %s: %w", src, dest, err)
	}
	return dest, nil
}

// destination picks a free name in dir for src.
func (a *Archiver) destination(src, dir string) (string, error) {
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	ts := a.now().Format(TimestampLayout)

	name := fmt.Sprintf("%s_%s%s", stem, ts, ext)
	for i := 1; ; i++ {
		dest := filepath.Join(dir, name)
		if _, err := os.Lstat(dest); errors.Is(err, fs.ErrNotExist) {
			return dest, nil
		}
		if i > maxCollisions {
			return "", fmt.Errorf("no free archive name for %s in %s", base, dir)
		}
		name = fmt.Sprintf("%s_%s_%d%s", stem, ts, i, ext)
	}
}

// copyAndRemove is the cross-device fallback for os.Rename.
func copyAndRemove(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return err
	}
	return os.Remove(src)
}
