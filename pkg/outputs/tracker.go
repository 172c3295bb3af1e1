package outputs

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoDirectory is returned when the observed directory cannot be prepared.
var ErrNoDirectory = errors.New("output directory unavailable")

type fileState struct {
	size    int64
	modTime int64
	sum     [sha256.Size]byte
}

// Tracker observes the regular files below one output directory so the files
// written by a target can be handed to post-processing.
type Tracker struct {
	dir   string
	files map[string]fileState
}

// Snapshot creates dir when missing and records its current files.
func Snapshot(dir string) (*Tracker, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty path", ErrNoDirectory)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDirectory, err)
	}
	t := &Tracker{dir: dir}
	if err := t.Rebaseline(); err != nil {
		return nil, err
	}
	return t, nil
}

// Dir returns the observed directory.
func (t *Tracker) Dir() string { return t.dir }

// Diff returns the files created or modified since the last snapshot, as
// sorted slash-separated paths relative to the directory. Deleted files and
// directories are not reported.
func (t *Tracker) Diff() ([]string, error) {
	current, err := scan(t.dir)
	if err != nil {
		return nil, err
	}
	var changed []string
	for rel, now := range current {
		before, existed := t.files[rel]
		if !existed || before != now {
			changed = append(changed, rel)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// Rebaseline records the current files so the next Diff is relative to them.
func (t *Tracker) Rebaseline() error {
	files, err := scan(t.dir)
	if err != nil {
		return err
	}
	t.files = files
	return nil
}

func scan(dir string) (map[string]fileState, error) {
	files := map[string]fileState{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		sum, err := checksum(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = fileState{size: info.Size(), modTime: info.ModTime().UnixNano(), sum: sum}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return files, nil
}

func checksum(path string) ([sha256.Size]byte, error) {
	var sum [sha256.Size]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
