package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pkgstate "github.com/ShapeChange/ShapeChange-sub001/pkg/state"
)

const (
	defaultFileName = "last-run.json"
	configDirName   = "shapechange"
	stateDirName    = "state"
)

// ErrInvalidFileName is returned when the state file name override is not a plain file name.
var ErrInvalidFileName = errors.New("state file override is invalid: filename must not contain path separators")

// Resolver resolves state file paths according to overrides and platform defaults.
type Resolver struct{}

// NewResolver constructs a state path resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the absolute state file path. Without a directory override
// the record lives under $XDG_CONFIG_HOME/shapechange/state, or
// ~/.shapechange/state.
func (r *Resolver) Resolve(overrides pkgstate.Overrides) (string, error) {
	dir := overrides.StateDirectory
	if dir == "" {
		var err error
		dir, err = defaultStateDirectory()
		if err != nil {
			return "", fmt.Errorf("determine state directory: %w", err)
		}
	}

	dir = filepath.Clean(dir)
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("resolve state directory: %w", err)
		}
		dir = abs
	}

	fileName := overrides.StateFileName
	if fileName == "" {
		fileName = defaultFileName
	}
	if invalidFileName(fileName) {
		return "", ErrInvalidFileName
	}

	return filepath.Join(dir, fileName), nil
}

func invalidFileName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return true
	}
	for _, r := range name {
		if r < 32 || r == 127 {
			return true
		}
	}
	return false
}

func defaultStateDirectory() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(filepath.Clean(xdg), configDirName, stateDirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if home == "" {
		return "", errors.New("unable to determine user home directory")
	}

	return filepath.Join(filepath.Clean(home), "."+configDirName, stateDirName), nil
}
