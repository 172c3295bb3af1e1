package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfig names the environment variable that points at the configuration document.
const EnvConfig = "SHAPECHANGE_CONFIG"

// ConfigSource identifies where the configuration file was discovered.
type ConfigSource string

const (
	ConfigSourceExplicit   ConfigSource = "explicit"
	ConfigSourceEnv        ConfigSource = "env"
	ConfigSourceWorkingDir ConfigSource = "working-dir"
	ConfigSourceXDG        ConfigSource = "xdg"
	ConfigSourceHome       ConfigSource = "home"
	ConfigSourceRemote     ConfigSource = "remote"
)

// LocationResult describes the discovered configuration document. Path is a
// URL when Source is ConfigSourceRemote.
type LocationResult struct {
	Path   string
	Source ConfigSource
}

// ErrConfigNotFound is returned when no configuration file can be located.
var ErrConfigNotFound = errors.New("pipeline configuration not found")

// candidate is one discovery location: a directory lookup and the file
// stems tried in it. Every stem is tried with each of configExtensions.
type candidate struct {
	source ConfigSource
	dir    func() (string, bool)
	stems  []string
}

var configExtensions = []string{".yaml", ".yml", ".toml"}

var candidates = []candidate{
	{source: ConfigSourceWorkingDir, dir: workingDir, stems: []string{"shapechange"}},
	{source: ConfigSourceXDG, dir: xdgDir, stems: []string{"config"}},
	{source: ConfigSourceHome, dir: homeConfigDir, stems: []string{"config"}},
}

// LocateConfig discovers the configuration document. A pinned location, the
// explicit path or URL and then SHAPECHANGE_CONFIG, must exist when given.
// Otherwise ./shapechange.*, $XDG_CONFIG_HOME/shapechange/config.* and
// ~/.config/shapechange/config.* are tried in order, YAML before TOML.
func LocateConfig(explicitPath string) (LocationResult, error) {
	if path := strings.TrimSpace(explicitPath); path != "" {
		return pinned(filepath.Clean(path), ConfigSourceExplicit)
	}
	if path, ok := os.LookupEnv(EnvConfig); ok && strings.TrimSpace(path) != "" {
		return pinned(strings.TrimSpace(path), ConfigSourceEnv)
	}

	for _, c := range candidates {
		dir, ok := c.dir()
		if !ok {
			continue
		}
		for _, stem := range c.stems {
			for _, ext := range configExtensions {
				path := filepath.Join(dir, stem+ext)
				if exists(path) {
					return LocationResult{Path: path, Source: c.source}, nil
				}
			}
		}
	}
	return LocationResult{}, ErrConfigNotFound
}

func pinned(path string, source ConfigSource) (LocationResult, error) {
	if isURL(path) {
		return LocationResult{Path: path, Source: ConfigSourceRemote}, nil
	}
	abs, err := toAbsolute(path)
	if err != nil {
		return LocationResult{}, err
	}
	if !exists(abs) {
		return LocationResult{}, fmt.Errorf("%w: %s", ErrConfigNotFound, abs)
	}
	return LocationResult{Path: abs, Source: source}, nil
}

func workingDir() (string, bool) {
	wd, err := os.Getwd()
	return wd, err == nil
}

func xdgDir() (string, bool) {
	xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if xdg == "" {
		return "", false
	}
	return filepath.Join(xdg, "shapechange"), true
}

func homeConfigDir() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", false
	}
	return filepath.Join(home, ".config", "shapechange"), true
}

func toAbsolute(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	return abs, nil
}

func exists(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !stat.IsDir()
}
