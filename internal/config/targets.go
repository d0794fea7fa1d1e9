package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
	"gopkg.in/yaml.v3"
)

// LoadTargets reads keyword and location lists from a .toml, .yaml or .yml
// file. An empty path yields the built-in defaults; lists missing from the
// file are filled from the defaults.
func LoadTargets(path string) (domain.Targets, error) {
	if path == "" {
		return domain.DefaultTargets(), nil
	}

	var t domain.Targets
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, &t); err != nil {
			return domain.Targets{}, fmt.Errorf("parse TARGETS_FILE %s: %w", path, err)
		}
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return domain.Targets{}, fmt.Errorf("read TARGETS_FILE %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &t); err != nil {
			return domain.Targets{}, fmt.Errorf("parse TARGETS_FILE %s: %w", path, err)
		}
	default:
		return domain.Targets{}, fmt.Errorf("unsupported TARGETS_FILE extension %q", ext)
	}
	return t.WithDefaults(), nil
}
