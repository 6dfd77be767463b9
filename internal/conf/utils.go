package conf

import (
	"os"
	"path/filepath"

	"github.com/tphakala/sightline-go/internal/errors"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}
	return []string{
		".",
		filepath.Join(homeDir, ".config", "sightline"),
		"/etc/sightline",
	}, nil
}

// FindConfigFile returns the first config.yaml found on the search paths.
func FindConfigFile() (string, error) {
	paths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	for _, dir := range paths {
		candidate := filepath.Join(dir, "config.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", errors.Newf("config.yaml not found in %v", paths).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Build()
}

// UserConfigPath is where a new config file is written by default.
func UserConfigPath() (string, error) {
	paths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	return filepath.Join(paths[1], "config.yaml"), nil
}
