package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	errMissingDatabasePath = errors.New("config: DatabasePath must be set")
	errMissingResourceDir  = errors.New("config: ResourceDataDirectoryPath must be set")
)

// fileOverrides is the subset of Options an on-disk override file may set.
// Kept deliberately small: most callers construct Options programmatically,
// this file is for the rare hand-edited local override, matching the
// teacher's LocalConfig/LoadLocalConfig pattern (a small struct read
// directly off disk with gopkg.in/yaml.v3, bypassing the main config path).
type fileOverrides struct {
	DatabaseFilenameSuffix  string `yaml:"database-filename-suffix"`
	ReaderThreadPoolSize    int    `yaml:"reader-thread-pool-size"`
	InlineResourceThreshold int64  `yaml:"inline-resource-threshold-bytes"`
}

// LoadOverridesFromFile reads a small YAML file and applies any fields it
// sets on top of o. A missing file is not an error; a malformed one is.
func LoadOverridesFromFile(o Options, path string) (Options, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return o, nil
	}
	if err != nil {
		return o, fmt.Errorf("config: read %s: %w", path, err)
	}

	var overrides fileOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return o, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if overrides.DatabaseFilenameSuffix != "" {
		o.DatabaseFilenameSuffix = overrides.DatabaseFilenameSuffix
	}
	if overrides.ReaderThreadPoolSize > 0 {
		o.ReaderThreadPoolSize = overrides.ReaderThreadPoolSize
	}
	if overrides.InlineResourceThreshold > 0 {
		o.InlineResourceThreshold = overrides.InlineResourceThreshold
	}
	return o, nil
}
