// Package config loads repository settings from .jj/config.toml, JJ_* env
// vars, and built-in defaults. Settings are read once per operation and
// passed into the core as a plain struct, never consulted ambiently.
package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds every setting the core consumes.
type Config struct {
	UI     UIConfig     `mapstructure:"ui"`
	Split  SplitConfig  `mapstructure:"split"`
	Revset RevsetConfig `mapstructure:"revset"`
}

// UIConfig holds user-interface related settings.
type UIConfig struct {
	// DefaultDescription seeds the description editor when a commit has no
	// description of its own.
	DefaultDescription string `mapstructure:"default-description"`
}

// SplitConfig holds settings for the split operation.
type SplitConfig struct {
	// LegacyBookmarkBehavior makes bookmarks on the commit being split follow
	// to the second commit instead of the first.
	LegacyBookmarkBehavior bool `mapstructure:"legacy-bookmark-behavior"`
}

// RevsetConfig holds commit-set policies.
type RevsetConfig struct {
	// ImmutableBookmarks name commits whose ancestors must not be rewritten.
	ImmutableBookmarks []string `mapstructure:"immutable-bookmarks"`
}

// Load reads configuration for the repository at root, applying built-in
// defaults for anything not set by the config file or environment.
func Load(root string) (Config, error) {
	v := viper.New()
	v.SetDefault("ui.default-description", "")
	v.SetDefault("split.legacy-bookmark-behavior", false)
	v.SetDefault("revset.immutable-bookmarks", []string{})

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(filepath.Join(root, ".jj"))
	v.SetEnvPrefix("JJ")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
