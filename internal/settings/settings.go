// Package settings persists viewer preferences as YAML in the user config
// directory. The engine itself never reads these; they belong to whatever
// shell embeds it, but storage lives here so every frontend shares one file.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings holds the persisted preferences.
type Settings struct {
	Theme          string   `yaml:"theme"`
	FontSize       float64  `yaml:"fontSize"`
	RowHeight      float64  `yaml:"rowHeight"`
	KeybindingMode string   `yaml:"keybindingMode"`
	RecentFiles    []string `yaml:"recentFiles"`
	MaxRecentFiles int      `yaml:"maxRecentFiles"`
}

// Default returns the settings used when no config file exists yet.
func Default() Settings {
	return Settings{
		Theme:          "system",
		FontSize:       14,
		RowHeight:      24,
		KeybindingMode: "standard",
		MaxRecentFiles: 10,
	}
}

// Path returns the config file location, creating no directories.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "csvview", "config.yaml"), nil
}

// Load reads settings from path. A missing file yields the defaults.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	if s.MaxRecentFiles <= 0 {
		s.MaxRecentFiles = Default().MaxRecentFiles
	}
	return s, nil
}

// Save writes the settings to path, creating parent directories as needed.
func (s Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// AddRecentFile moves path to the front of the recent list, dropping
// duplicates and trimming to the configured cap.
func (s *Settings) AddRecentFile(path string) {
	out := make([]string, 0, len(s.RecentFiles)+1)
	out = append(out, path)
	for _, p := range s.RecentFiles {
		if p != path {
			out = append(out, p)
		}
	}
	if len(out) > s.MaxRecentFiles {
		out = out[:s.MaxRecentFiles]
	}
	s.RecentFiles = out
}
