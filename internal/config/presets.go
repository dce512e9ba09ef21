package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// QualityPreset maps a named quality level to Ghostscript parameters.
type QualityPreset struct {
	DPI         int    `yaml:"dpi"`
	PDFSettings string `yaml:"pdfsettings"`
}

// PresetsConfig holds the quality presets offered by the compression API.
type PresetsConfig struct {
	Presets map[string]QualityPreset `yaml:"presets"`
}

// Get returns the preset for a quality name.
func (c *PresetsConfig) Get(quality string) (QualityPreset, bool) {
	preset, ok := c.Presets[quality]
	return preset, ok
}

// LoadPresets loads quality presets from config/presets.yaml.
func LoadPresets() (*PresetsConfig, error) {
	return LoadPresetsFromPath(filepath.Join("config", "presets.yaml"))
}

// LoadPresetsFromPath loads quality presets from a specific path.
func LoadPresetsFromPath(path string) (*PresetsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets config: %w", err)
	}

	var cfg PresetsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse presets config: %w", err)
	}

	for name, preset := range cfg.Presets {
		if preset.DPI <= 0 {
			return nil, fmt.Errorf("preset %s: dpi must be positive", name)
		}
		if preset.PDFSettings == "" {
			return nil, fmt.Errorf("preset %s: pdfsettings is required", name)
		}
	}

	return &cfg, nil
}

// LoadPresetsOrDefault loads presets or returns the built-in set when no
// config file is present.
func LoadPresetsOrDefault() *PresetsConfig {
	cfg, err := LoadPresets()
	if err != nil {
		return DefaultPresets()
	}
	return cfg
}

// DefaultPresets returns the built-in quality presets.
func DefaultPresets() *PresetsConfig {
	return &PresetsConfig{
		Presets: map[string]QualityPreset{
			"high":   {DPI: 300, PDFSettings: "/prepress"},
			"medium": {DPI: 200, PDFSettings: "/printer"},
			"low":    {DPI: 150, PDFSettings: "/ebook"},
		},
	}
}
