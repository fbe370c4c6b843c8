package dam

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config controls how the loader treats derived lumps.
type Config struct {
	// AllowBlockmapRegeneration builds a blockmap when the lump is missing,
	// unusable or too large for signed offsets.
	AllowBlockmapRegeneration bool `yaml:"allowBlockmapRegeneration"`
	// ForceBlockmapRegeneration always builds a blockmap, ignoring the lump.
	ForceBlockmapRegeneration bool `yaml:"forceBlockmapRegeneration"`
	// AllowRejectRegeneration synthesizes a reject matrix when the lump is
	// missing or short.
	AllowRejectRegeneration bool `yaml:"allowRejectRegeneration"`
	// ForceRejectRegeneration always synthesizes a reject matrix.
	ForceRejectRegeneration bool `yaml:"forceRejectRegeneration"`
}

// DefaultConfig allows both regenerations and forces neither.
func DefaultConfig() Config {
	return Config{
		AllowBlockmapRegeneration: true,
		AllowRejectRegeneration:   true,
	}
}

// ParseConfig reads a YAML config. Keys it does not set keep their default
// values; unknown keys are an error.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	return ParseConfig(data)
}
