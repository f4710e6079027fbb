package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source types understood by the builder.
const (
	TypeReddit    = "reddit"
	TypeTwitter   = "twitter"
	TypeLaunchpad = "launchpad"
)

// Config is one entry of the sources file.
type Config struct {
	ID             string         `json:"id" yaml:"id"`
	Type           string         `json:"type" yaml:"type"`
	Enabled        *bool          `json:"enabled" yaml:"enabled"`
	Scopes         []string       `json:"scopes" yaml:"scopes"`
	RequestDelayMs int            `json:"request_delay_ms" yaml:"request_delay_ms"`
	SearchDelayMs  int            `json:"search_delay_ms" yaml:"search_delay_ms"`
	ScopeDelayMs   int            `json:"scope_delay_ms" yaml:"scope_delay_ms"`
	NewLimit       int            `json:"new_limit" yaml:"new_limit"`
	SearchLimit    int            `json:"search_limit" yaml:"search_limit"`
	SearchSample   int            `json:"search_sample" yaml:"search_sample"`
	MinEngagement  int            `json:"min_engagement" yaml:"min_engagement"`
	EveryNCycles   int            `json:"every_n_cycles" yaml:"every_n_cycles"`
	Config         map[string]any `json:"config" yaml:"config"`
}

// Registry is the decoded sources file.
type Registry struct {
	Keywords []string `json:"keywords" yaml:"keywords"`
	Sources  []Config `json:"sources" yaml:"sources"`
}

// IsEnabled treats a missing flag as enabled.
func (c Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// RequestDelay is the pacing floor between two requests of this source.
func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMs) * time.Millisecond
}

// SearchDelay is the pause between two searches inside one scope.
func (c Config) SearchDelay() time.Duration {
	return time.Duration(c.SearchDelayMs) * time.Millisecond
}

// ScopeDelay is the pause between two scopes.
func (c Config) ScopeDelay() time.Duration {
	return time.Duration(c.ScopeDelayMs) * time.Millisecond
}

// ConfigString returns the trimmed string value for key from cfg.Config or a fallback.
func ConfigString(cfg Config, key, fallback string) string {
	if cfg.Config != nil {
		if raw, ok := cfg.Config[key]; ok {
			if val, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(val); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return fallback
}

// Enabled returns the enabled entries in file order.
func (r Registry) Enabled() []Config {
	out := make([]Config, 0, len(r.Sources))
	for _, s := range r.Sources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// LoadRegistry reads a YAML or JSON sources file. ${VAR} references are
// expanded from the environment before decoding.
func LoadRegistry(path string) (Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Registry{}, errors.New("sources file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return Registry{}, fmt.Errorf("open sources file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return Registry{}, fmt.Errorf("read sources file: %w", err)
	}

	return ParseRegistry([]byte(os.ExpandEnv(string(raw))), filepath.Ext(path))
}

// ParseRegistry decodes and validates a sources document.
func ParseRegistry(data []byte, ext string) (Registry, error) {
	reg, err := decodeRegistry(data, ext)
	if err != nil {
		return Registry{}, err
	}
	if len(reg.Sources) == 0 {
		return Registry{}, errors.New("sources file contains no sources entries")
	}

	seen := make(map[string]struct{}, len(reg.Sources))
	for i := range reg.Sources {
		s := sanitizeConfig(reg.Sources[i])
		if err := validateConfig(s); err != nil {
			return Registry{}, fmt.Errorf("source[%d]: %w", i, err)
		}
		if _, dup := seen[s.ID]; dup {
			return Registry{}, fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
		reg.Sources[i] = s
	}

	kws := reg.Keywords[:0]
	for _, kw := range reg.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			kws = append(kws, kw)
		}
	}
	reg.Keywords = kws

	return reg, nil
}

type unmarshalFn func([]byte, any) error

func decodeRegistry(data []byte, ext string) (Registry, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg Registry
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return Registry{}, errors.New("sources file format not recognized (expected YAML or JSON)")
}

func sanitizeConfig(c Config) Config {
	c.ID = strings.TrimSpace(c.ID)
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if c.Config == nil {
		c.Config = map[string]any{}
	}

	scopes := make([]string, 0, len(c.Scopes))
	for _, s := range c.Scopes {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	c.Scopes = scopes
	return c
}

func validateConfig(c Config) error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	switch c.Type {
	case TypeReddit, TypeTwitter, TypeLaunchpad:
	case "":
		return fmt.Errorf("type is required for source %q", c.ID)
	default:
		return fmt.Errorf("unsupported type %q for source %q", c.Type, c.ID)
	}
	// twitter falls back to DefaultTwitterQueries
	if c.IsEnabled() && len(c.Scopes) == 0 && c.Type != TypeTwitter {
		return fmt.Errorf("scopes are required for source %q", c.ID)
	}
	if c.RequestDelayMs < 0 || c.SearchDelayMs < 0 || c.ScopeDelayMs < 0 {
		return fmt.Errorf("delays must not be negative for source %q", c.ID)
	}
	return nil
}
