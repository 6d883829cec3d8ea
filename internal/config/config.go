// Package config reads the map config file: the initial map view, the
// choropleth datasets with their indicator descriptors, and the point
// overlay datasets.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-risk/internal/layer"
)

// Role decides whether a choropleth dataset's layers are bases or overlays.
type Role string

const (
	RoleBase    Role = "base"
	RoleOverlay Role = "overlay"
)

// MapView is the initial viewport.
type MapView struct {
	Title  string    `json:"title" yaml:"title" doc:"Page title" example:"Displacement Risk Atlas"`
	Center []float64 `json:"center" yaml:"center" doc:"Initial center as [lat, lon]"`
	Zoom   int       `json:"zoom" yaml:"zoom" doc:"Initial zoom level" example:"11"`
}

// Dataset is a spreadsheet whose rows point at per-unit geometry documents.
// Every descriptor becomes one layer over the dataset's joined collection.
type Dataset struct {
	Name  string `json:"name" yaml:"name" doc:"Dataset name" example:"tracts"`
	Title string `json:"title,omitempty" yaml:"title" doc:"Display name"`
	URL   string `json:"url" yaml:"url" doc:"CSV export URL or file path"`
	Role  Role   `json:"role" yaml:"role" enum:"base,overlay" doc:"Layer group for this dataset's descriptors"`
	// Keys are extra record attributes joined onto every feature on top of
	// the ones the descriptors reference.
	Keys          []string           `json:"keys,omitempty" yaml:"keys" doc:"Extra attributes to join"`
	Lenient       bool               `json:"lenient,omitempty" yaml:"lenient" doc:"Accept single Feature/Geometry/coordinate documents"`
	MatchProperty string             `json:"matchProperty,omitempty" yaml:"matchProperty" doc:"Drop raw features whose property differs from the record id"`
	Simplify      float64            `json:"simplify,omitempty" yaml:"simplify" minimum:"0" doc:"Douglas-Peucker tolerance in degrees; 0 keeps geometry as fetched"`
	Descriptors   []layer.Descriptor `json:"descriptors" yaml:"descriptors" doc:"One layer per descriptor"`
}

// PointDataset is a spreadsheet of lat/lon rows drawn as markers.
type PointDataset struct {
	Name    string          `json:"name" yaml:"name" doc:"Layer key" example:"libraries"`
	Title   string          `json:"title,omitempty" yaml:"title" doc:"Display name"`
	URL     string          `json:"url" yaml:"url" doc:"CSV export URL or file path"`
	Visible bool            `json:"visible" yaml:"visible" doc:"Overlay is on after load"`
	Rule    layer.PointRule `json:"rule" yaml:"rule" doc:"Marker defaults"`
}

// Config is the whole map config file.
type Config struct {
	Map         MapView        `json:"map" yaml:"map"`
	DefaultBase string         `json:"defaultBase,omitempty" yaml:"defaultBase" doc:"Base layer selected after load; the first base when empty"`
	Datasets    []Dataset      `json:"datasets" yaml:"datasets"`
	Points      []PointDataset `json:"points,omitempty" yaml:"points"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates config YAML. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Datasets {
		if c.Datasets[i].Role == "" {
			c.Datasets[i].Role = RoleBase
		}
	}
	if c.Map.Zoom == 0 {
		c.Map.Zoom = 11
	}
}

// Validate checks names, URLs, roles, descriptors and marker rules, and that
// every layer key is unique across the whole map.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Datasets) == 0 && len(c.Points) == 0 {
		errs = append(errs, errors.New("no datasets configured"))
	}

	names := map[string]bool{}
	keys := map[string]string{}
	claim := func(key, owner string) {
		if prev, ok := keys[key]; ok {
			errs = append(errs, fmt.Errorf("layer key %q used by %s and %s", key, prev, owner))
			return
		}
		keys[key] = owner
	}

	var bases []string
	for i, d := range c.Datasets {
		where := fmt.Sprintf("datasets[%d]", i)
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		} else if names[d.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate dataset name %q", where, d.Name))
		}
		names[d.Name] = true
		if d.URL == "" {
			errs = append(errs, fmt.Errorf("%s: url is required", where))
		}
		if d.Simplify < 0 {
			errs = append(errs, fmt.Errorf("%s: simplify must not be negative", where))
		}
		if d.Role != RoleBase && d.Role != RoleOverlay {
			errs = append(errs, fmt.Errorf("%s: unknown role %q", where, d.Role))
		}
		if len(d.Descriptors) == 0 {
			errs = append(errs, fmt.Errorf("%s: at least one descriptor is required", where))
		}
		for _, desc := range d.Descriptors {
			if err := desc.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", where, err))
				continue
			}
			claim(desc.Key, "dataset "+d.Name)
			if d.Role == RoleBase {
				bases = append(bases, desc.Key)
			}
		}
	}

	for i, p := range c.Points {
		where := fmt.Sprintf("points[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		} else if names[p.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate dataset name %q", where, p.Name))
		}
		names[p.Name] = true
		if p.URL == "" {
			errs = append(errs, fmt.Errorf("%s: url is required", where))
		}
		if err := p.Rule.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		if p.Name != "" {
			claim(p.Name, "points "+p.Name)
		}
	}

	if n := len(c.Map.Center); n != 0 && n != 2 {
		errs = append(errs, fmt.Errorf("map.center needs [lat, lon], got %d values", n))
	}
	if c.DefaultBase != "" && !slices.Contains(bases, c.DefaultBase) {
		errs = append(errs, fmt.Errorf("defaultBase %q is not a base layer", c.DefaultBase))
	}
	return errors.Join(errs...)
}

// BaseKeys returns the base layer keys in config order.
func (c *Config) BaseKeys() []string {
	var out []string
	for _, d := range c.Datasets {
		if d.Role != RoleBase {
			continue
		}
		for _, desc := range d.Descriptors {
			out = append(out, desc.Key)
		}
	}
	return out
}

// InitialBase is the configured default base, else the first base key.
func (c *Config) InitialBase() string {
	if c.DefaultBase != "" {
		return c.DefaultBase
	}
	if bases := c.BaseKeys(); len(bases) > 0 {
		return bases[0]
	}
	return ""
}
