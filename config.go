package collide

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// Config holds the engine options. It is copied into the engine at
// construction and not consulted again, except for UseSpatialPartitioning
// which SetUseSpatialPartitioning can flip.
type Config struct {
	// CellSize is the edge length of one grid cell in world units.
	CellSize float32
	// RebuildInterval is the frame time between forced index rebuilds.
	// Zero rebuilds every frame.
	RebuildInterval time.Duration
	// AdaptiveRebuild rebuilds early when enough bodies moved far enough.
	AdaptiveRebuild bool
	// MovementThreshold is the per-body distance that counts as "moved".
	MovementThreshold float32
	// MovedFractionThreshold is the share of moved bodies that triggers a rebuild.
	MovedFractionThreshold float32
	FrustumCulling         bool
	UseSpatialPartitioning bool
	Debug                  bool
}

func DefaultConfig() Config {
	return Config{
		CellSize:               DefaultCellSize,
		RebuildInterval:        100 * time.Millisecond,
		AdaptiveRebuild:        true,
		MovementThreshold:      1.0,
		MovedFractionThreshold: 0.1,
		FrustumCulling:         false,
		UseSpatialPartitioning: true,
	}
}

// Normalize replaces unusable values with defaults and returns one warning per
// repaired field.
func (c *Config) Normalize() []string {
	var warnings []string
	def := DefaultConfig()

	if !(c.CellSize > 0) || !finite(c.CellSize) {
		warnings = append(warnings, fmt.Sprintf("cell size %v is not positive, using %v", c.CellSize, def.CellSize))
		c.CellSize = def.CellSize
	}
	if c.RebuildInterval < 0 {
		warnings = append(warnings, fmt.Sprintf("rebuild interval %v is negative, rebuilding every frame", c.RebuildInterval))
		c.RebuildInterval = 0
	}
	if c.MovementThreshold < 0 || !finite(c.MovementThreshold) {
		warnings = append(warnings, fmt.Sprintf("movement threshold %v is invalid, using %v", c.MovementThreshold, def.MovementThreshold))
		c.MovementThreshold = def.MovementThreshold
	}
	if math.IsNaN(float64(c.MovedFractionThreshold)) {
		warnings = append(warnings, fmt.Sprintf("moved fraction threshold is NaN, using %v", def.MovedFractionThreshold))
		c.MovedFractionThreshold = def.MovedFractionThreshold
	} else if c.MovedFractionThreshold < 0 || c.MovedFractionThreshold > 1 {
		clamped := mgl32.Clamp(c.MovedFractionThreshold, 0, 1)
		warnings = append(warnings, fmt.Sprintf("moved fraction threshold %v outside [0,1], clamped to %v", c.MovedFractionThreshold, clamped))
		c.MovedFractionThreshold = clamped
	}
	return warnings
}

// LoadConfig reads a JSON or YAML file over DefaultConfig. Fields missing
// from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	var raw configFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := raw.apply(&cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// configFile mirrors Config with optional fields and a human readable
// interval ("250ms").
type configFile struct {
	CellSize               *float32 `json:"cell_size" yaml:"cell_size"`
	RebuildInterval        *string  `json:"rebuild_interval" yaml:"rebuild_interval"`
	AdaptiveRebuild        *bool    `json:"adaptive_rebuild" yaml:"adaptive_rebuild"`
	MovementThreshold      *float32 `json:"movement_threshold" yaml:"movement_threshold"`
	MovedFractionThreshold *float32 `json:"moved_fraction_threshold" yaml:"moved_fraction_threshold"`
	FrustumCulling         *bool    `json:"frustum_culling" yaml:"frustum_culling"`
	UseSpatialPartitioning *bool    `json:"use_spatial_partitioning" yaml:"use_spatial_partitioning"`
	Debug                  *bool    `json:"debug" yaml:"debug"`
}

func (f configFile) apply(cfg *Config) error {
	if f.CellSize != nil {
		cfg.CellSize = *f.CellSize
	}
	if f.RebuildInterval != nil {
		d, err := time.ParseDuration(*f.RebuildInterval)
		if err != nil {
			return fmt.Errorf("rebuild_interval: %w", err)
		}
		cfg.RebuildInterval = d
	}
	if f.AdaptiveRebuild != nil {
		cfg.AdaptiveRebuild = *f.AdaptiveRebuild
	}
	if f.MovementThreshold != nil {
		cfg.MovementThreshold = *f.MovementThreshold
	}
	if f.MovedFractionThreshold != nil {
		cfg.MovedFractionThreshold = *f.MovedFractionThreshold
	}
	if f.FrustumCulling != nil {
		cfg.FrustumCulling = *f.FrustumCulling
	}
	if f.UseSpatialPartitioning != nil {
		cfg.UseSpatialPartitioning = *f.UseSpatialPartitioning
	}
	if f.Debug != nil {
		cfg.Debug = *f.Debug
	}
	return nil
}
