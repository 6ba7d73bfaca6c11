// Package config decodes and merges the engine's configuration surface
// (spec §6 "Configuration surface") using the teacher's
// modules/zeta/config TOML idiom: an Overwrite(o *T) merge method per
// section and the overwrite(a, b string) "b wins if non-empty" helper.
package config

import (
	"bytes"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultHotMaxSize               = 1 << 20 // 1 MiB
	DefaultCacheMaxCount            = 500
	DefaultCacheMaxBytes            = 25 << 20 // 25 MiB
	DefaultMaxBundleSize            = 128 << 20
	DefaultSmallBundleThreshold     = 1 << 20
	DefaultDeadObjectThreshold      = 0.3
	DefaultMinBundlesForCompaction  = 4
	DefaultKeyPrefix                = "bundles/"
	DefaultSimilarityThreshold      = 50
)

func overwrite(a, b string) string {
	if len(b) != 0 {
		return b
	}
	return a
}

// Config is the full configuration surface table from spec §6, decoded
// from TOML and merged the way the teacher layers system/user/repo
// config files.
type Config struct {
	Store Store `toml:"store,omitempty"`
	Cache Cache `toml:"cache,omitempty"`
	Bundle Bundle `toml:"bundle,omitempty"`
	Diff  Diff  `toml:"diff,omitempty"`
}

// Store configures the object store's tiering rule (spec §4.2).
type Store struct {
	// HotMaxSize is the payload size at or below which objects live hot
	// (row store); above it objects go warm (bundle writer).
	HotMaxSize int64 `toml:"hotMaxSize,omitzero"`
}

// Cache configures the object store's bounded LRU (spec §3 "LRU entry").
type Cache struct {
	MaxCount int           `toml:"maxCount,omitzero"`
	MaxBytes int64         `toml:"maxBytes,omitzero"`
	TTL      time.Duration `toml:"ttl,omitzero"`
}

// Bundle configures the bundle writer/compactor (spec §4.4).
type Bundle struct {
	MaxSize                 int64   `toml:"maxSize,omitzero"`
	SmallBundleThreshold    int64   `toml:"smallBundleThreshold,omitzero"`
	DeadObjectThreshold     float64 `toml:"deadObjectThreshold,omitzero"`
	MinBundlesForCompaction int     `toml:"minBundlesForCompaction,omitzero"`
	KeyPrefix               string  `toml:"keyPrefix,omitempty"`
}

// Diff configures tree-diff rename/copy detection (spec §4.7).
type Diff struct {
	SimilarityThreshold int `toml:"similarityThreshold,omitzero"`
}

// Default returns the configuration surface at its documented defaults
// (spec §6 table).
func Default() *Config {
	return &Config{
		Store: Store{HotMaxSize: DefaultHotMaxSize},
		Cache: Cache{MaxCount: DefaultCacheMaxCount, MaxBytes: DefaultCacheMaxBytes},
		Bundle: Bundle{
			MaxSize:                 DefaultMaxBundleSize,
			SmallBundleThreshold:    DefaultSmallBundleThreshold,
			DeadObjectThreshold:     DefaultDeadObjectThreshold,
			MinBundlesForCompaction: DefaultMinBundlesForCompaction,
			KeyPrefix:               DefaultKeyPrefix,
		},
		Diff: Diff{SimilarityThreshold: DefaultSimilarityThreshold},
	}
}

// Decode parses TOML bytes into a Config, starting from Default() so any
// field the document omits keeps its documented default.
func Decode(data []byte) (*Config, error) {
	c := Default()
	if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Encode serialises c back to TOML, e.g. to persist an effective config
// after layering.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Overwrite merges o onto c in place, o's non-zero fields winning, the
// same layering idiom the teacher uses for system/user/repo config
// (modules/zeta/config/config.go Config.Overwrite).
func (c *Config) Overwrite(o *Config) {
	c.Store.Overwrite(&o.Store)
	c.Cache.Overwrite(&o.Cache)
	c.Bundle.Overwrite(&o.Bundle)
	c.Diff.Overwrite(&o.Diff)
}

func (s *Store) Overwrite(o *Store) {
	if o.HotMaxSize > 0 {
		s.HotMaxSize = o.HotMaxSize
	}
}

func (c *Cache) Overwrite(o *Cache) {
	if o.MaxCount > 0 {
		c.MaxCount = o.MaxCount
	}
	if o.MaxBytes > 0 {
		c.MaxBytes = o.MaxBytes
	}
	if o.TTL > 0 {
		c.TTL = o.TTL
	}
}

func (b *Bundle) Overwrite(o *Bundle) {
	if o.MaxSize > 0 {
		b.MaxSize = o.MaxSize
	}
	if o.SmallBundleThreshold > 0 {
		b.SmallBundleThreshold = o.SmallBundleThreshold
	}
	if o.DeadObjectThreshold > 0 {
		b.DeadObjectThreshold = o.DeadObjectThreshold
	}
	if o.MinBundlesForCompaction > 0 {
		b.MinBundlesForCompaction = o.MinBundlesForCompaction
	}
	b.KeyPrefix = overwrite(b.KeyPrefix, o.KeyPrefix)
}

func (d *Diff) Overwrite(o *Diff) {
	if o.SimilarityThreshold > 0 {
		d.SimilarityThreshold = o.SimilarityThreshold
	}
}
