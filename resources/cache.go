package resources

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"spear/pe"
)

// Cache holds recognised assets in memory and mirrors them to dir
type Cache struct {
	mu           sync.RWMutex
	dir          string
	fingerprints []Fingerprint
	entries      map[Role][]byte
	log          *logger.Logger
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithFingerprints replaces the default fingerprint table
func WithFingerprints(fps ...Fingerprint) CacheOption {
	return func(c *Cache) {
		c.fingerprints = fps
	}
}

// NewCache creates an empty cache persisted under dir
func NewCache(dir string, options ...CacheOption) *Cache {
	c := &Cache{
		dir:          dir,
		fingerprints: DefaultFingerprints,
		entries:      make(map[Role][]byte),
		log:          logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "resource-cache")),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Dir is the cache directory
func (c *Cache) Dir() string {
	return c.dir
}

// Load reads every cached file present on disk and returns how many roles were restored
func (c *Cache) Load() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	loaded := 0
	for _, f := range c.fingerprints {
		if f.CacheFile == "" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(c.dir, f.CacheFile))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return loaded, fmt.Errorf("failed to read cached %s: %w", f.Role, err)
		}

		c.entries[f.Role] = data
		loaded++
	}

	c.log.Debugln("Loaded", loaded, "cached assets from", c.dir)
	return loaded, nil
}

// Analyze classifies data and, on a match, stores and persists it under the matching role
func (c *Cache) Analyze(data []byte) (Role, bool) {
	f, ok := Classify(c.fingerprints, data)
	if !ok || f.CacheFile == "" {
		return "", false
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	c.mu.Lock()
	c.entries[f.Role] = stored
	c.mu.Unlock()

	if err := c.persist(f, stored); err != nil {
		c.log.Warn("Failed to persist cached asset: ", err)
	} else {
		c.log.Infoln("Cached", f.Role, "(", len(stored), "bytes )")
	}

	return f.Role, true
}

func (c *Cache) persist(f Fingerprint, data []byte) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, f.CacheFile), data, 0644)
}

// Get returns the cached bytes for role
func (c *Cache) Get(role Role) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.entries[role]
	return data, ok
}

// Complete reports whether every cacheable role is present
func (c *Cache) Complete() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, f := range c.fingerprints {
		if f.CacheFile == "" {
			continue
		}
		if _, ok := c.entries[f.Role]; !ok {
			return false
		}
	}
	return true
}

// HarvestStats summarises one harvest
type HarvestStats struct {
	FromCache bool
	Walk      pe.WalkStats
	Matched   map[Role]int
}

// Harvest fills the cache from the resources of the executable at exePath.
// The PE is not opened when the cache directory already holds every role.
func (c *Cache) Harvest(exePath string) (HarvestStats, error) {
	stats := HarvestStats{Matched: make(map[Role]int)}

	if _, err := c.Load(); err != nil {
		c.log.Warn("Failed to load cache, walking resources: ", err)
	}
	if c.Complete() {
		c.log.Infoln("All assets cached, skipping resource walk")
		stats.FromCache = true
		return stats, nil
	}

	img, err := pe.Open(exePath)
	if err != nil {
		return stats, err
	}

	walk, err := img.Resources(func(r pe.Resource) {
		if role, ok := c.Analyze(r.Data); ok {
			stats.Matched[role]++
		}
	})
	stats.Walk = walk
	if err != nil {
		return stats, fmt.Errorf("failed to walk resources of %s: %w", exePath, err)
	}

	for _, m := range walk.Malformed {
		c.log.Debugln("Skipped resource node:", m)
	}
	c.log.Infoln("Walked", walk.Leaves, "resources,", len(walk.Malformed), "malformed, matched", len(stats.Matched), "roles")

	return stats, nil
}
