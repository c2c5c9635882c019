// Package config loads and saves the spear configuration under the user's local data directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	AppDirName     = "spear"
	ConfigFileName = "config.toml"
	CacheDirName   = "cache"
	PeacockDirName = "peacock"
)

var log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "config"))

// Duration is a time.Duration written as "100ms" in the file
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config is the on-disk configuration. Relative paths resolve against the spear directory.
type Config struct {
	PeacockGithubRepo string `toml:"peacock_github_repo"`

	LauncherExe string `toml:"launcher_exe"`
	GameExe     string `toml:"game_exe"`
	ModuleName  string `toml:"module_name"`

	PollInterval   Duration `toml:"poll_interval"`
	ScanWorkers    int      `toml:"scan_workers"` // 0 means one per CPU
	HideUntilReady bool     `toml:"hide_until_ready"`
	InstallHooks   bool     `toml:"install_hooks"`

	ServicePath string   `toml:"service_path"`
	ServiceArgs []string `toml:"service_args"`
	ServiceDir  string   `toml:"service_dir"`
	PatcherPath string   `toml:"patcher_path"`
}

// Default returns the configuration written when no file exists
func Default() *Config {
	return &Config{
		PeacockGithubRepo: "thepeacockproject/peacock",
		LauncherExe:       "Launcher.exe",
		GameExe:           "HITMAN3.exe",
		ModuleName:        "winmm.dll",
		PollInterval:      Duration{100 * time.Millisecond},
		HideUntilReady:    true,
		InstallHooks:      true,
		ServicePath:       filepath.Join(PeacockDirName, "nodedist", "node.exe"),
		ServiceArgs:       []string{"chunk0.js"},
		ServiceDir:        PeacockDirName,
		PatcherPath:       filepath.Join(PeacockDirName, "PeacockPatcher.exe"),
	}
}

// Paths locates the files of one spear installation
type Paths struct {
	Root       string
	ConfigFile string
	CacheDir   string
	PeacockDir string
}

// PathsAt lays out the spear files under root
func PathsAt(root string) Paths {
	return Paths{
		Root:       root,
		ConfigFile: filepath.Join(root, ConfigFileName),
		CacheDir:   filepath.Join(root, CacheDirName),
		PeacockDir: filepath.Join(root, PeacockDirName),
	}
}

// DefaultPaths uses the local application data directory (%LOCALAPPDATA% on Windows)
func DefaultPaths() (Paths, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return Paths{}, fmt.Errorf("failed to locate local data directory: %w", err)
	}
	return PathsAt(filepath.Join(base, AppDirName)), nil
}

// Resolve makes a configured path absolute under the spear directory
func (p Paths) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Root, path)
}

// Load reads the config file, writing the defaults when it does not exist yet.
// Keys missing from the file keep their default values; an unreadable file yields the defaults.
func Load(paths Paths) (*Config, error) {
	log.Infoln("Loading config from", paths.ConfigFile)

	cfg := Default()
	_, err := toml.DecodeFile(paths.ConfigFile, cfg)
	switch {
	case err == nil:
		cfg.normalize()
		log.Infoln("Loaded config: peacock_github_repo =", cfg.PeacockGithubRepo)
		return cfg, nil
	case errors.Is(err, fs.ErrNotExist):
		log.Infoln("Config not found, creating default")
		cfg = Default()
		if err := Save(paths, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	default:
		log.Warn("Invalid config, using defaults: ", err)
		return Default(), nil
	}
}

// normalize replaces values that would make the poll loops spin
func (c *Config) normalize() {
	if c.PollInterval.Duration <= 0 {
		interval := Default().PollInterval
		log.Infoln("poll_interval", c.PollInterval.Duration, "is not positive, using", interval.Duration)
		c.PollInterval = interval
	}
}

// Save writes cfg, creating the spear directory if needed
func Save(paths Paths, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(paths.ConfigFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
