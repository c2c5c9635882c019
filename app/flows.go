package app

import (
	"spear/hooks"
	"spear/supervisor"
)

// InstallInterception installs and enables set. Partial installation is kept.
func (s *State) InstallInterception(set *hooks.Set) int {
	n, err := set.InstallAll()
	if err != nil {
		s.log.Warn("Some resource hooks are missing: ", err)
	}
	s.log.Infoln("Resource hooks enabled:", n, set.Enabled())
	return n
}

// HarvestResources fills the fingerprint cache from exePath, preferring cached files
func (s *State) HarvestResources(exePath string) {
	stats, err := s.Cache.Harvest(exePath)
	if err != nil {
		s.log.Warn("Resource harvest failed: ", err)
		return
	}
	s.log.Infoln("Resources: cached", stats.FromCache, "matched", stats.Matched, "complete", s.Cache.Complete())
}

// WatchdogConfig resolves the companion processes from the configuration
func (s *State) WatchdogConfig() supervisor.WatchdogConfig {
	cfg := s.Config
	return supervisor.WatchdogConfig{
		Service: supervisor.SpawnSpec{
			Path:   s.Paths.Resolve(cfg.ServicePath),
			Args:   cfg.ServiceArgs,
			Dir:    s.Paths.Resolve(cfg.ServiceDir),
			Hidden: true,
		},
		Patcher: supervisor.SpawnSpec{
			Path:   s.Paths.Resolve(cfg.PatcherPath),
			Hidden: true,
		},
		GameName: cfg.GameExe,
		Interval: cfg.PollInterval.Duration,
	}
}

// StartWatchdog couples the companion processes and the game into one job
func (s *State) StartWatchdog(sup *supervisor.Supervisor) *supervisor.Watchdog {
	s.log.Infoln("Spawning watchdog")
	return supervisor.StartWatchdog(sup, s.WatchdogConfig())
}
