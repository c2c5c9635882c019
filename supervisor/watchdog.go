package supervisor

import "time"

const (
	RoleService = "service"
	RolePatcher = "patcher"
	RoleGame    = "game"
)

// WatchdogConfig lists the processes started next to the game
type WatchdogConfig struct {
	Service  SpawnSpec
	Patcher  SpawnSpec
	GameName string
	Interval time.Duration
}

// Watchdog holds the group and the tracked processes of one game session
type Watchdog struct {
	Group   *Group // nil when no job could be created
	Spawned []Process

	// Game yields the game process once it has been found and assigned
	Game <-chan Process
}

// StartWatchdog creates a kill-on-close group, starts the service and patcher into it
// and tracks the game process on a goroutine. Every failure degrades supervision of the
// affected process only.
func StartWatchdog(s *Supervisor, cfg WatchdogConfig) *Watchdog {
	w := &Watchdog{}

	g, err := s.CreateGroup()
	if err == nil {
		if err := s.ConfigureKillOnClose(g); err != nil {
			s.log.Warn("Continuing without kill-on-close: ", err)
		}
		w.Group = g
	}

	for _, spawn := range []struct {
		role string
		spec SpawnSpec
	}{
		{RoleService, cfg.Service},
		{RolePatcher, cfg.Patcher},
	} {
		if spawn.spec.Path == "" {
			continue
		}
		if p, err := s.SpawnAndTrack(w.Group, spawn.role, spawn.spec); err == nil {
			w.Spawned = append(w.Spawned, p)
		}
	}

	game := make(chan Process, 1)
	w.Game = game
	go func() {
		game <- s.TrackExistingByName(w.Group, RoleGame, cfg.GameName, cfg.Interval)
		close(game)
	}()

	return w
}

// Close ends the session: with kill-on-close, every member process exits
func (w *Watchdog) Close() error {
	if w.Group == nil {
		return nil
	}
	return w.Group.Close()
}
