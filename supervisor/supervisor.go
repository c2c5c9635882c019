// Package supervisor ties the lifetime of cooperating processes to one kill-on-close job.
// Closing the job, or the supervisor exiting, ends every member.
package supervisor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"spear/process"
)

// Handle is an opaque OS handle
type Handle uintptr

// SpawnSpec describes a process to start
type SpawnSpec struct {
	Path   string
	Args   []string
	Dir    string
	Hidden bool // no console window and SW_HIDE
}

// JobAPI is the OS surface the supervisor drives
type JobAPI interface {
	CreateJob() (Handle, error)
	SetKillOnClose(job Handle) error

	// Spawn starts a process without inheriting standard handles
	Spawn(spec SpawnSpec) (Handle, process.ProcessID, error)

	// Open opens an existing process with the rights needed for Assign
	Open(pid process.ProcessID) (Handle, error)

	Assign(job, proc Handle) error
	CloseHandle(h Handle) error
}

// Process is a tracked member. Managed is false when it escaped the job.
type Process struct {
	Role    string
	PID     process.ProcessID
	Managed bool
}

func (p Process) String() string {
	state := "managed"
	if !p.Managed {
		state = "unmanaged"
	}
	return fmt.Sprintf("%s(%d, %s)", p.Role, p.PID, state)
}

// Group owns a job handle. Close is the operative release: with kill-on-close set every
// member process ends when it runs.
type Group struct {
	handle Handle
	api    JobAPI

	mu          sync.Mutex
	members     []Process
	killOnClose bool
	closed      bool
}

// Members returns the processes tracked so far
func (g *Group) Members() []Process {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Process, len(g.members))
	copy(out, g.members)
	return out
}

// KillOnClose reports whether closing the group terminates its members
func (g *Group) KillOnClose() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.killOnClose
}

func (g *Group) add(p Process) {
	g.mu.Lock()
	g.members = append(g.members, p)
	g.mu.Unlock()
}

// Close releases the job handle. Further calls are no-ops.
func (g *Group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	if err := g.api.CloseHandle(g.handle); err != nil {
		return fmt.Errorf("%w: close job: %v", process.ErrProcessControl, err)
	}
	return nil
}

// Supervisor creates groups and tracks processes into them
type Supervisor struct {
	api      JobAPI
	finder   process.ProcessFinder
	interval time.Duration
	log      *logger.Logger

	mu     sync.Mutex
	groups []*Group
}

// Option configures a Supervisor
type Option func(*Supervisor)

// WithPollInterval sets the default interval for TrackExistingByName
func WithPollInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		s.interval = d
	}
}

// New creates a supervisor over api, discovering processes through finder
func New(api JobAPI, finder process.ProcessFinder, options ...Option) *Supervisor {
	s := &Supervisor{
		api:      api,
		finder:   finder,
		interval: 100 * time.Millisecond,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "supervisor")),
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// CreateGroup creates a job. On failure the caller continues unsupervised.
func (s *Supervisor) CreateGroup() (*Group, error) {
	job, err := s.api.CreateJob()
	if err != nil {
		err = fmt.Errorf("%w: create job: %v", process.ErrProcessControl, err)
		s.log.Warn("No job object, processes will not be supervised: ", err)
		return nil, err
	}

	g := &Group{handle: job, api: s.api}
	s.mu.Lock()
	s.groups = append(s.groups, g)
	s.mu.Unlock()

	s.log.Infoln("Created job object")
	return g, nil
}

// ConfigureKillOnClose makes closing g terminate all of its members
func (s *Supervisor) ConfigureKillOnClose(g *Group) error {
	if g == nil {
		return fmt.Errorf("%w: no group", process.ErrProcessControl)
	}
	if err := s.api.SetKillOnClose(g.handle); err != nil {
		err = fmt.Errorf("%w: kill-on-close: %v", process.ErrProcessControl, err)
		s.log.Warn("Job will not kill members on close: ", err)
		return err
	}

	g.mu.Lock()
	g.killOnClose = true
	g.mu.Unlock()

	s.log.Infoln("Job configured to kill members on close")
	return nil
}

// SpawnAndTrack starts spec and assigns it to g. A nil group spawns unsupervised.
// Only a failed spawn is an error; a failed assignment yields an unmanaged Process.
func (s *Supervisor) SpawnAndTrack(g *Group, role string, spec SpawnSpec) (Process, error) {
	h, pid, err := s.api.Spawn(spec)
	if err != nil {
		err = fmt.Errorf("%w: spawn %s (%s): %v", process.ErrProcessControl, role, spec.Path, err)
		s.log.Warn("Failed to start process: ", err)
		return Process{Role: role}, err
	}

	s.log.Infoln("Started", role, "pid", pid)
	return s.assign(g, role, pid, h), nil
}

// TrackExistingByName waits, without a timeout, for a process called name and assigns it to g.
// interval <= 0 uses the supervisor default.
func (s *Supervisor) TrackExistingByName(g *Group, role, name string, interval time.Duration) Process {
	if interval <= 0 {
		interval = s.interval
	}

	found := s.finder.WaitForProcess(name, interval)

	h, err := s.api.Open(found.PID)
	if err != nil {
		s.log.Warn("Failed to open "+found.String()+", it stays unmanaged: ", err)
		p := Process{Role: role, PID: found.PID}
		if g != nil {
			g.add(p)
		}
		return p
	}

	return s.assign(g, role, found.PID, h)
}

// assign moves h into g and always closes h afterwards; the job keeps control without it
func (s *Supervisor) assign(g *Group, role string, pid process.ProcessID, h Handle) Process {
	p := Process{Role: role, PID: pid}

	defer func() {
		if err := s.api.CloseHandle(h); err != nil {
			s.log.Warn("Failed to close process handle: ", err)
		}
	}()

	if g == nil {
		s.log.Warn("No job object for "+p.String()+": ", process.ErrProcessControl)
		return p
	}

	if err := s.api.Assign(g.handle, h); err != nil {
		s.log.Warn("Failed to assign "+p.String()+" to job: ", err)
		g.add(p)
		return p
	}

	p.Managed = true
	g.add(p)
	s.log.Infoln("Assigned", p.String(), "to job")
	return p
}

// Close closes every group created by this supervisor
func (s *Supervisor) Close() error {
	s.mu.Lock()
	groups := s.groups
	s.groups = nil
	s.mu.Unlock()

	var errs []error
	for _, g := range groups {
		if err := g.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
