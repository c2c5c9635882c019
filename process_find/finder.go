// Package process_find queries the OS process table. go-ps supplies the cheap listing
// used by polling loops; gopsutil fills in details for the processes we keep.
package process_find

import (
	"fmt"
	"strings"
	"time"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	ps "github.com/mitchellh/go-ps"
	gopsprocess "github.com/shirou/gopsutil/v3/process"

	"spear/process"
)

// Lister enumerates the process table
type Lister func() ([]ps.Process, error)

// Finder implements process.ProcessFinder
type Finder struct {
	list    Lister
	details bool
	log     *logger.Logger
}

// Option configures a Finder
type Option func(*Finder)

// WithLister replaces the process table source
func WithLister(l Lister) Option {
	return func(f *Finder) {
		f.list = l
	}
}

// WithDetails controls whether matches are enriched through gopsutil
func WithDetails(enabled bool) Option {
	return func(f *Finder) {
		f.details = enabled
	}
}

func New(options ...Option) *Finder {
	f := &Finder{
		list:    ps.Processes,
		details: true,
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "process-find")),
	}

	for _, opt := range options {
		opt(f)
	}

	return f
}

func (f *Finder) info(p ps.Process) process.ProcessInfo {
	pi := process.ProcessInfo{
		PID:  process.ProcessID(p.Pid()),
		PPID: process.ProcessID(p.PPid()),
		Name: p.Executable(),
	}
	if f.details {
		enrich(&pi)
	}
	return pi
}

// enrich fills the optional fields; processes we may not inspect keep the basic ones
func enrich(pi *process.ProcessInfo) {
	proc, err := gopsprocess.NewProcess(int32(pi.PID))
	if err != nil {
		return
	}

	if exe, err := proc.Exe(); err == nil {
		pi.Exe = exe
	}
	if cmdline, err := proc.CmdlineSlice(); err == nil {
		pi.Cmdline = cmdline
	}
	if user, err := proc.Username(); err == nil {
		pi.User = user
	}
	if threads, err := proc.NumThreads(); err == nil {
		pi.Threads = int(threads)
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		pi.Memory = mem.RSS
	}
}

func (f *Finder) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	proc, err := gopsprocess.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("%w: pid %d: %v", process.ErrProcessNotFound, pid, err)
	}

	pi := &process.ProcessInfo{PID: pid}
	if name, err := proc.Name(); err == nil {
		pi.Name = name
	}
	if ppid, err := proc.Ppid(); err == nil {
		pi.PPID = process.ProcessID(ppid)
	}
	if f.details {
		enrich(pi)
	}
	return pi, nil
}

func (f *Finder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	list, err := f.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var matches []process.ProcessInfo
	for _, p := range list {
		if strings.EqualFold(p.Executable(), name) {
			matches = append(matches, f.info(p))
		}
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", process.ErrProcessNotFound, name)
	}
	return matches, nil
}

func (f *Finder) FindAllProcesses() ([]process.ProcessInfo, error) {
	list, err := f.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	all := make([]process.ProcessInfo, 0, len(list))
	for _, p := range list {
		all = append(all, process.ProcessInfo{
			PID:  process.ProcessID(p.Pid()),
			PPID: process.ProcessID(p.PPid()),
			Name: p.Executable(),
		})
	}
	return all, nil
}

// DefaultPollInterval replaces a non-positive WaitForProcess interval
const DefaultPollInterval = 100 * time.Millisecond

// WaitForProcess polls every interval until name appears. It never gives up.
func (f *Finder) WaitForProcess(name string, interval time.Duration) process.ProcessInfo {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	f.log.Infoln("Waiting for", name, "to start...")

	for polls := 1; ; polls++ {
		if found, err := f.FindProcessByName(name); err == nil {
			f.log.Infoln("Found", found[0].String(), "after", polls, "polls")
			return found[0]
		}
		time.Sleep(interval)
	}
}

// Exists reports whether pid is present in the process table
func Exists(pid process.ProcessID) bool {
	ok, err := gopsprocess.PidExists(int32(pid))
	return err == nil && ok
}

var _ process.ProcessFinder = (*Finder)(nil)
