// Package patch locates a function and a call site inside a code region, rewrites the
// call site in place and then calls the function by address.
package patch

import (
	"bytes"
	"fmt"
	"runtime"
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"spear/hexdump"
	"spear/process"
	"spear/search"
)

// State is the position of an Engine in its patch sequence
type State int

const (
	Idle State = iota
	FunctionLocated
	SiteLocated
	ProtectionChanged
	Patched
	Invoked
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FunctionLocated:
		return "function-located"
	case SiteLocated:
		return "site-located"
	case ProtectionChanged:
		return "protection-changed"
	case Patched:
		return "patched"
	case Invoked:
		return "invoked"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Invoker calls a located function as a zero-argument function.
//
// The caller must have established through the pattern match that addr really is the
// expected function of the exact binary build in use. A wrong address cannot be
// recovered from.
type Invoker interface {
	Invoke(addr process.ProcessMemoryAddress) (uintptr, error)
}

// Location is the result of scanning for a plan
type Location struct {
	Function process.ProcessMemoryAddress
	Site     Site
}

// Result describes a completed run
type Result struct {
	Plan     string
	Function process.ProcessMemoryAddress
	Site     Site
	Previous process.Protection
	Invoked  bool
	Return   uintptr
}

// Engine runs patch plans against one code region. Only one plan runs at a time.
type Engine struct {
	mu      sync.Mutex
	mem     process.Memory
	region  process.MemoryRegion
	scanner *search.Scanner
	invoker Invoker
	state   State
	log     *logger.Logger
}

// Option configures an Engine
type Option func(*Engine)

func WithScanner(s *search.Scanner) Option {
	return func(e *Engine) {
		e.scanner = s
	}
}

// WithInvoker sets the invoker used after a successful patch. Without one, Run stops at Patched.
func WithInvoker(inv Invoker) Option {
	return func(e *Engine) {
		e.invoker = inv
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// NewEngine creates an engine over region of mem
func NewEngine(mem process.Memory, region process.MemoryRegion, options ...Option) *Engine {
	e := &Engine{
		mem:     mem,
		region:  region,
		scanner: search.New(),
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "patch")),
	}

	for _, opt := range options {
		opt(e)
	}

	return e
}

// State returns the state reached by the last run
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Locate finds the plan's function and call site without modifying anything
func (e *Engine) Locate(plan Plan) (Location, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = Idle
	loc, err := e.locate(plan)
	if err != nil {
		e.state = Failed
	}
	return loc, err
}

// Apply patches a located site
func (e *Engine) Apply(site Site) (process.Protection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	prev, err := e.apply(site)
	if err != nil {
		e.state = Failed
	}
	return prev, err
}

// Run locates, patches and invokes plan
func (e *Engine) Run(plan Plan) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	result := Result{Plan: plan.Name}
	e.state = Idle

	loc, err := e.locate(plan)
	if err != nil {
		e.state = Failed
		return result, err
	}
	result.Function = loc.Function
	result.Site = loc.Site

	prev, err := e.apply(loc.Site)
	if err != nil {
		e.state = Failed
		return result, err
	}
	result.Previous = prev

	if e.invoker == nil {
		e.log.Infoln("No invoker configured, stopping after patch")
		return result, nil
	}

	e.log.Infoln("Calling", plan.Name, "at", loc.Function.ToString())
	ret, err := e.invoker.Invoke(loc.Function)
	if err != nil {
		e.state = Failed
		return result, fmt.Errorf("invoke %s at %s: %w", plan.Name, loc.Function.ToString(), err)
	}
	e.log.Infoln("Returned from", plan.Name, "with", fmt.Sprintf("0x%X", ret))

	e.state = Invoked
	result.Invoked = true
	result.Return = ret
	return result, nil
}

func (e *Engine) locate(plan Plan) (Location, error) {
	if err := plan.Validate(); err != nil {
		return Location{}, err
	}

	code, err := e.mem.ReadMemory(e.region.Base, e.region.Size)
	if err != nil {
		return Location{}, fmt.Errorf("failed to read code region %s: %w", e.region, err)
	}
	e.log.Infoln("Scanning", e.region.String(), "for", plan.Name)

	fn, found := e.scanner.First(code, plan.Function)
	if !found {
		return Location{}, fmt.Errorf("%s function: %w", plan.Name, process.ErrPatternNotFound)
	}
	function := e.region.Base + process.ProcessMemoryAddress(fn)
	e.state = FunctionLocated
	e.log.Infoln("Found", plan.Name, "at", function.ToString(), "offset", fmt.Sprintf("0x%X", fn))

	at, found := e.scanner.First(code, plan.CallSite)
	if !found {
		return Location{}, fmt.Errorf("%s call site: %w", plan.Name, process.ErrPatternNotFound)
	}

	site, err := NewSite(e.region.Base+process.ProcessMemoryAddress(at), code[at:at+plan.CallSite.Len()], plan.Replacement)
	if err != nil {
		return Location{}, err
	}
	e.state = SiteLocated
	e.log.Infoln("Found call site at", site.Address.ToString())
	e.log.Debugln("Call site before patch:\n" + e.dumpSite(code, at, site.Len()))

	return Location{Function: function, Site: site}, nil
}

func (e *Engine) apply(site Site) (process.Protection, error) {
	size := process.ProcessMemorySize(site.Len())
	if len(site.Replacement) != site.Len() {
		return 0, fmt.Errorf("%s: %w", site, process.ErrSizeMismatch)
	}
	if !e.region.Contains(site.Address, size) {
		return 0, fmt.Errorf("%s outside %s: %w", site, e.region, process.ErrAddressNotMapped)
	}

	prev, err := Writable(e.mem, site.Address, size, func(process.Protection) error {
		e.state = ProtectionChanged
		if err := e.mem.WriteMemory(site.Address, site.Replacement); err != nil {
			return fmt.Errorf("failed to write %s: %w", site, err)
		}
		e.state = Patched
		return nil
	})
	if err != nil {
		e.log.Warn("Patch failed: ", err)
		return prev, err
	}

	after, err := e.mem.ReadMemory(site.Address, size)
	if err != nil {
		return prev, fmt.Errorf("failed to read back %s: %w", site, err)
	}
	if !bytes.Equal(after, site.Replacement) {
		return prev, fmt.Errorf("%s reads back %s, wrote %s", site, hexdump.Compact(after), hexdump.Compact(site.Replacement))
	}

	now, err := e.mem.QueryProtection(site.Address)
	if err != nil {
		return prev, fmt.Errorf("failed to query protection of %s: %w", site, err)
	}
	if now != prev {
		return prev, fmt.Errorf("%w: %s left at %s, was %s", process.ErrProtectionChange, site, now, prev)
	}

	e.log.Infoln("Patched", site.String(), "protection restored to", prev.String())
	e.log.Debugln("Call site after patch:", hexdump.Compact(after))
	return prev, nil
}

// dumpSite renders the site with some surrounding context
func (e *Engine) dumpSite(code []byte, at, n int) string {
	start := max(at-16, 0)
	end := min(at+n+16, len(code))
	return hexdump.DumpAt(code[start:end], uint64(e.region.Base)+uint64(start), at-start, n)
}
