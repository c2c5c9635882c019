// Package hooks redirects the host's LoadResource, LockResource and SizeofResource calls
// so that the launcher background is served from a replacement buffer. Every other
// resource passes through unchanged.
package hooks

import (
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"spear/resources"
)

// Originals are the unhooked entry points
type Originals struct {
	Load func(module, res uintptr) uintptr
	Lock func(handle uintptr) uintptr
	Size func(module, res uintptr) uint32
}

// MemoryView exposes n bytes at ptr without copying
type MemoryView func(ptr uintptr, n int) []byte

// Replacement is a read-only buffer served in place of the matched resource.
// Its address doubles as the resource handle handed back to the caller.
type Replacement struct {
	Addr uintptr
	Data []byte
}

// Handle is the value returned from LoadResource for a substituted resource
func (r Replacement) Handle() uintptr {
	return r.Addr
}

func (r Replacement) Len() int {
	return len(r.Data)
}

type resourceKey struct {
	module uintptr
	res    uintptr
}

// Interceptor decides, per resource, whether to substitute. Decisions are remembered so
// that the three entry points stay consistent in any call order.
type Interceptor struct {
	orig        Originals
	view        MemoryView
	replacement Replacement
	match       func([]byte) bool

	mu            sync.Mutex
	decisions     map[resourceKey]bool
	substitutions int

	log *logger.Logger
}

// InterceptorOption configures an Interceptor
type InterceptorOption func(*Interceptor)

// WithMatcher replaces the resource test, resources.IsTargetBackground by default
func WithMatcher(match func([]byte) bool) InterceptorOption {
	return func(i *Interceptor) {
		i.match = match
	}
}

// NewInterceptor creates an interceptor serving replacement for matching resources
func NewInterceptor(orig Originals, view MemoryView, replacement Replacement, options ...InterceptorOption) *Interceptor {
	i := &Interceptor{
		orig:        orig,
		view:        view,
		replacement: replacement,
		match:       resources.IsTargetBackground,
		decisions:   make(map[resourceKey]bool),
		log:         logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "hooks")),
	}

	for _, opt := range options {
		opt(i)
	}

	return i
}

// Substitutions is how many times a load was answered with the replacement
func (i *Interceptor) Substitutions() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.substitutions
}

// LoadResource loads through the original and swaps in the replacement handle on a match
func (i *Interceptor) LoadResource(module, res uintptr) uintptr {
	handle := i.orig.Load(module, res)
	if handle == 0 {
		return 0
	}

	if !i.substituted(module, res, handle) {
		return handle
	}

	i.mu.Lock()
	i.substitutions++
	i.mu.Unlock()

	i.log.Infoln("Replacing background resource", uintptrHex(res), "of module", uintptrHex(module))
	return i.replacement.Handle()
}

// LockResource returns the replacement address for the replacement handle and delegates otherwise
func (i *Interceptor) LockResource(handle uintptr) uintptr {
	if handle != 0 && handle == i.replacement.Handle() {
		return i.replacement.Addr
	}
	return i.orig.Lock(handle)
}

// SizeofResource reports the replacement length for substituted resources
func (i *Interceptor) SizeofResource(module, res uintptr) uint32 {
	if i.substituted(module, res, 0) {
		return uint32(i.replacement.Len())
	}
	return i.orig.Size(module, res)
}

// substituted returns the remembered decision for a resource, inspecting it the first
// time. handle may be zero when the caller has not loaded the resource yet.
func (i *Interceptor) substituted(module, res, handle uintptr) bool {
	key := resourceKey{module, res}

	i.mu.Lock()
	decision, known := i.decisions[key]
	i.mu.Unlock()
	if known {
		return decision
	}

	decision = i.inspect(module, res, handle)

	i.mu.Lock()
	i.decisions[key] = decision
	i.mu.Unlock()

	return decision
}

func (i *Interceptor) inspect(module, res, handle uintptr) bool {
	if handle == 0 {
		handle = i.orig.Load(module, res)
		if handle == 0 {
			return false
		}
	}

	ptr := i.orig.Lock(handle)
	if ptr == 0 {
		return false
	}

	size := i.orig.Size(module, res)
	if size == 0 {
		return false
	}

	return i.match(i.view(ptr, int(size)))
}
