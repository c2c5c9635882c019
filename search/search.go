// Package search finds AOB patterns inside a byte region, optionally splitting one region
// across a pool of workers. The parallel result is always the lowest matching offset, so
// callers that scan several functions in the same region get a stable first-match identity.
package search

import (
	"runtime"
	"sync"
	"sync/atomic"

	"spear/process"
)

// Scanner holds configuration for the search
type Scanner struct {
	MaxDOP   uint // Maximum number of workers for one region
	MinChunk int  // Regions smaller than this are scanned on the calling goroutine
}

// Option is a function that configures a Scanner
type Option func(*Scanner)

func WithMaxDOP(maxdop uint) Option {
	return func(s *Scanner) {
		s.MaxDOP = maxdop
	}
}

func WithMinChunk(size int) Option {
	return func(s *Scanner) {
		s.MinChunk = size
	}
}

// New creates a Scanner sized to the available CPUs
func New(options ...Option) *Scanner {
	s := &Scanner{
		MaxDOP:   uint(runtime.NumCPU()),
		MinChunk: 64 * 1024,
	}

	for _, opt := range options {
		opt(s)
	}

	if s.MaxDOP == 0 {
		s.MaxDOP = 1
	}
	if s.MinChunk < 1 {
		s.MinChunk = 1
	}

	return s
}

// First returns the lowest offset in data where aob matches.
// A missing pattern is reported with found=false, never as an error.
func (s *Scanner) First(data []byte, aob process.AOB) (offset int, found bool) {
	if !aob.IsValid() || len(data) < aob.Len() {
		return 0, false
	}

	// Number of start positions that can hold a full match
	positions := len(data) - aob.Len() + 1

	workers := int(s.MaxDOP)
	if maxWorkers := positions / s.MinChunk; workers > maxWorkers {
		workers = maxWorkers
	}
	if workers <= 1 {
		return firstIn(data, aob, 0, positions)
	}

	chunk := (positions + workers - 1) / workers

	// best holds the lowest match seen so far; chunks that start past it can stop
	var best atomic.Int64
	best.Store(int64(len(data)))

	var wg sync.WaitGroup
	for start := 0; start < positions; start += chunk {
		end := min(start+chunk, positions)

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()

			for i := start; i < end; i++ {
				// a match may run past end into the next chunk; data is shared
				if i&0xFFF == 0 && int64(i) > best.Load() {
					return
				}
				if aob.MatchAt(data, i) {
					lowerBest(&best, int64(i))
					return
				}
			}
		}(start, end)
	}
	wg.Wait()

	if v := best.Load(); v < int64(len(data)) {
		return int(v), true
	}
	return 0, false
}

// All returns every matching offset in ascending order
func (s *Scanner) All(data []byte, aob process.AOB) []int {
	var matches []int
	if !aob.IsValid() {
		return nil
	}
	for i := 0; i+aob.Len() <= len(data); i++ {
		if aob.MatchAt(data, i) {
			matches = append(matches, i)
		}
	}
	return matches
}

// First scans data on the calling goroutine
func First(data []byte, aob process.AOB) (int, bool) {
	return New(WithMaxDOP(1)).First(data, aob)
}

// FirstParallel scans data with up to maxdop workers
func FirstParallel(data []byte, aob process.AOB, maxdop uint) (int, bool) {
	return New(WithMaxDOP(maxdop)).First(data, aob)
}

func firstIn(data []byte, aob process.AOB, start, end int) (int, bool) {
	for i := start; i < end; i++ {
		if aob.MatchAt(data, i) {
			return i, true
		}
	}
	return 0, false
}

func lowerBest(best *atomic.Int64, v int64) {
	for {
		cur := best.Load()
		if v >= cur || best.CompareAndSwap(cur, v) {
			return
		}
	}
}
