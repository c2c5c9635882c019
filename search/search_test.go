package search

import (
	"math/rand"
	"testing"

	"spear/process"
)

func randomRegion(t *testing.T, seed int64, size int) []byte {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	data := make([]byte, size)
	r.Read(data)
	return data
}

func TestFirstFindsExactOccurrence(t *testing.T) {
	data := make([]byte, 4096)
	pattern := []byte{0x84, 0xC0, 0x74, 0x08, 0x48, 0x8B, 0xCB, 0xE8}
	copy(data[1234:], pattern)

	offset, found := First(data, process.ExactAOB(pattern))
	if !found || offset != 1234 {
		t.Fatalf("First() = %d, %v; want 1234, true", offset, found)
	}
}

func TestFirstReturnsLowestOccurrence(t *testing.T) {
	data := make([]byte, 1<<16)
	pattern := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	copy(data[40000:], pattern)
	copy(data[900:], pattern)
	copy(data[60000:], pattern)

	for _, maxdop := range []uint{1, 2, 3, 8, 64} {
		s := New(WithMaxDOP(maxdop), WithMinChunk(16))
		offset, found := s.First(data, process.ExactAOB(pattern))
		if !found || offset != 900 {
			t.Errorf("maxdop=%d: First() = %d, %v; want 900, true", maxdop, offset, found)
		}
	}
}

func TestFirstAbsentPattern(t *testing.T) {
	data := make([]byte, 8192)
	aob := process.ExactAOB([]byte{1, 2, 3, 4, 5})

	if _, found := First(data, aob); found {
		t.Fatal("found pattern in zeroed region")
	}
	if _, found := New(WithMaxDOP(8), WithMinChunk(1)).First(data, aob); found {
		t.Fatal("parallel scan found pattern in zeroed region")
	}
}

func TestFirstWildcards(t *testing.T) {
	data := []byte{0x00, 0x48, 0x8B, 0x05, 0x11, 0x22, 0x33, 0x44, 0x48, 0x8B, 0xD9}
	aob := process.MustAOB("48 8B 05 ?? ?? ?? ?? 48 8B D9")

	offset, found := First(data, aob)
	if !found || offset != 1 {
		t.Fatalf("First() = %d, %v; want 1, true", offset, found)
	}

	data[9] = 0x00
	if _, found := First(data, aob); found {
		t.Fatal("significant byte change should reject the match")
	}
}

func TestFirstPatternLongerThanRegion(t *testing.T) {
	if _, found := First([]byte{1, 2}, process.ExactAOB([]byte{1, 2, 3})); found {
		t.Fatal("pattern longer than region cannot match")
	}
}

func TestFirstMatchAtRegionEnd(t *testing.T) {
	data := make([]byte, 1000)
	pattern := []byte{7, 8, 9}
	copy(data[len(data)-len(pattern):], pattern)

	for _, maxdop := range []uint{1, 4} {
		offset, found := New(WithMaxDOP(maxdop), WithMinChunk(1)).First(data, process.ExactAOB(pattern))
		if !found || offset != len(data)-len(pattern) {
			t.Errorf("maxdop=%d: First() = %d, %v", maxdop, offset, found)
		}
	}
}

func TestFirstMatchAcrossChunkBoundary(t *testing.T) {
	// 4 workers over 100 start positions gives chunks of 25
	data := make([]byte, 103)
	pattern := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	copy(data[23:], pattern)

	offset, found := New(WithMaxDOP(4), WithMinChunk(1)).First(data, process.ExactAOB(pattern))
	if !found || offset != 23 {
		t.Fatalf("First() = %d, %v; want 23, true", offset, found)
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		data := randomRegion(t, seed, 1<<15)
		// short patterns drawn from the region itself so that matches exist at random places
		r := rand.New(rand.NewSource(seed * 31))
		at := r.Intn(len(data) - 3)
		aob := process.AOB{
			Pattern: []byte{data[at], 0, data[at+2]},
			Mask:    []byte{0xFF, 0x00, 0xFF},
		}

		seqOffset, seqFound := New(WithMaxDOP(1)).First(data, aob)
		parOffset, parFound := New(WithMaxDOP(7), WithMinChunk(8)).First(data, aob)

		if seqOffset != parOffset || seqFound != parFound {
			t.Fatalf("seed %d: sequential %d/%v != parallel %d/%v", seed, seqOffset, seqFound, parOffset, parFound)
		}
		if !seqFound || seqOffset > at {
			t.Fatalf("seed %d: expected a match at or before %d, got %d/%v", seed, at, seqOffset, seqFound)
		}
	}
}

func TestAll(t *testing.T) {
	data := []byte{1, 2, 1, 2, 1, 2}
	got := New().All(data, process.ExactAOB([]byte{1, 2}))
	want := []int{0, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("All() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("All() = %v, want %v", got, want)
		}
	}
}

func TestInvalidAOB(t *testing.T) {
	if _, found := First([]byte{1, 2, 3}, process.AOB{Pattern: []byte{1}, Mask: nil}); found {
		t.Fatal("invalid AOB must not match")
	}
}

func BenchmarkFirstParallel(b *testing.B) {
	data := make([]byte, 32<<20)
	pattern := []byte{0x40, 0x53, 0x48, 0x81, 0xEC, 0xA0, 0x01, 0x00, 0x00}
	copy(data[len(data)-64:], pattern)
	aob := process.ExactAOB(pattern)
	s := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.First(data, aob)
	}
}
