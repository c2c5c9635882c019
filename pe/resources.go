package pe

import (
	"encoding/binary"
	"fmt"

	"spear/process"
)

const (
	resourceDirectorySize = 16
	resourceEntrySize     = 8
	resourceDataEntrySize = 16

	resourceSubdirFlag = 0x80000000
)

// Resource is a leaf of the resource directory tree
type Resource struct {
	Path   []uint32 // raw name/id dword of each entry from the root to this leaf
	RVA    uint32
	Offset uint32
	Data   []byte
}

// Size is the length of the resource data
func (r Resource) Size() int {
	return len(r.Data)
}

func (r Resource) String() string {
	return fmt.Sprintf("resource %v rva=0x%X size=%d", r.Path, r.RVA, len(r.Data))
}

// WalkStats summarises one walk
type WalkStats struct {
	Directories int
	Leaves      int
	Malformed   []error
}

// WalkResources visits every intact leaf under the resource directory at baseRVA.
// Nodes pointing outside buf are recorded in Malformed and skipped; their siblings
// are still visited.
func WalkResources(buf []byte, sections []Section, baseRVA uint32, visit func(Resource)) WalkStats {
	w := &walker{
		buf:      buf,
		sections: sections,
		base:     baseRVA,
		visit:    visit,
		seen:     make(map[uint32]bool),
	}
	w.directory(baseRVA, nil)
	return w.stats
}

type walker struct {
	buf      []byte
	sections []Section
	base     uint32
	visit    func(Resource)
	seen     map[uint32]bool
	stats    WalkStats
}

func (w *walker) malformed(format string, args ...any) {
	w.stats.Malformed = append(w.stats.Malformed, fmt.Errorf("%w: %s", process.ErrResourceMalformed, fmt.Sprintf(format, args...)))
}

// within reports whether [off, off+n) lies inside buf
func (w *walker) within(off uint32, n uint32) bool {
	return uint64(off)+uint64(n) <= uint64(len(w.buf))
}

func (w *walker) directory(rva uint32, path []uint32) {
	if w.seen[rva] {
		w.malformed("directory at rva 0x%X visited twice", rva)
		return
	}
	w.seen[rva] = true

	off, ok := RVAToOffset(w.sections, rva)
	if !ok || !w.within(off, resourceDirectorySize) {
		w.malformed("directory at rva 0x%X outside image", rva)
		return
	}
	w.stats.Directories++

	named := binary.LittleEndian.Uint16(w.buf[off+12:])
	ids := binary.LittleEndian.Uint16(w.buf[off+14:])
	entries := uint32(named) + uint32(ids)

	for i := uint32(0); i < entries; i++ {
		entryOff := off + resourceDirectorySize + i*resourceEntrySize
		if !w.within(entryOff, resourceEntrySize) {
			w.malformed("entry %d of directory 0x%X outside image", i, rva)
			// later entries are further out
			return
		}

		name := binary.LittleEndian.Uint32(w.buf[entryOff:])
		target := binary.LittleEndian.Uint32(w.buf[entryOff+4:])
		childPath := append(append([]uint32(nil), path...), name)

		if target&resourceSubdirFlag != 0 {
			w.directory(w.base+(target&^resourceSubdirFlag), childPath)
			continue
		}
		w.leaf(w.base+target, childPath)
	}
}

func (w *walker) leaf(rva uint32, path []uint32) {
	off, ok := RVAToOffset(w.sections, rva)
	if !ok || !w.within(off, resourceDataEntrySize) {
		w.malformed("data entry at rva 0x%X outside image", rva)
		return
	}

	dataRVA := binary.LittleEndian.Uint32(w.buf[off:])
	size := binary.LittleEndian.Uint32(w.buf[off+4:])

	dataOff, ok := RVAToOffset(w.sections, dataRVA)
	if !ok || !w.within(dataOff, size) {
		w.malformed("data at rva 0x%X size %d outside image", dataRVA, size)
		return
	}

	w.stats.Leaves++
	if w.visit != nil {
		w.visit(Resource{
			Path:   path,
			RVA:    dataRVA,
			Offset: dataOff,
			Data:   w.buf[dataOff : dataOff+size],
		})
	}
}
