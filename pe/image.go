// Package pe reads the parts of a PE image this project touches: the section table,
// the resource directory tree and the import address table.
package pe

import (
	"bytes"
	"fmt"
	"os"

	binpe "github.com/Binject/debug/pe"

	"spear/process"
)

// Section is the subset of a section header needed for RVA translation
type Section struct {
	Name           string
	VirtualAddress uint32
	VirtualSize    uint32
	Offset         uint32 // PointerToRawData
	Size           uint32 // SizeOfRawData
}

// Contains reports whether rva falls inside the section's virtual range
func (s Section) Contains(rva uint32) bool {
	return rva >= s.VirtualAddress && rva < s.VirtualAddress+s.VirtualSize
}

// Image is a PE file read from disk
type Image struct {
	Raw      []byte
	Sections []Section
}

// Open reads and parses the PE file at path
func Open(path string) (*Image, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(buf)
}

// Parse parses the section table of a raw PE file
func Parse(buf []byte) (*Image, error) {
	f, err := binpe.NewFile(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PE: %w", err)
	}
	defer f.Close()

	img := &Image{Raw: buf}
	for _, s := range f.Sections {
		img.Sections = append(img.Sections, Section{
			Name:           s.Name,
			VirtualAddress: s.VirtualAddress,
			VirtualSize:    s.VirtualSize,
			Offset:         s.Offset,
			Size:           s.Size,
		})
	}

	return img, nil
}

// Section returns the first section with the given name
func (img *Image) Section(name string) (Section, bool) {
	return FindSection(img.Sections, name)
}

// RVAToOffset maps an RVA to a file offset through the section table
func (img *Image) RVAToOffset(rva uint32) (uint32, bool) {
	return RVAToOffset(img.Sections, rva)
}

// SectionData returns the raw file bytes of the named section
func (img *Image) SectionData(name string) ([]byte, Section, error) {
	s, ok := img.Section(name)
	if !ok {
		return nil, Section{}, fmt.Errorf("no %s section", name)
	}
	end := uint64(s.Offset) + uint64(s.Size)
	if end > uint64(len(img.Raw)) {
		return nil, s, fmt.Errorf("%w: %s extends past end of file", process.ErrResourceMalformed, name)
	}
	return img.Raw[s.Offset:end], s, nil
}

// Resources walks the .rsrc section of the image
func (img *Image) Resources(visit func(Resource)) (WalkStats, error) {
	rsrc, ok := img.Section(".rsrc")
	if !ok {
		return WalkStats{}, fmt.Errorf("no .rsrc section")
	}
	return WalkResources(img.Raw, img.Sections, rsrc.VirtualAddress, visit), nil
}

// FindSection returns the first section with the given name
func FindSection(sections []Section, name string) (Section, bool) {
	for _, s := range sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// RVAToOffset maps an RVA to a file offset using sections
func RVAToOffset(sections []Section, rva uint32) (uint32, bool) {
	for _, s := range sections {
		if s.Contains(rva) {
			return rva - s.VirtualAddress + s.Offset, true
		}
	}
	return 0, false
}
