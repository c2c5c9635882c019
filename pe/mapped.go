package pe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	binpe "github.com/Binject/debug/pe"
)

const directoryImport = 1

// Import is one entry of a module's import address table
type Import struct {
	DLL      string
	Function string // empty when imported by ordinal
	Ordinal  uint16
	SlotRVA  uint32 // RVA of the IAT slot holding the resolved address
}

// Mapped is a module as laid out in memory by the loader. RVAs index the view directly.
type Mapped struct {
	view []byte
	file *binpe.File
}

// ParseMapped parses the headers of a mapped module. view may be only the header page
// when just the section table is needed.
func ParseMapped(view []byte) (*Mapped, error) {
	f, err := binpe.NewFileFromMemory(bytes.NewReader(view))
	if err != nil {
		return nil, fmt.Errorf("failed to parse mapped PE: %w", err)
	}
	if f.OptionalHeader == nil {
		f.Close()
		return nil, fmt.Errorf("mapped PE has no optional header")
	}
	return &Mapped{view: view, file: f}, nil
}

func (m *Mapped) Close() error {
	return m.file.Close()
}

// Is64 reports whether the module has a PE32+ optional header
func (m *Mapped) Is64() bool {
	_, ok := m.file.OptionalHeader.(*binpe.OptionalHeader64)
	return ok
}

// SizeOfImage is the mapped size declared in the optional header
func (m *Mapped) SizeOfImage() uint32 {
	switch oh := m.file.OptionalHeader.(type) {
	case *binpe.OptionalHeader64:
		return oh.SizeOfImage
	case *binpe.OptionalHeader32:
		return oh.SizeOfImage
	}
	return 0
}

func (m *Mapped) directory(index int) binpe.DataDirectory {
	switch oh := m.file.OptionalHeader.(type) {
	case *binpe.OptionalHeader64:
		if uint32(index) < oh.NumberOfRvaAndSizes {
			return oh.DataDirectory[index]
		}
	case *binpe.OptionalHeader32:
		if uint32(index) < oh.NumberOfRvaAndSizes {
			return oh.DataDirectory[index]
		}
	}
	return binpe.DataDirectory{}
}

// Sections returns the section table
func (m *Mapped) Sections() []Section {
	sections := make([]Section, 0, len(m.file.Sections))
	for _, s := range m.file.Sections {
		sections = append(sections, Section{
			Name:           s.Name,
			VirtualAddress: s.VirtualAddress,
			VirtualSize:    s.VirtualSize,
			Offset:         s.Offset,
			Size:           s.Size,
		})
	}
	return sections
}

// Imports lists every import with the RVA of its IAT slot
func (m *Mapped) Imports() ([]Import, error) {
	if d := m.directory(directoryImport); d.VirtualAddress == 0 || d.Size == 0 {
		return nil, nil
	}

	descriptors, _, _, err := m.file.ImportDirectoryTable()
	if err != nil {
		return nil, fmt.Errorf("failed to read import directory: %w", err)
	}

	thunkSize := uint32(4)
	ordinalFlag := uint64(0x80000000)
	if m.Is64() {
		thunkSize = 8
		ordinalFlag = 0x8000000000000000
	}

	var imports []Import
	for _, d := range descriptors {
		lookup := d.OriginalFirstThunk
		if lookup == 0 {
			lookup = d.FirstThunk
		}

		for i := uint32(0); ; i++ {
			value, ok := m.thunk(lookup+i*thunkSize, thunkSize)
			if !ok || value == 0 {
				break
			}

			imp := Import{DLL: d.DllName, SlotRVA: d.FirstThunk + i*thunkSize}
			if value&ordinalFlag != 0 {
				imp.Ordinal = uint16(value)
			} else {
				hint := uint32(value)
				if uint64(hint)+2 <= uint64(len(m.view)) {
					imp.Ordinal = binary.LittleEndian.Uint16(m.view[hint:])
				}
				imp.Function = cString(m.view, hint+2)
			}
			imports = append(imports, imp)
		}
	}

	return imports, nil
}

func (m *Mapped) thunk(rva, size uint32) (uint64, bool) {
	if uint64(rva)+uint64(size) > uint64(len(m.view)) {
		return 0, false
	}
	if size == 8 {
		return binary.LittleEndian.Uint64(m.view[rva:]), true
	}
	return uint64(binary.LittleEndian.Uint32(m.view[rva:])), true
}

// FindImportSlot returns the IAT slot RVA of dll!function. DLL names compare case-insensitively.
func (m *Mapped) FindImportSlot(dll, function string) (uint32, bool) {
	imports, _ := m.Imports()
	for _, imp := range imports {
		if strings.EqualFold(imp.DLL, dll) && imp.Function == function {
			return imp.SlotRVA, true
		}
	}
	return 0, false
}

// MappedSections parses the section table out of a mapped module's header page
func MappedSections(header []byte) ([]Section, error) {
	m, err := ParseMapped(header)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return m.Sections(), nil
}

func cString(buf []byte, off uint32) string {
	if uint64(off) >= uint64(len(buf)) {
		return ""
	}
	s := buf[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}
