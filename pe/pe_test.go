package pe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	binpe "github.com/Binject/debug/pe"

	"spear/process"
)

const (
	testHeaderSize = 0x200
	testRsrcRVA    = 0x1000

	dosLfanewOffset   = 0x3C
	peSignature       = "PE\x00\x00"
	directoryResource = 2
)

// peHeaders builds a PE32+ header page with the given data directories and sections
func peHeaders(t *testing.T, dirs map[int]binpe.DataDirectory, sections []binpe.SectionHeader32) []byte {
	t.Helper()

	var b bytes.Buffer
	dos := make([]byte, 0x40)
	dos[0], dos[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(dos[dosLfanewOffset:], 0x40)
	b.Write(dos)
	b.WriteString(peSignature)

	fh := binpe.FileHeader{
		Machine:              0x8664,
		NumberOfSections:     uint16(len(sections)),
		SizeOfOptionalHeader: 240,
		Characteristics:      0x22,
	}
	oh := binpe.OptionalHeader64{
		Magic:               0x20b,
		ImageBase:           0x140000000,
		SectionAlignment:    0x1000,
		FileAlignment:       0x200,
		SizeOfImage:         0x3000,
		SizeOfHeaders:       testHeaderSize,
		Subsystem:           2,
		NumberOfRvaAndSizes: 16,
	}
	for i, d := range dirs {
		oh.DataDirectory[i] = d
	}

	for _, v := range []any{fh, oh} {
		if err := binary.Write(&b, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, s := range sections {
		if err := binary.Write(&b, binary.LittleEndian, s); err != nil {
			t.Fatal(err)
		}
	}

	if b.Len() > testHeaderSize {
		t.Fatalf("headers overflow: %d", b.Len())
	}
	out := make([]byte, testHeaderSize)
	copy(out, b.Bytes())
	return out
}

func sectionHeader(name string, rva, vsize, raw, rawSize uint32) binpe.SectionHeader32 {
	var sh binpe.SectionHeader32
	copy(sh.Name[:], name)
	sh.VirtualAddress = rva
	sh.VirtualSize = vsize
	sh.PointerToRawData = raw
	sh.SizeOfRawData = rawSize
	return sh
}

func putDir(buf []byte, off uint32, named, ids uint16) {
	binary.LittleEndian.PutUint16(buf[off+12:], named)
	binary.LittleEndian.PutUint16(buf[off+14:], ids)
}

func putEntry(buf []byte, off uint32, name, target uint32) {
	binary.LittleEndian.PutUint32(buf[off:], name)
	binary.LittleEndian.PutUint32(buf[off+4:], target)
}

func putData(buf []byte, off uint32, rva, size uint32) {
	binary.LittleEndian.PutUint32(buf[off:], rva)
	binary.LittleEndian.PutUint32(buf[off+4:], size)
}

var leafPayload = []byte{0x89, 'P', 'N', 'G', 1, 2, 3, 4}

// resourceTree lays out type -> name -> language with two leaves, the second of which
// claims far more data than the section holds
func resourceTree() []byte {
	buf := make([]byte, 0x90)

	putDir(buf, 0x00, 0, 1)
	putEntry(buf, 0x10, 3, resourceSubdirFlag|0x18)

	putDir(buf, 0x18, 0, 2)
	putEntry(buf, 0x28, 1, resourceSubdirFlag|0x38)
	putEntry(buf, 0x30, 2, resourceSubdirFlag|0x50)

	putDir(buf, 0x38, 0, 1)
	putEntry(buf, 0x48, 0x409, 0x68)

	putDir(buf, 0x50, 0, 1)
	putEntry(buf, 0x60, 0x409, 0x78)

	putData(buf, 0x68, testRsrcRVA+0x88, uint32(len(leafPayload)))
	putData(buf, 0x78, testRsrcRVA+0x88, 0x10000)

	copy(buf[0x88:], leafPayload)
	return buf
}

func rsrcSections(size int) []Section {
	return []Section{{Name: ".rsrc", VirtualAddress: testRsrcRVA, VirtualSize: uint32(size), Offset: 0, Size: uint32(size)}}
}

func TestWalkResourcesSkipsMalformedLeaf(t *testing.T) {
	buf := resourceTree()

	var leaves []Resource
	stats := WalkResources(buf, rsrcSections(len(buf)), testRsrcRVA, func(r Resource) {
		leaves = append(leaves, r)
	})

	if len(leaves) != 1 || stats.Leaves != 1 {
		t.Fatalf("expected one intact leaf, got %d (stats %+v)", len(leaves), stats)
	}
	if !bytes.Equal(leaves[0].Data, leafPayload) {
		t.Fatalf("leaf data = % X", leaves[0].Data)
	}
	if got := leaves[0].Path; len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 0x409 {
		t.Fatalf("leaf path = %v", got)
	}
	if stats.Directories != 4 {
		t.Fatalf("directories = %d, want 4", stats.Directories)
	}
	if len(stats.Malformed) != 1 || !errors.Is(stats.Malformed[0], process.ErrResourceMalformed) {
		t.Fatalf("malformed = %v", stats.Malformed)
	}
}

func TestWalkResourcesSubdirOutsideImage(t *testing.T) {
	buf := resourceTree()
	// redirect the first name directory far past the buffer; the second subtree is still walked
	putEntry(buf, 0x28, 1, resourceSubdirFlag|0x7FFF0)
	putData(buf, 0x78, testRsrcRVA+0x88, uint32(len(leafPayload)))

	var leaves int
	stats := WalkResources(buf, rsrcSections(len(buf)), testRsrcRVA, func(Resource) { leaves++ })

	if leaves != 1 {
		t.Fatalf("leaves = %d, want 1", leaves)
	}
	if len(stats.Malformed) != 1 {
		t.Fatalf("malformed = %v", stats.Malformed)
	}
}

func TestWalkResourcesCycle(t *testing.T) {
	buf := resourceTree()
	// second type entry points back at the root
	putEntry(buf, 0x30, 2, resourceSubdirFlag|0x00)

	var leaves int
	stats := WalkResources(buf, rsrcSections(len(buf)), testRsrcRVA, func(Resource) { leaves++ })

	if leaves != 1 || len(stats.Malformed) != 1 {
		t.Fatalf("leaves=%d malformed=%v", leaves, stats.Malformed)
	}
}

func TestWalkResourcesTruncatedRoot(t *testing.T) {
	buf := make([]byte, 8)
	stats := WalkResources(buf, rsrcSections(len(buf)), testRsrcRVA, nil)
	if stats.Leaves != 0 || len(stats.Malformed) != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func buildImage(t *testing.T) []byte {
	t.Helper()

	rsrc := resourceTree()
	headers := peHeaders(t,
		map[int]binpe.DataDirectory{directoryResource: {VirtualAddress: testRsrcRVA, Size: uint32(len(rsrc))}},
		[]binpe.SectionHeader32{sectionHeader(".rsrc", testRsrcRVA, uint32(len(rsrc)), testHeaderSize, 0x200)},
	)

	file := make([]byte, testHeaderSize+0x200)
	copy(file, headers)
	copy(file[testHeaderSize:], rsrc)
	return file
}

func TestParseAndResources(t *testing.T) {
	img, err := Parse(buildImage(t))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	rsrc, ok := img.Section(".rsrc")
	if !ok || rsrc.VirtualAddress != testRsrcRVA || rsrc.Offset != testHeaderSize {
		t.Fatalf("rsrc section = %+v, %v", rsrc, ok)
	}

	if off, ok := img.RVAToOffset(testRsrcRVA + 0x88); !ok || off != testHeaderSize+0x88 {
		t.Fatalf("RVAToOffset() = 0x%X, %v", off, ok)
	}
	if _, ok := img.RVAToOffset(0x9000); ok {
		t.Fatal("RVA outside every section must not translate")
	}

	var found []Resource
	stats, err := img.Resources(func(r Resource) { found = append(found, r) })
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || !bytes.Equal(found[0].Data, leafPayload) || len(stats.Malformed) != 1 {
		t.Fatalf("found=%v stats=%+v", found, stats)
	}
}

func TestSectionData(t *testing.T) {
	raw := bytes.Repeat([]byte{0xCC}, 0x600)
	copy(raw[0x400:], []byte{0x40, 0x53, 0x48})
	img := &Image{Raw: raw, Sections: []Section{
		{Name: ".text", VirtualAddress: 0x1000, VirtualSize: 0x180, Offset: 0x400, Size: 0x200},
		{Name: ".broken", VirtualAddress: 0x2000, VirtualSize: 0x100, Offset: 0x500, Size: 0x1000},
	}}

	data, s, err := img.SectionData(".text")
	if err != nil || len(data) != 0x200 || s.VirtualAddress != 0x1000 || data[1] != 0x53 {
		t.Fatalf("SectionData(.text) = %d bytes, %+v, %v", len(data), s, err)
	}
	if _, _, err := img.SectionData(".broken"); !errors.Is(err, process.ErrResourceMalformed) {
		t.Fatalf("SectionData(.broken) error = %v", err)
	}
	if _, _, err := img.SectionData(".pdata"); err == nil {
		t.Fatal("missing section must fail")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not a portable executable")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestMappedSections(t *testing.T) {
	headers := peHeaders(t, nil, []binpe.SectionHeader32{
		sectionHeader(".text", 0x1000, 0x5000, 0x400, 0x5000),
		sectionHeader(".rdata", 0x6000, 0x800, 0x5400, 0x800),
	})

	sections, err := MappedSections(headers)
	if err != nil {
		t.Fatalf("MappedSections() error = %v", err)
	}
	text, ok := FindSection(sections, ".text")
	if !ok || text.VirtualAddress != 0x1000 || text.VirtualSize != 0x5000 {
		t.Fatalf(".text = %+v, %v", text, ok)
	}
	if _, ok := FindSection(sections, ".rsrc"); ok {
		t.Fatal("unexpected .rsrc")
	}

	m, err := ParseMapped(headers)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	if !m.Is64() || m.SizeOfImage() != 0x3000 {
		t.Fatalf("Is64() = %v, SizeOfImage() = 0x%X", m.Is64(), m.SizeOfImage())
	}
}

func TestMappedSectionsNoHeader(t *testing.T) {
	if _, err := MappedSections(make([]byte, 0x100)); err == nil {
		t.Fatal("expected an error for a zeroed page")
	}
}

// importImage maps one KERNEL32.dll descriptor with two named imports and one by ordinal
func importImage(t *testing.T) []byte {
	t.Helper()

	image := make([]byte, 0x2000)
	copy(image, peHeaders(t, map[int]binpe.DataDirectory{directoryImport: {VirtualAddress: 0x1000, Size: 40}}, nil))

	// descriptor: lookup table, name, address table
	binary.LittleEndian.PutUint32(image[0x1000:], 0x1100)
	binary.LittleEndian.PutUint32(image[0x100C:], 0x1200)
	binary.LittleEndian.PutUint32(image[0x1010:], 0x1300)

	binary.LittleEndian.PutUint64(image[0x1100:], 0x1400)
	binary.LittleEndian.PutUint64(image[0x1108:], 0x1420)
	binary.LittleEndian.PutUint64(image[0x1110:], 0x8000000000000005)

	copy(image[0x1200:], "KERNEL32.dll\x00")
	copy(image[0x1402:], "LoadResource\x00")
	copy(image[0x1422:], "LockResource\x00")
	return image
}

func TestImports(t *testing.T) {
	m, err := ParseMapped(importImage(t))
	if err != nil {
		t.Fatalf("ParseMapped() error = %v", err)
	}
	defer m.Close()

	imports, err := m.Imports()
	if err != nil {
		t.Fatalf("Imports() error = %v", err)
	}
	if len(imports) != 3 {
		t.Fatalf("imports = %+v", imports)
	}
	if imports[0].Function != "LoadResource" || imports[0].SlotRVA != 0x1300 {
		t.Fatalf("first import = %+v", imports[0])
	}
	if imports[2].Function != "" || imports[2].Ordinal != 5 || imports[2].SlotRVA != 0x1310 {
		t.Fatalf("ordinal import = %+v", imports[2])
	}

	slot, ok := m.FindImportSlot("kernel32.dll", "LockResource")
	if !ok || slot != 0x1308 {
		t.Fatalf("FindImportSlot() = 0x%X, %v", slot, ok)
	}
	if _, ok := m.FindImportSlot("kernel32.dll", "SizeofResource"); ok {
		t.Fatal("SizeofResource is not imported")
	}
}

func TestImportsWithoutDirectory(t *testing.T) {
	image := make([]byte, 0x1000)
	copy(image, peHeaders(t, nil, nil))

	m, err := ParseMapped(image)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if imports, err := m.Imports(); err != nil || len(imports) != 0 {
		t.Fatalf("Imports() = %v, %v", imports, err)
	}
}
