package process

import (
	"bytes"
	"testing"
)

func TestParseAOB(t *testing.T) {
	tests := []struct {
		in      string
		pattern []byte
		mask    []byte
		wantErr bool
	}{
		{in: "48 8B 05", pattern: []byte{0x48, 0x8B, 0x05}, mask: []byte{0xFF, 0xFF, 0xFF}},
		{in: "48,??,05", pattern: []byte{0x48, 0x00, 0x05}, mask: []byte{0xFF, 0x00, 0xFF}},
		{in: "e8 ? ? ? ?", pattern: []byte{0xE8, 0, 0, 0, 0}, mask: []byte{0xFF, 0, 0, 0, 0}},
		{in: "", wantErr: true},
		{in: "48 zz", wantErr: true},
		{in: "100", wantErr: true},
	}

	for _, tt := range tests {
		aob, err := ParseAOB(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAOB(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAOB(%q) error: %v", tt.in, err)
			continue
		}
		if !bytes.Equal(aob.Pattern, tt.pattern) || !bytes.Equal(aob.Mask, tt.mask) {
			t.Errorf("ParseAOB(%q) = %x/%x, want %x/%x", tt.in, aob.Pattern, aob.Mask, tt.pattern, tt.mask)
		}
	}
}

func TestAOBStringRoundTrip(t *testing.T) {
	const in = "84 C0 74 ?? 48 8B CB E8"
	aob := MustAOB(in)
	if got := aob.String(); got != in {
		t.Fatalf("String() = %q, want %q", got, in)
	}
}

func TestNewAOB(t *testing.T) {
	if _, err := NewAOB([]byte{1, 2}, []byte{0xFF}); err == nil {
		t.Fatal("expected length mismatch error")
	}
	if _, err := NewAOB(nil, nil); err == nil {
		t.Fatal("expected empty pattern error")
	}

	pattern := []byte{1, 2, 3}
	aob, err := NewAOB(pattern, []byte{0xFF, 0, 0xFF})
	if err != nil {
		t.Fatal(err)
	}
	pattern[0] = 9
	if aob.Pattern[0] != 1 {
		t.Fatal("AOB shares storage with caller slice")
	}
}

func TestAOBMatchAt(t *testing.T) {
	data := []byte{0x10, 0x48, 0x99, 0x05, 0x20}
	aob := MustAOB("48 ?? 05")
	if !aob.MatchAt(data, 1) {
		t.Fatal("expected match at 1")
	}
	if aob.MatchAt(data, 0) {
		t.Fatal("unexpected match at 0")
	}
}

func TestProtectionPerms(t *testing.T) {
	tests := map[Protection]string{
		PageReadOnly:                "r--",
		PageReadWrite:               "rw-",
		PageExecuteRead:             "r-x",
		PageExecuteReadWrite:        "rwx",
		PageNoAccess:                "---",
		PageExecuteRead | PageGuard: "r-x",
	}
	for prot, want := range tests {
		if got := prot.Perms(); got != want {
			t.Errorf("%#x.Perms() = %q, want %q", uint32(prot), got, want)
		}
	}
}

func TestMemoryRegionContains(t *testing.T) {
	r := MemoryRegion{Base: 0x1000, Size: 0x100}
	if !r.Contains(0x1000, 0x100) {
		t.Fatal("full range should be contained")
	}
	if r.Contains(0x10F0, 0x20) {
		t.Fatal("range past the end should not be contained")
	}
	if r.Contains(0x0FFF, 1) {
		t.Fatal("range before the base should not be contained")
	}
}
