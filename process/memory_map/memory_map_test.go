package memory_map

import "testing"

func TestPermsFromProtect(t *testing.T) {
	tests := []struct {
		protect uint32
		want    string
	}{
		{0x01, "---"},
		{0x02, "r--"},
		{0x04, "rw-"},
		{0x20, "r-x"},
		{0x40, "rwx"},
		{0x20 | pageGuard, "r-x"},
	}

	for _, tt := range tests {
		if got := PermsFromProtect(tt.protect); got != tt.want {
			t.Errorf("PermsFromProtect(0x%X) = %s, want %s", tt.protect, got, tt.want)
		}
	}
}

func TestIsValidAddress2(t *testing.T) {
	mm := []MemoryMapItem{
		{Address: 0x3000, Size: 0x1000, Perms: "rw-"},
		{Address: 0x1000, Size: 0x1000, Perms: "r-x"},
	}
	Sort(mm)

	if item := IsValidAddress2(0x1FFF, mm); item == nil || !item.IsExecutable() || item.IsWritable() {
		t.Fatalf("IsValidAddress2(0x1FFF) = %v", item)
	}
	if item := IsValidAddress2(0x3000, mm); item == nil || !item.IsWritable() || !item.IsReadable() {
		t.Fatalf("IsValidAddress2(0x3000) = %v", item)
	}
	for _, addr := range []uint64{0x0, 0x2000, 0x2FFF, 0x4000} {
		if item := IsValidAddress2(addr, mm); item != nil {
			t.Errorf("IsValidAddress2(0x%X) = %v, want nil", addr, item)
		}
	}
}
