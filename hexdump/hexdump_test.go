package hexdump

import (
	"strings"
	"testing"
)

func TestDumpAtBracketsSite(t *testing.T) {
	data := []byte{0x84, 0xC0, 0x74, 0x08, 0x90, 0x90, 0x41}
	out := DumpAt(data, 0x140001000, 4, 2)

	if !strings.HasPrefix(out, "000140001000 ") {
		t.Fatalf("unexpected offset column: %q", out)
	}
	if !strings.Contains(out, "08[90 90]41") {
		t.Fatalf("site not bracketed: %q", out)
	}
	if !strings.Contains(out, "|..t...A|") {
		t.Fatalf("ascii column missing: %q", out)
	}
}

func TestDumpSplitsLines(t *testing.T) {
	data := make([]byte, 33)
	out := DumpBytes(data)
	if got := strings.Count(out, "\n"); got != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", got, out)
	}
}

func TestCompact(t *testing.T) {
	if got := Compact([]byte{0x48, 0x8B, 0x05}); got != "48 8B 05" {
		t.Fatalf("Compact() = %q", got)
	}
}
