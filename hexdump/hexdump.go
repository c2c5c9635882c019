package hexdump

import (
	"fmt"
	"io"
	"strings"
)

// HexDumpOptions defines options for customizing the hexdump output
type HexDumpOptions struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// ShowASCII determines whether to show the ASCII representation
	ShowASCII bool

	// StartOffset is the address printed for the first byte
	StartOffset uint64

	// OffsetWidth is the width of the offset column in hex digits
	OffsetWidth int

	// Highlight marks [HighlightStart, HighlightStart+HighlightLen) with brackets
	HighlightStart int
	HighlightLen   int
}

// DefaultOptions returns the default hexdump options
func DefaultOptions() HexDumpOptions {
	return HexDumpOptions{
		BytesPerLine: 16,
		ShowASCII:    true,
		OffsetWidth:  12,
	}
}

// Dump returns a hexdump of data as a string
func Dump(data []byte, options HexDumpOptions) string {
	var sb strings.Builder
	DumpToWriter(&sb, data, options)
	return sb.String()
}

// DumpToWriter writes a hexdump of data to writer
func DumpToWriter(writer io.Writer, data []byte, options HexDumpOptions) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}

	for line := 0; line < len(data); line += options.BytesPerLine {
		end := min(line+options.BytesPerLine, len(data))
		formatLine(writer, data[line:end], line, options)
	}
}

func formatLine(writer io.Writer, chunk []byte, offset int, options HexDumpOptions) {
	fmt.Fprintf(writer, "%0*X ", options.OffsetWidth, options.StartOffset+uint64(offset))

	for i := 0; i < options.BytesPerLine; i++ {
		pos := offset + i
		if i >= len(chunk) {
			fmt.Fprint(writer, "   ")
			continue
		}
		fmt.Fprintf(writer, "%s%02X", separator(pos, options), chunk[i])
	}
	// closing bracket when the site ends on the last byte of the line
	fmt.Fprint(writer, separator(offset+len(chunk), options))

	if options.ShowASCII {
		fmt.Fprint(writer, "|")
		for _, b := range chunk {
			if b >= 0x20 && b < 0x7F {
				fmt.Fprintf(writer, "%c", b)
			} else {
				fmt.Fprint(writer, ".")
			}
		}
		fmt.Fprint(writer, "|")
	}
	fmt.Fprintln(writer)
}

// separator returns the character printed before the byte at pos
func separator(pos int, options HexDumpOptions) string {
	switch {
	case highlighted(pos, options) && !highlighted(pos-1, options):
		return "["
	case !highlighted(pos, options) && highlighted(pos-1, options):
		return "]"
	}
	return " "
}

func highlighted(pos int, options HexDumpOptions) bool {
	return options.HighlightLen > 0 && pos >= options.HighlightStart && pos < options.HighlightStart+options.HighlightLen
}

// DumpBytes returns a hexdump with default options
func DumpBytes(data []byte) string {
	return Dump(data, DefaultOptions())
}

// DumpAt dumps data as living at address addr, bracketing the site
// [siteStart, siteStart+siteLen) relative to data
func DumpAt(data []byte, addr uint64, siteStart, siteLen int) string {
	options := DefaultOptions()
	options.StartOffset = addr
	options.HighlightStart = siteStart
	options.HighlightLen = siteLen
	return Dump(data, options)
}

// Compact renders data as space separated hex bytes on one line
func Compact(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
