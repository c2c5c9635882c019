package process

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ParseAOB parses "48 8B ?? 05" style patterns. Bytes may be separated by spaces or commas;
// "?" and "??" are wildcards.
func ParseAOB(aob string) (AOB, error) {
	parts := strings.FieldsFunc(aob, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	if len(parts) == 0 {
		return AOB{}, fmt.Errorf("empty pattern")
	}

	pattern := make([]byte, 0, len(parts))
	mask := make([]byte, 0, len(parts))

	for _, part := range parts {
		if part == "??" || part == "?" {
			pattern = append(pattern, 0)
			mask = append(mask, 0)
			continue
		}

		val, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return AOB{}, fmt.Errorf("invalid hex byte: %s", part)
		}
		pattern = append(pattern, byte(val))
		mask = append(mask, 0xFF)
	}

	return AOB{Pattern: pattern, Mask: mask}, nil
}

// String formats the pattern back into the form accepted by ParseAOB
func (aob AOB) String() string {
	var sb strings.Builder
	for i, b := range aob.Pattern {
		if i > 0 {
			sb.WriteString(" ")
		}
		if i < len(aob.Mask) && aob.Mask[i] == 0 {
			sb.WriteString("??")
		} else {
			sb.WriteString(strings.ToUpper(hex.EncodeToString([]byte{b})))
		}
	}
	return sb.String()
}
