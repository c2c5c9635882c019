// Package resources recognises the launcher assets we care about by content and keeps a
// disk-backed cache of the ones worth reusing.
package resources

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image/png"

	"github.com/zeebo/blake3"
)

// Role names what an asset is used for
type Role string

const (
	RolePlayIcon     Role = "play_icon"
	RoleSettingsIcon Role = "settings_icon"
	RoleFont         Role = "font"
	RoleBackground   Role = "background"
)

const (
	PlayIconHash     = "d934764398d1bf4f74f21a6cbb2a621a3763e31f84ed733c7192c8897c40ae2d"
	SettingsIconHash = "e21238ae2a7a43e4c424f47aa544e8d47952abb071d0c50dccba9be22db22a66"

	TargetWidth  = 608
	TargetHeight = 344
)

var (
	PNGSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	pngIHDR      = []byte{0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

	TrueTypeMagic = []byte{0x00, 0x01, 0x00, 0x00}
	OpenTypeMagic = []byte("OTTO")
)

// Fingerprint recognises one asset. Magic is a list of accepted prefixes; Hash and the
// dimensions are only checked when set.
type Fingerprint struct {
	Role      Role
	Magic     [][]byte
	Width     uint32
	Height    uint32
	Hash      string // lowercase hex blake3 of the whole buffer
	CacheFile string // empty for assets that are never cached
}

// DefaultFingerprints are the cached launcher assets
var DefaultFingerprints = []Fingerprint{
	{Role: RolePlayIcon, Magic: [][]byte{PNGSignature}, Hash: PlayIconHash, CacheFile: "play_icon.png"},
	{Role: RoleSettingsIcon, Magic: [][]byte{PNGSignature}, Hash: SettingsIconHash, CacheFile: "settings_icon.png"},
	{Role: RoleFont, Magic: [][]byte{TrueTypeMagic, OpenTypeMagic}, CacheFile: "font.ttf"},
}

// TargetBackground is the launcher background replaced at load time
var TargetBackground = Fingerprint{
	Role:   RoleBackground,
	Magic:  [][]byte{PNGSignature},
	Width:  TargetWidth,
	Height: TargetHeight,
}

// Hash returns the lowercase hex blake3 digest of data
func Hash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Match reports whether data satisfies the fingerprint
func (f Fingerprint) Match(data []byte) bool {
	if !f.matchMagic(data) {
		return false
	}

	if f.Width != 0 || f.Height != 0 {
		w, h, ok := PNGDimensions(data)
		if !ok || w != f.Width || h != f.Height {
			return false
		}
	}

	if f.Hash != "" && Hash(data) != f.Hash {
		return false
	}

	return true
}

func (f Fingerprint) matchMagic(data []byte) bool {
	for _, magic := range f.Magic {
		if bytes.HasPrefix(data, magic) {
			return true
		}
	}
	return len(f.Magic) == 0
}

// PNGDimensions reads width and height from the IHDR chunk that must follow the signature
func PNGDimensions(data []byte) (width, height uint32, ok bool) {
	if len(data) < 24 || !bytes.Equal(data[:8], PNGSignature) || !bytes.Equal(data[8:16], pngIHDR) {
		return 0, 0, false
	}
	return binary.BigEndian.Uint32(data[16:20]), binary.BigEndian.Uint32(data[20:24]), true
}

// Classify returns the first fingerprint in fps that data satisfies
func Classify(fps []Fingerprint, data []byte) (Fingerprint, bool) {
	for _, f := range fps {
		if f.Match(data) {
			return f, true
		}
	}
	return Fingerprint{}, false
}

// IsTargetBackground reports whether data is the launcher background image
func IsTargetBackground(data []byte) bool {
	return TargetBackground.Match(data)
}

// ValidateReplacement checks that data decodes as a PNG whose header agrees with its pixels
func ValidateReplacement(data []byte) error {
	w, h, ok := PNGDimensions(data)
	if !ok {
		return fmt.Errorf("replacement is not a PNG")
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("replacement PNG header: %w", err)
	}
	if uint32(cfg.Width) != w || uint32(cfg.Height) != h {
		return fmt.Errorf("replacement PNG is %dx%d, IHDR says %dx%d", cfg.Width, cfg.Height, w, h)
	}

	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("replacement PNG does not decode: %w", err)
	}
	return nil
}
