// Package assets holds files compiled into the injected module.
package assets

import _ "embed"

// Background replaces the launcher background image. It keeps the original 608x344 size.
//
//go:embed background.png
var Background []byte
