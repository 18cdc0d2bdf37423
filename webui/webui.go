// Package webui embeds the static operator UI bundle served at "/" by
// the HTTP query API. No UI logic lives here; the bundle is peripheral
// to the query API itself.
package webui

import (
	"embed"
	"io/fs"
)

//go:embed static/*.html
var content embed.FS

// FS returns the embedded bundle rooted at its "static" directory, so
// callers mount it at "/" without the "static/" path prefix leaking
// into served URLs.
func FS() (fs.FS, error) {
	return fs.Sub(content, "static")
}
