// Package mobile holds the web client served to phones at "/".
package mobile

import (
	"embed"
	"io/fs"
)

//go:embed static
var content embed.FS

// StaticFS returns the client assets rooted at the static directory, so
// static/index.html is served as /index.html.
func StaticFS() (fs.FS, error) {
	return fs.Sub(content, "static")
}
