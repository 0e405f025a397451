// Package appfs embeds the static files shipped with the binaries.
package appfs

import "embed"

//go:embed all:templates migrations data schemas
var FS embed.FS
