// Package assets embeds the arena maps shipped with the server binary.
package assets

import "embed"

// ArenasDir is the directory of the embedded arena TMX files inside Arenas.
const ArenasDir = "arenas"

//go:embed arenas/*.tmx
var Arenas embed.FS
