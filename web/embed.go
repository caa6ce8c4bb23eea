package web

import "embed"

// Templates embeds the default page templates. A template directory set in
// the configuration replaces this set entirely.
//
//go:embed templates/*.html
var Templates embed.FS
