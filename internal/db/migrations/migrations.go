// Package migrations embeds the schema so binaries can migrate without shipping
// SQL files alongside them.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
