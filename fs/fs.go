// Package appfs embeds the database migrations and email templates so the
// binaries ship self-contained.
package appfs

import "embed"

//go:embed migrations all:assets
var FS embed.FS
