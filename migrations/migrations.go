// Package migrations embeds the SQL schema for golang-migrate. Files are
// applied in version order by cmd/migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
