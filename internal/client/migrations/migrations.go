// Package migrations embeds the SQL schema of the local card cache.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
