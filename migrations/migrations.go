// Package migrations embeds the SQL schema for the proc_def model store.
package migrations

import "embed"

// FS holds the golang-migrate up/down files
//
//go:embed *.sql
var FS embed.FS
