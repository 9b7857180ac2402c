// Package migrations embeds the ledger schema migrations.
package migrations

import "embed"

// FS holds the goose SQL migrations at its root.
//
//go:embed *.sql
var FS embed.FS
