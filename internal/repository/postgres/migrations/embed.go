// Package migrations embeds the checkout attempt ledger schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
