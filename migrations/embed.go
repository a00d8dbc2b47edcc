// Package migrations ships the Postgres schema with the binary.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
