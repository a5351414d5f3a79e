package migrations

import "embed"

// Files contains the SQL migrations embedded into the binary. Migrations use
// a flat naming convention (001_init.sql, 002_..., ...) and are applied in
// lexical order by the store migrations runner.
//
//go:embed *.sql
var Files embed.FS
