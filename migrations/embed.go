// Package migrations embeds the SQL schema migration files into the binary.
//
// Files follow the naming convention YYYYMMDD_HHMMSS_description.up.sql with
// a matching .down.sql for rollback. The database package discovers them via
// database.MigrationsFS.
package migrations

import (
	"embed"

	"github.com/stockwise/stockwise-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
