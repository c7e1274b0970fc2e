// Package database provides SQLite database connectivity for Stockwise Core.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Embedded schema migrations (up/down SQL files)
//   - Connection pooling and lifecycle management
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files live in the migrations package and are embedded into the
// binary, so no SQL files need to be present on the filesystem at runtime.
package database
