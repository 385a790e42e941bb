// Package database provides SQLite connectivity for the voice gateway.
//
// This package manages:
//   - Connection lifecycle with WAL mode and busy timeout pragmas
//   - Embedded schema migrations (registered by the migrations package)
//   - Health checks for startup verification
//
// The gateway uses SQLite as the persistent config store backing
// internal/configstore. The default location is ./data/voicegw.db and can
// be overridden via VOICEGW_DATABASE_PATH.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/voicegw.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
