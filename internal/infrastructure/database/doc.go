// Package database provides SQLite connectivity for Hotel Core.
//
// It owns the connection (WAL mode, busy timeout, foreign keys, a single
// open connection), the embedded migration runner and the timestamp
// encoding shared by every repository.
//
// Timestamps are stored as fixed-width UTC text (TimeLayout) so string
// comparison in SQL matches time ordering.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
