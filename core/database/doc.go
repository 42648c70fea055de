// Package database handles database connections and schema inspection.
//
// It provides a wrapper around GORM (Go Object Relational Mapping) to configure
// MySQL or SQLite connections based on the application's configuration.
//
// # Connect
//
// Connect opens the driver named in the configuration and pings it. SQLite is
// limited to one open connection so an in-memory database survives between
// queries, which is what the tests rely on.
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns read the live table definition. The
// records store uses them to refuse starting against a stale schema when
// auto migration is off, and the integrity feature reports drift.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	columns, err := database.GetTableColumns(db, "sync_records")
package database
