// Package database opens the agent's SQLite settings file and keeps its
// schema current.
//
// The schema version lives in PRAGMA user_version. Migrations are embedded
// by the migrations package as NNNN_description.up.sql and applied in order
// on boot, each in its own transaction. Down files are kept alongside for
// manual recovery and are never run by the agent.
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Settings.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
