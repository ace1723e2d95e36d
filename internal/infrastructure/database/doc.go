// Package database owns the bridge's SQLite handle.
//
// The database stores the device registry: every RF device the bridge has
// seen or been told about, its profile binding, redirect target and last
// published state. WAL mode keeps registry reads responsive while the event
// pipeline writes, and a busy timeout absorbs the rare lock collision.
//
// The schema is managed by embedded migrations:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files live in the migrations package as
// <version>_<name>.up.sql / .down.sql pairs and are additive: new columns
// arrive nullable or with defaults so an older binary can still read the
// file. All queries use placeholders; the file is chmod 0600.
package database
