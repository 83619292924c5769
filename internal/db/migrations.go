// internal/db/migrations.go
package db

import "fmt"

// Mirror of the DB2 catalog views the mapper reads. Column names follow
// SYSCAT.ROUTINES and SYSCAT.ROUTINEPARMS so query results map directly.
const catalogSchema = `
CREATE TABLE IF NOT EXISTS syscat_schemata (
    schemaname    TEXT PRIMARY KEY,
    owner         TEXT,
    remarks       TEXT
);

CREATE TABLE IF NOT EXISTS syscat_modules (
    moduleschema  TEXT NOT NULL REFERENCES syscat_schemata(schemaname) ON DELETE CASCADE,
    modulename    TEXT NOT NULL,
    moduleid      INTEGER,
    owner         TEXT,
    remarks       TEXT,
    PRIMARY KEY (moduleschema, modulename)
);

CREATE TABLE IF NOT EXISTS syscat_routines (
    routineschema      TEXT NOT NULL REFERENCES syscat_schemata(schemaname) ON DELETE CASCADE,
    routinemodulename  TEXT,
    specificname       TEXT NOT NULL,
    routinename        TEXT NOT NULL,
    routineid          INTEGER,
    routinetype        TEXT,
    origin             TEXT,
    language           TEXT,
    owner              TEXT,
    ownertype          TEXT,
    create_time        TEXT,
    alter_time         TEXT,
    last_regen_time    TEXT,
    text               TEXT,
    remarks            TEXT,
    result_sets        INTEGER,
    parameter_style    TEXT,
    deterministic      TEXT,
    implementation     TEXT,
    debug_mode         TEXT,
    jar_id             TEXT,
    jarschema          TEXT,
    jar_signature      TEXT,
    class              TEXT,
    valid              TEXT,
    dialect            TEXT,
    functiontype       TEXT,
    PRIMARY KEY (routineschema, specificname)
);

CREATE INDEX IF NOT EXISTS idx_syscat_routines_name ON syscat_routines(routineschema, routinename);

CREATE TABLE IF NOT EXISTS syscat_routineparms (
    routineschema  TEXT NOT NULL,
    specificname   TEXT NOT NULL,
    parmname       TEXT,
    ordinal        INTEGER NOT NULL,
    rowtype        TEXT NOT NULL,
    typeschema     TEXT,
    typename       TEXT,
    length         INTEGER,
    scale          INTEGER,
    codepage       INTEGER,
    locator        TEXT,
    default_value  TEXT,
    remarks        TEXT,
    PRIMARY KEY (routineschema, specificname, rowtype, ordinal),
    FOREIGN KEY (routineschema, specificname)
        REFERENCES syscat_routines(routineschema, specificname) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS catalog_info (
    key    TEXT PRIMARY KEY,
    value  TEXT
);
`

// RunMigrations creates the catalog tables if they do not exist.
func (db *DB) RunMigrations() error {
	_, err := db.Exec(catalogSchema)
	if err != nil {
		return fmt.Errorf("failed to run catalog migrations: %w", err)
	}
	return nil
}
