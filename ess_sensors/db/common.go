package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

var (
	db *sql.DB
)

const schema = `
create table if not exists telemetry
(
    run_id    text             not null,
    device    text             not null,
    timestamp int              not null,
    code      int              not null,
    channel   int              not null,
    value     double precision
);
create index if not exists telemetry_timestamp_index on telemetry (timestamp);
create index if not exists telemetry_device_timestamp_index on telemetry (device, timestamp);`

// Init opens the sqlite database at dsn and creates the telemetry table.
func Init(dsn string) error {
	var err error
	if db, err = sql.Open("sqlite3", dsn); err != nil {
		return err
	}
	// sqlite allows one writer
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return err
	}
	return nil
}

func Close() {
	_ = db.Close()
}
