//go:build !cgo_sqlite

package main

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// initDB opens the corpus database with the pure Go driver.
func initDB(dataSource string) (*sql.DB, error) {
	if err := ensureDataDir(dataSource); err != nil {
		return nil, err
	}
	return sql.Open("sqlite", dataSource)
}
