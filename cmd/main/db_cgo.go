//go:build cgo_sqlite

package main

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// initDB opens the corpus database with the cgo driver.
func initDB(dataSource string) (*sql.DB, error) {
	if err := ensureDataDir(dataSource); err != nil {
		return nil, err
	}
	return sql.Open("sqlite3", dataSource)
}
