package sqlstore

import (
	"errors"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Postgres SQLSTATE codes.
const (
	pqUniqueViolation = "23505"
	pqDuplicateTable  = "42P07"
	pqDuplicateObject = "42710"
	pqDuplicateColumn = "42701"
)

// isUniqueViolation reports whether err is a unique/primary key violation
// on either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}

// isAlreadyExists reports whether a DDL error means another process created
// the object first.
func isAlreadyExists(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation, pqDuplicateTable, pqDuplicateObject, pqDuplicateColumn:
			return true
		}
	}
	return false
}
