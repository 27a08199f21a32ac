package ledger

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// timeLayout keeps every fractional digit so the stored strings are fixed
// width and lexicographic order matches time order. RFC3339Nano trims
// trailing zeros, which breaks ORDER BY on the column.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// TimeToString converts a time.Time to a fixed-width UTC string for
// database storage.
func TimeToString(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// StringToTime converts a stored timestamp string back to time.Time.
func StringToTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// OpenDB opens (and creates if necessary) the sqlite database at path.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// One writer at a time is assumed; busy_timeout covers the status
	// surface reading while the queue worker advances.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// NewInMemoryDB creates a new in-memory SQLite database for testing
func NewInMemoryDB() (*sql.DB, error) {
	return OpenDB(":memory:")
}
