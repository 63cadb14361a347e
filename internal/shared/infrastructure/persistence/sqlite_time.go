package persistence

import (
	"database/sql"
	"time"
)

// SQLiteTimeLayout is fixed-width so that TEXT comparison orders chronologically.
const SQLiteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func FormatSQLiteTime(t time.Time) string { return t.UTC().Format(SQLiteTimeLayout) }

func ParseSQLiteTime(s string) (time.Time, error) {
	return time.Parse(SQLiteTimeLayout, s)
}

// NullSQLiteTime maps a nil time to NULL.
func NullSQLiteTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatSQLiteTime(*t), Valid: true}
}

// ParseNullSQLiteTime maps NULL to a nil time.
func ParseNullSQLiteTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := ParseSQLiteTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
