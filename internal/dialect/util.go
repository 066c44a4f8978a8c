package dialect

import (
	"context"
	"database/sql"
	"strings"
)

// Name hints used by the generic partition heuristic shared by all adapters.
// Native catalog lookups take precedence; this list only backs the fallback.
var partitionNameHints = map[string]bool{
	"order_date": true, "event_time": true, "event_date": true,
	"payment_date": true, "transaction_date": true, "created_at": true,
	"changed_at": true, "log_date": true, "partition_date": true,
	"report_date": true,
}

var partitionTypePrefixes = []string{"date", "timestamp", "timestamptz", "datetime"}

// HeuristicPartitionColumns guesses partition keys from column names and
// types: a date/timestamp column whose name is a known hint or carries a
// _date/_time/_at token.
func HeuristicPartitionColumns(cols []ColumnMeta) []string {
	var candidates []string
	for _, col := range cols {
		nameLower := strings.ToLower(col.Name)
		typeLower := strings.ToLower(col.Type)
		typeMatch := false
		for _, p := range partitionTypePrefixes {
			if strings.HasPrefix(typeLower, p) {
				typeMatch = true
				break
			}
		}
		if !typeMatch {
			continue
		}
		if partitionNameHints[nameLower] ||
			strings.Contains(nameLower, "_date") ||
			strings.Contains(nameLower, "_time") ||
			strings.Contains(nameLower, "_at") {
			candidates = append(candidates, col.Name)
		}
	}
	return candidates
}

// nullsFirstByCase emulates ORDER BY ... NULLS FIRST on engines without it.
func nullsFirstByCase(quoted string) string {
	return "CASE WHEN " + quoted + " IS NULL THEN 0 ELSE 1 END, " + quoted
}

// forEachRow runs query and invokes scan per row. Callers treat a returned
// error as "degrade to empty" per the adapter contract.
func forEachRow(ctx context.Context, db *sql.DB, query string, args []any, scan func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// scalarString fetches a single string value, returning fallback on any
// error or NULL.
func scalarString(ctx context.Context, db *sql.DB, query, fallback string, args ...any) string {
	var v sql.NullString
	if err := db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil || !v.Valid || v.String == "" {
		return fallback
	}
	return v.String
}
