package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// MySQLAdapter serves MySQL / MariaDB. The "schema" is the database name.
type MySQLAdapter struct {
	log *zap.Logger
}

func (d *MySQLAdapter) Name() string { return "mysql" }

func (d *MySQLAdapter) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MySQLAdapter) QuoteTable(schema, table string) string {
	if schema == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}

func (d *MySQLAdapter) DefaultSchema() string { return "" }

func (d *MySQLAdapter) ResolveDefaultSchema(ctx context.Context, db *sql.DB) string {
	return scalarString(ctx, db, "SELECT DATABASE()", "")
}

func (d *MySQLAdapter) NormalizeSchema(schema string) string { return schema }

func (d *MySQLAdapter) TablesQuery() string {
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (d *MySQLAdapter) ColumnsQuery() string {
	// COLUMN_TYPE carries length/precision and enum definitions verbatim.
	return `SELECT TABLE_NAME, COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, EXTRA
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = ?
ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (d *MySQLAdapter) PrimaryKeysQuery() string {
	return `SELECT TABLE_NAME, COLUMN_NAME FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? AND COLUMN_KEY = 'PRI' ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (d *MySQLAdapter) ForeignKeysQuery() string {
	return `SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = ? AND REFERENCED_TABLE_NAME IS NOT NULL`
}

func (d *MySQLAdapter) DatabaseTimezone(ctx context.Context, db *sql.DB) string {
	tz := scalarString(ctx, db, "SELECT @@global.time_zone", "Unknown")
	if tz == "SYSTEM" {
		return scalarString(ctx, db, "SELECT @@system_time_zone", tz)
	}
	return tz
}

// CheckConstraints reads information_schema.CHECK_CONSTRAINTS (MySQL 8.0.16+,
// MariaDB 10.2+); older servers simply degrade to empty.
func (d *MySQLAdapter) CheckConstraints(ctx context.Context, db *sql.DB, schema string) map[string][]CheckConstraint {
	out := map[string][]CheckConstraint{}
	query := `SELECT tc.TABLE_NAME, '' AS COLUMN_NAME, tc.CONSTRAINT_NAME, cc.CHECK_CLAUSE
FROM information_schema.TABLE_CONSTRAINTS tc
JOIN information_schema.CHECK_CONSTRAINTS cc ON tc.CONSTRAINT_NAME = cc.CONSTRAINT_NAME AND tc.CONSTRAINT_SCHEMA = cc.CONSTRAINT_SCHEMA
WHERE tc.CONSTRAINT_TYPE = 'CHECK' AND tc.TABLE_SCHEMA = ?`
	err := forEachRow(ctx, db, query, []any{schema}, func(rows *sql.Rows) error {
		var tbl, col, name, clause sql.NullString
		if err := rows.Scan(&tbl, &col, &name, &clause); err != nil {
			return err
		}
		c := CheckConstraint{Column: col.String, Name: name.String, Clause: clause.String}
		if c.Column == "" {
			c.Column = columnFromCheckClause(clause.String)
		}
		out[tbl.String] = append(out[tbl.String], c)
		return nil
	})
	if err != nil {
		d.log.Warn("could not fetch CHECK constraints", zap.Error(err))
		return map[string][]CheckConstraint{}
	}
	return out
}

// columnFromCheckClause pulls the first backtick-quoted identifier out of a
// MySQL check clause, e.g. "(`status` in ('a','b'))" -> "status".
func columnFromCheckClause(clause string) string {
	start := strings.IndexByte(clause, '`')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(clause[start+1:], '`')
	if end < 0 {
		return ""
	}
	return clause[start+1 : start+1+end]
}

func (d *MySQLAdapter) EnumColumns(ctx context.Context, db *sql.DB, schema string) map[string]map[string][]string {
	out := map[string]map[string][]string{}
	query := `SELECT TABLE_NAME, COLUMN_NAME, COLUMN_TYPE
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = ? AND DATA_TYPE = 'enum'`
	err := forEachRow(ctx, db, query, []any{schema}, func(rows *sql.Rows) error {
		var tbl, col, colType sql.NullString
		if err := rows.Scan(&tbl, &col, &colType); err != nil {
			return err
		}
		if out[tbl.String] == nil {
			out[tbl.String] = map[string][]string{}
		}
		out[tbl.String][col.String] = parseEnumValues(colType.String)
		return nil
	})
	if err != nil {
		d.log.Warn("could not fetch ENUM columns", zap.Error(err))
		return map[string]map[string][]string{}
	}
	return out
}

// parseEnumValues unpacks "enum('a','b','c')" into its member list.
func parseEnumValues(colType string) []string {
	open := strings.IndexByte(colType, '(')
	end := strings.LastIndexByte(colType, ')')
	if open < 0 || end <= open {
		return nil
	}
	parts := strings.Split(colType[open+1:end], ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		values = append(values, strings.Trim(strings.TrimSpace(p), "'"))
	}
	return values
}

func (d *MySQLAdapter) UniqueConstraints(ctx context.Context, db *sql.DB, schema string) map[string]map[string]bool {
	out := map[string]map[string]bool{}
	query := `SELECT TABLE_NAME, COLUMN_NAME FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? AND COLUMN_KEY = 'UNI'`
	err := forEachRow(ctx, db, query, []any{schema}, func(rows *sql.Rows) error {
		var tbl, col sql.NullString
		if err := rows.Scan(&tbl, &col); err != nil {
			return err
		}
		if out[tbl.String] == nil {
			out[tbl.String] = map[string]bool{}
		}
		out[tbl.String][col.String] = true
		return nil
	})
	if err != nil {
		d.log.Warn("could not fetch UNIQUE constraints", zap.Error(err))
		return map[string]map[string]bool{}
	}
	return out
}

// CDCEnabled checks whether the binary log is on; MySQL change capture
// (binlog readers) is server-wide rather than per table.
func (d *MySQLAdapter) CDCEnabled(ctx context.Context, db *sql.DB, schema, table string) bool {
	return scalarString(ctx, db, "SELECT @@log_bin", "0") == "1"
}

func (d *MySQLAdapter) PartitionColumns(ctx context.Context, db *sql.DB, schema, table string, cols []ColumnMeta) []string {
	var native []string
	query := `SELECT DISTINCT PARTITION_EXPRESSION
FROM information_schema.PARTITIONS
WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND PARTITION_EXPRESSION IS NOT NULL`
	err := forEachRow(ctx, db, query, []any{schema, table}, func(rows *sql.Rows) error {
		var expr sql.NullString
		if err := rows.Scan(&expr); err != nil {
			return err
		}
		if col := columnFromCheckClause(expr.String); col != "" {
			native = append(native, col)
		}
		return nil
	})
	if err == nil && len(native) > 0 {
		return native
	}
	return HeuristicPartitionColumns(cols)
}

func (d *MySQLAdapter) LimitClause(limit int) string {
	return fmt.Sprintf("LIMIT %d", limit)
}

func (d *MySQLAdapter) SelectLimitQuery(schema, table string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", d.QuoteTable(schema, table), limit)
}

func (d *MySQLAdapter) OrderByNullableFirst(column string) string {
	return nullsFirstByCase(d.QuoteIdentifier(column))
}

func (d *MySQLAdapter) Placeholder(index int) string { return "?" }

func (d *MySQLAdapter) SupportsLateArriving() bool { return true }

func (d *MySQLAdapter) LateArrivingBizExpr(column, colType string) string {
	return d.QuoteIdentifier(column)
}

func (d *MySQLAdapter) LateArrivingQuery(schema, table, bizCol, sysCol, bizExpr string) string {
	qt := d.QuoteTable(schema, table)
	qSys := d.QuoteIdentifier(sysCol)
	qBiz := d.QuoteIdentifier(bizCol)
	// MySQL has no PERCENTILE_CONT. Approximate P95 as the max lag within the
	// lowest 95 NTILE buckets; needs window functions (8.0+), older servers
	// fail the query and the caller skips the check.
	return fmt.Sprintf(`SELECT COUNT(*) AS total,
    SUM(CASE WHEN lh > 24 THEN 1 ELSE 0 END) AS late_1d,
    SUM(CASE WHEN lh > 168 THEN 1 ELSE 0 END) AS late_7d,
    ROUND(MIN(lh), 2) AS min_h,
    ROUND(AVG(lh), 2) AS avg_h,
    ROUND(MAX(CASE WHEN tile <= 95 THEN lh END), 2) AS p95_h,
    ROUND(MAX(lh), 2) AS max_h
FROM (
    SELECT lh, NTILE(100) OVER (ORDER BY lh) AS tile
    FROM (SELECT TIMESTAMPDIFF(SECOND, %[1]s, %[2]s) / 3600.0 AS lh FROM %[3]s WHERE %[2]s IS NOT NULL AND %[4]s IS NOT NULL) raw
    WHERE lh >= 0
) sub`, bizExpr, qSys, qt, qBiz)
}
