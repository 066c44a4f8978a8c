package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// MSSQLAdapter serves SQL Server / Azure SQL through INFORMATION_SCHEMA and
// the sys.* catalog.
type MSSQLAdapter struct {
	log *zap.Logger
}

func (d *MSSQLAdapter) Name() string { return "sqlserver" }

func (d *MSSQLAdapter) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *MSSQLAdapter) QuoteTable(schema, table string) string {
	if schema == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}

func (d *MSSQLAdapter) DefaultSchema() string { return "dbo" }

func (d *MSSQLAdapter) ResolveDefaultSchema(ctx context.Context, db *sql.DB) string {
	return d.DefaultSchema()
}

func (d *MSSQLAdapter) NormalizeSchema(schema string) string { return schema }

func (d *MSSQLAdapter) TablesQuery() string {
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (d *MSSQLAdapter) ColumnsQuery() string {
	return `SELECT
    c.TABLE_NAME,
    c.COLUMN_NAME,
    CASE
        WHEN c.CHARACTER_MAXIMUM_LENGTH IS NOT NULL AND c.CHARACTER_MAXIMUM_LENGTH > 0
            THEN c.DATA_TYPE + '(' + CAST(c.CHARACTER_MAXIMUM_LENGTH AS varchar(10)) + ')'
        WHEN c.DATA_TYPE IN ('decimal', 'numeric')
            THEN c.DATA_TYPE + '(' + CAST(c.NUMERIC_PRECISION AS varchar(10)) + ',' + CAST(c.NUMERIC_SCALE AS varchar(10)) + ')'
        ELSE c.DATA_TYPE
    END AS DATA_TYPE,
    c.IS_NULLABLE,
    c.COLUMN_DEFAULT,
    CASE WHEN COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') = 1 THEN 'identity' ELSE '' END AS EXTRA
FROM INFORMATION_SCHEMA.COLUMNS c
WHERE c.TABLE_SCHEMA = @p1
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`
}

func (d *MSSQLAdapter) PrimaryKeysQuery() string {
	return `SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1
ORDER BY kcu.TABLE_NAME, kcu.ORDINAL_POSITION`
}

func (d *MSSQLAdapter) ForeignKeysQuery() string {
	return `SELECT KCU1.TABLE_NAME, KCU1.COLUMN_NAME, KCU2.TABLE_NAME AS REF_TABLE, KCU2.COLUMN_NAME AS REF_COLUMN
FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS RC
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU1 ON RC.CONSTRAINT_NAME = KCU1.CONSTRAINT_NAME
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU2 ON RC.UNIQUE_CONSTRAINT_NAME = KCU2.CONSTRAINT_NAME AND KCU1.ORDINAL_POSITION = KCU2.ORDINAL_POSITION
WHERE KCU1.TABLE_SCHEMA = @p1`
}

func (d *MSSQLAdapter) DatabaseTimezone(ctx context.Context, db *sql.DB) string {
	return scalarString(ctx, db, "SELECT CURRENT_TIMEZONE()", "Unknown")
}

func (d *MSSQLAdapter) CheckConstraints(ctx context.Context, db *sql.DB, schema string) map[string][]CheckConstraint {
	out := map[string][]CheckConstraint{}
	query := `SELECT tc.TABLE_NAME, ccu.COLUMN_NAME, tc.CONSTRAINT_NAME, cc.CHECK_CLAUSE
FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
JOIN INFORMATION_SCHEMA.CHECK_CONSTRAINTS cc ON tc.CONSTRAINT_NAME = cc.CONSTRAINT_NAME AND tc.CONSTRAINT_SCHEMA = cc.CONSTRAINT_SCHEMA
JOIN INFORMATION_SCHEMA.CONSTRAINT_COLUMN_USAGE ccu ON tc.CONSTRAINT_NAME = ccu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = ccu.TABLE_SCHEMA
WHERE tc.CONSTRAINT_TYPE = 'CHECK' AND tc.TABLE_SCHEMA = @p1 AND tc.CONSTRAINT_NAME NOT LIKE '%_not_null'`
	err := forEachRow(ctx, db, query, []any{schema}, func(rows *sql.Rows) error {
		var tbl, col, name, clause sql.NullString
		if err := rows.Scan(&tbl, &col, &name, &clause); err != nil {
			return err
		}
		out[tbl.String] = append(out[tbl.String], CheckConstraint{Column: col.String, Name: name.String, Clause: clause.String})
		return nil
	})
	if err != nil {
		d.log.Warn("could not fetch CHECK constraints", zap.Error(err))
		return map[string][]CheckConstraint{}
	}
	return out
}

// EnumColumns is empty for SQL Server: the engine has no ENUM type.
func (d *MSSQLAdapter) EnumColumns(ctx context.Context, db *sql.DB, schema string) map[string]map[string][]string {
	return map[string]map[string][]string{}
}

func (d *MSSQLAdapter) UniqueConstraints(ctx context.Context, db *sql.DB, schema string) map[string]map[string]bool {
	out := map[string]map[string]bool{}
	query := `SELECT tc.TABLE_NAME, kcu.COLUMN_NAME
FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
WHERE tc.CONSTRAINT_TYPE = 'UNIQUE' AND tc.TABLE_SCHEMA = @p1`
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

func (d *MSSQLAdapter) CDCEnabled(ctx context.Context, db *sql.DB, schema, table string) bool {
	// Change tracking and CDC live in separate catalogs; either counts.
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM sys.change_tracking_tables ct
JOIN sys.tables t ON ct.object_id = t.object_id
JOIN sys.schemas s ON t.schema_id = s.schema_id
WHERE s.name = @p1 AND t.name = @p2`, schema, table).Scan(&one)
	if err == nil {
		return true
	}
	err = db.QueryRowContext(ctx, `SELECT 1 FROM cdc.change_tables ct
JOIN sys.tables t ON ct.source_object_id = t.object_id
JOIN sys.schemas s ON t.schema_id = s.schema_id
WHERE s.name = @p1 AND t.name = @p2`, schema, table).Scan(&one)
	return err == nil
}

func (d *MSSQLAdapter) PartitionColumns(ctx context.Context, db *sql.DB, schema, table string, cols []ColumnMeta) []string {
	var native []string
	query := `SELECT c.name
FROM sys.indexes i
JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id
JOIN sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id
JOIN sys.tables t ON i.object_id = t.object_id
JOIN sys.schemas s ON t.schema_id = s.schema_id
WHERE s.name = @p1 AND t.name = @p2
    AND i.type = 1
    AND i.data_space_id IN (SELECT data_space_id FROM sys.data_spaces WHERE type = 'P')
ORDER BY ic.key_ordinal`
	err := forEachRow(ctx, db, query, []any{schema, table}, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		native = append(native, name)
		return nil
	})
	if err == nil && len(native) > 0 {
		return native
	}
	return HeuristicPartitionColumns(cols)
}

func (d *MSSQLAdapter) LimitClause(limit int) string {
	return fmt.Sprintf("TOP %d", limit)
}

func (d *MSSQLAdapter) SelectLimitQuery(schema, table string, limit int) string {
	return fmt.Sprintf("SELECT TOP %d * FROM %s", limit, d.QuoteTable(schema, table))
}

func (d *MSSQLAdapter) OrderByNullableFirst(column string) string {
	return nullsFirstByCase(d.QuoteIdentifier(column))
}

func (d *MSSQLAdapter) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}

func (d *MSSQLAdapter) SupportsLateArriving() bool { return true }

// LateArrivingBizExpr returns the column unchanged: T-SQL TIMESTAMP is
// rowversion, not a datetime, and DATEDIFF accepts DATE/DATETIME2 directly.
func (d *MSSQLAdapter) LateArrivingBizExpr(column, colType string) string {
	return d.QuoteIdentifier(column)
}

func (d *MSSQLAdapter) LateArrivingQuery(schema, table, bizCol, sysCol, bizExpr string) string {
	qt := d.QuoteTable(schema, table)
	qSys := d.QuoteIdentifier(sysCol)
	qBiz := d.QuoteIdentifier(bizCol)
	return fmt.Sprintf(`SELECT COUNT(*) AS total,
    SUM(CASE WHEN lh > 24 THEN 1 ELSE 0 END) AS late_1d,
    SUM(CASE WHEN lh > 168 THEN 1 ELSE 0 END) AS late_7d,
    ROUND(MIN(lh), 2) AS min_h,
    ROUND(AVG(lh), 2) AS avg_h,
    ROUND((SELECT MIN(p95) FROM (
        SELECT PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY lh) OVER () AS p95
        FROM (SELECT DATEDIFF(SECOND, %[1]s, %[2]s) / 3600.0 AS lh FROM %[3]s WHERE %[2]s IS NOT NULL AND %[4]s IS NOT NULL) sub
        WHERE lh >= 0
    ) p), 2) AS p95_h,
    ROUND(MAX(lh), 2) AS max_h
FROM (SELECT DATEDIFF(SECOND, %[1]s, %[2]s) / 3600.0 AS lh FROM %[3]s WHERE %[2]s IS NOT NULL AND %[4]s IS NOT NULL) sub
WHERE lh >= 0`, bizExpr, qSys, qt, qBiz)
}
