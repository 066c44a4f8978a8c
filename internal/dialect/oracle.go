package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// OracleAdapter serves Oracle through the ALL_* catalog views. Oracle has no
// schema separate from the owning user, so the default schema resolves to
// the session user at runtime.
type OracleAdapter struct {
	log *zap.Logger
}

func (d *OracleAdapter) Name() string { return "oracle" }

func (d *OracleAdapter) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *OracleAdapter) QuoteTable(schema, table string) string {
	if schema == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}

func (d *OracleAdapter) DefaultSchema() string { return "USER" }

func (d *OracleAdapter) ResolveDefaultSchema(ctx context.Context, db *sql.DB) string {
	return scalarString(ctx, db, "SELECT USER FROM DUAL", d.DefaultSchema())
}

func (d *OracleAdapter) NormalizeSchema(schema string) string {
	return strings.ToUpper(schema)
}

func (d *OracleAdapter) TablesQuery() string {
	return `SELECT TABLE_NAME FROM ALL_TABLES WHERE OWNER = :1 AND TABLE_NAME NOT LIKE 'BIN$%' ORDER BY TABLE_NAME`
}

func (d *OracleAdapter) ColumnsQuery() string {
	return `SELECT
    t.TABLE_NAME,
    t.COLUMN_NAME,
    CASE
        WHEN t.DATA_TYPE IN ('VARCHAR2', 'NVARCHAR2', 'CHAR', 'NCHAR') THEN t.DATA_TYPE || '(' || t.DATA_LENGTH || ')'
        WHEN t.DATA_TYPE = 'NUMBER' AND t.DATA_PRECISION IS NOT NULL THEN 'NUMBER(' || t.DATA_PRECISION || ',' || COALESCE(t.DATA_SCALE, 0) || ')'
        ELSE t.DATA_TYPE
    END AS DATA_TYPE,
    CASE WHEN t.NULLABLE = 'Y' THEN 'YES' ELSE 'NO' END AS IS_NULLABLE,
    t.DATA_DEFAULT,
    CASE WHEN t.IDENTITY_COLUMN = 'YES' THEN 'identity' ELSE '' END AS EXTRA
FROM ALL_TAB_COLUMNS t
WHERE t.OWNER = :1 AND t.TABLE_NAME NOT LIKE 'BIN$%'
ORDER BY t.TABLE_NAME, t.COLUMN_ID`
}

func (d *OracleAdapter) PrimaryKeysQuery() string {
	return `SELECT cc.TABLE_NAME, cc.COLUMN_NAME
FROM ALL_CONS_COLUMNS cc
JOIN ALL_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME AND cc.OWNER = uc.OWNER
WHERE uc.CONSTRAINT_TYPE = 'P' AND uc.OWNER = :1
ORDER BY cc.TABLE_NAME, cc.POSITION`
}

func (d *OracleAdapter) ForeignKeysQuery() string {
	return `SELECT c.TABLE_NAME, cc.COLUMN_NAME, r.TABLE_NAME AS REF_TABLE, rcc.COLUMN_NAME AS REF_COLUMN
FROM ALL_CONSTRAINTS c
JOIN ALL_CONS_COLUMNS cc ON c.CONSTRAINT_NAME = cc.CONSTRAINT_NAME AND c.OWNER = cc.OWNER
JOIN ALL_CONSTRAINTS r ON c.R_CONSTRAINT_NAME = r.CONSTRAINT_NAME AND c.R_OWNER = r.OWNER
JOIN ALL_CONS_COLUMNS rcc ON r.CONSTRAINT_NAME = rcc.CONSTRAINT_NAME AND r.OWNER = rcc.OWNER AND cc.POSITION = rcc.POSITION
WHERE c.CONSTRAINT_TYPE = 'R' AND c.OWNER = :1`
}

func (d *OracleAdapter) DatabaseTimezone(ctx context.Context, db *sql.DB) string {
	tz := scalarString(ctx, db, "SELECT SESSIONTIMEZONE FROM DUAL", "")
	if tz != "" {
		return tz
	}
	return scalarString(ctx, db, "SELECT DBTIMEZONE FROM DUAL", "Unknown")
}

func (d *OracleAdapter) CheckConstraints(ctx context.Context, db *sql.DB, schema string) map[string][]CheckConstraint {
	out := map[string][]CheckConstraint{}
	query := `SELECT ac.TABLE_NAME, acc.COLUMN_NAME, ac.CONSTRAINT_NAME, ac.SEARCH_CONDITION_VC
FROM ALL_CONSTRAINTS ac
JOIN ALL_CONS_COLUMNS acc ON ac.CONSTRAINT_NAME = acc.CONSTRAINT_NAME AND ac.OWNER = acc.OWNER
WHERE ac.CONSTRAINT_TYPE = 'C'
    AND ac.OWNER = :1
    AND ac.TABLE_NAME NOT LIKE 'BIN$%'
    AND ac.SEARCH_CONDITION_VC IS NOT NULL
    AND ac.CONSTRAINT_NAME NOT LIKE 'SYS_%'
    AND ac.SEARCH_CONDITION_VC NOT LIKE '%IS NOT NULL%'`
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

// EnumColumns is empty for Oracle: the engine has no ENUM type.
func (d *OracleAdapter) EnumColumns(ctx context.Context, db *sql.DB, schema string) map[string]map[string][]string {
	return map[string]map[string][]string{}
}

func (d *OracleAdapter) UniqueConstraints(ctx context.Context, db *sql.DB, schema string) map[string]map[string]bool {
	out := map[string]map[string]bool{}
	query := `SELECT ac.TABLE_NAME, acc.COLUMN_NAME
FROM ALL_CONSTRAINTS ac
JOIN ALL_CONS_COLUMNS acc ON ac.CONSTRAINT_NAME = acc.CONSTRAINT_NAME AND ac.OWNER = acc.OWNER
WHERE ac.CONSTRAINT_TYPE = 'U' AND ac.OWNER = :1 AND ac.TABLE_NAME NOT LIKE 'BIN$%'`
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

// CDCEnabled always reports false: Oracle change capture (GoldenGate,
// LogMiner) is not discoverable from the ALL_* views available to a
// profiling user.
func (d *OracleAdapter) CDCEnabled(ctx context.Context, db *sql.DB, schema, table string) bool {
	return false
}

func (d *OracleAdapter) PartitionColumns(ctx context.Context, db *sql.DB, schema, table string, cols []ColumnMeta) []string {
	var native []string
	query := `SELECT COLUMN_NAME FROM ALL_PART_KEY_COLUMNS
WHERE OWNER = :1 AND NAME = :2 AND OBJECT_TYPE = 'TABLE'
ORDER BY COLUMN_POSITION`
	err := forEachRow(ctx, db, query, []any{schema, strings.ToUpper(table)}, func(rows *sql.Rows) error {
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

func (d *OracleAdapter) LimitClause(limit int) string {
	return fmt.Sprintf("FETCH FIRST %d ROWS ONLY", limit)
}

func (d *OracleAdapter) SelectLimitQuery(schema, table string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s FETCH FIRST %d ROWS ONLY", d.QuoteTable(schema, table), limit)
}

func (d *OracleAdapter) OrderByNullableFirst(column string) string {
	return d.QuoteIdentifier(column) + " NULLS FIRST"
}

func (d *OracleAdapter) Placeholder(index int) string {
	return fmt.Sprintf(":%d", index+1)
}

func (d *OracleAdapter) SupportsLateArriving() bool { return true }

func (d *OracleAdapter) LateArrivingBizExpr(column, colType string) string {
	return d.QuoteIdentifier(column)
}

func (d *OracleAdapter) LateArrivingQuery(schema, table, bizCol, sysCol, bizExpr string) string {
	qt := d.QuoteTable(schema, table)
	qSys := d.QuoteIdentifier(sysCol)
	qBiz := d.QuoteIdentifier(bizCol)
	// CAST both sides to DATE so the subtraction yields numeric days instead
	// of an INTERVAL (ORA-00932 when mixing TIMESTAMP and DATE).
	return fmt.Sprintf(`SELECT COUNT(*) AS total,
    SUM(CASE WHEN lh > 24 THEN 1 ELSE 0 END) AS late_1d,
    SUM(CASE WHEN lh > 168 THEN 1 ELSE 0 END) AS late_7d,
    ROUND(MIN(lh), 2) AS min_h,
    ROUND(AVG(lh), 2) AS avg_h,
    ROUND(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY lh), 2) AS p95_h,
    ROUND(MAX(lh), 2) AS max_h
FROM (SELECT (CAST(%[1]s AS DATE) - CAST(%[2]s AS DATE)) * 24 AS lh FROM %[3]s WHERE %[1]s IS NOT NULL AND %[2]s IS NOT NULL) sub
WHERE lh >= 0`, qSys, qBiz, qt)
}
