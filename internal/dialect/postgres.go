package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// PostgresAdapter serves PostgreSQL through information_schema and pg_catalog.
type PostgresAdapter struct {
	log *zap.Logger
}

func (d *PostgresAdapter) Name() string { return "postgres" }

func (d *PostgresAdapter) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *PostgresAdapter) QuoteTable(schema, table string) string {
	if schema == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}

func (d *PostgresAdapter) DefaultSchema() string { return "public" }

func (d *PostgresAdapter) ResolveDefaultSchema(ctx context.Context, db *sql.DB) string {
	return d.DefaultSchema()
}

func (d *PostgresAdapter) NormalizeSchema(schema string) string { return schema }

func (d *PostgresAdapter) TablesQuery() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`
}

func (d *PostgresAdapter) ColumnsQuery() string {
	// udt_name is reported for USER-DEFINED so enum columns keep their type
	// name; varchar/numeric carry their length/precision.
	return `SELECT
    c.table_name,
    c.column_name,
    CASE
        WHEN c.character_maximum_length IS NOT NULL THEN c.udt_name || '(' || c.character_maximum_length || ')'
        WHEN c.data_type = 'numeric' AND c.numeric_precision IS NOT NULL THEN 'numeric(' || c.numeric_precision || ',' || COALESCE(c.numeric_scale, 0) || ')'
        WHEN c.data_type = 'USER-DEFINED' THEN c.udt_name
        WHEN c.data_type = 'ARRAY' THEN 'array'
        ELSE c.data_type
    END AS data_type,
    c.is_nullable,
    c.column_default,
    CASE WHEN c.is_identity = 'YES' THEN 'identity' ELSE '' END AS extra
FROM information_schema.columns c
WHERE c.table_schema = $1
ORDER BY c.table_name, c.ordinal_position`
}

func (d *PostgresAdapter) PrimaryKeysQuery() string {
	return `SELECT kcu.table_name, kcu.column_name
FROM information_schema.key_column_usage kcu
JOIN information_schema.table_constraints tc ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
WHERE kcu.table_schema = $1 AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY kcu.table_name, kcu.ordinal_position`
}

func (d *PostgresAdapter) ForeignKeysQuery() string {
	return `SELECT kcu.table_name, kcu.column_name, ccu.table_name AS ref_table, ccu.column_name AS ref_column
FROM information_schema.key_column_usage kcu
JOIN information_schema.constraint_column_usage ccu ON kcu.constraint_name = ccu.constraint_name AND kcu.table_schema = ccu.table_schema
JOIN information_schema.table_constraints tc ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
WHERE kcu.table_schema = $1 AND tc.constraint_type = 'FOREIGN KEY'`
}

func (d *PostgresAdapter) DatabaseTimezone(ctx context.Context, db *sql.DB) string {
	return scalarString(ctx, db, "SHOW timezone", "Unknown")
}

func (d *PostgresAdapter) CheckConstraints(ctx context.Context, db *sql.DB, schema string) map[string][]CheckConstraint {
	out := map[string][]CheckConstraint{}
	query := `SELECT tc.table_name, ccu.column_name, tc.constraint_name, cc.check_clause
FROM information_schema.table_constraints tc
JOIN information_schema.check_constraints cc ON tc.constraint_name = cc.constraint_name AND tc.constraint_schema = cc.constraint_schema
JOIN information_schema.constraint_column_usage ccu ON tc.constraint_name = ccu.constraint_name AND tc.constraint_schema = ccu.constraint_schema
WHERE tc.constraint_type = 'CHECK' AND tc.table_schema = $1 AND tc.constraint_name NOT LIKE '%_not_null'`
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

func (d *PostgresAdapter) EnumColumns(ctx context.Context, db *sql.DB, schema string) map[string]map[string][]string {
	out := map[string]map[string][]string{}
	query := `SELECT c.table_name, c.column_name, array_to_string(array_agg(e.enumlabel ORDER BY e.enumsortorder), ',') AS enum_values
FROM information_schema.columns c
JOIN pg_type t ON t.typname = c.udt_name
JOIN pg_enum e ON e.enumtypid = t.oid
WHERE c.table_schema = $1 AND c.data_type = 'USER-DEFINED'
GROUP BY c.table_name, c.column_name, c.udt_name`
	err := forEachRow(ctx, db, query, []any{schema}, func(rows *sql.Rows) error {
		var tbl, col, values sql.NullString
		if err := rows.Scan(&tbl, &col, &values); err != nil {
			return err
		}
		if out[tbl.String] == nil {
			out[tbl.String] = map[string][]string{}
		}
		out[tbl.String][col.String] = strings.Split(values.String, ",")
		return nil
	})
	if err != nil {
		d.log.Warn("could not fetch ENUM columns", zap.Error(err))
		return map[string]map[string][]string{}
	}
	return out
}

func (d *PostgresAdapter) UniqueConstraints(ctx context.Context, db *sql.DB, schema string) map[string]map[string]bool {
	out := map[string]map[string]bool{}
	query := `SELECT tc.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'UNIQUE' AND tc.table_schema = $1`
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

func (d *PostgresAdapter) CDCEnabled(ctx context.Context, db *sql.DB, schema, table string) bool {
	// REPLICA IDENTITY FULL ('f') or USING INDEX ('i') means row images are
	// available to logical decoding.
	var ident sql.NullString
	err := db.QueryRowContext(ctx, `SELECT c.relreplident FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND c.relname = $2`, schema, table).Scan(&ident)
	if err != nil {
		return false
	}
	return ident.String == "f" || ident.String == "i"
}

func (d *PostgresAdapter) PartitionColumns(ctx context.Context, db *sql.DB, schema, table string, cols []ColumnMeta) []string {
	var native []string
	query := `SELECT a.attname FROM pg_partitioned_table pt
JOIN pg_class c ON c.oid = pt.partrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(pt.partattrs::smallint[])
WHERE c.relname = $1 AND n.nspname = $2
ORDER BY a.attnum`
	err := forEachRow(ctx, db, query, []any{table, schema}, func(rows *sql.Rows) error {
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

func (d *PostgresAdapter) LimitClause(limit int) string {
	return fmt.Sprintf("LIMIT %d", limit)
}

func (d *PostgresAdapter) SelectLimitQuery(schema, table string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", d.QuoteTable(schema, table), limit)
}

func (d *PostgresAdapter) OrderByNullableFirst(column string) string {
	return d.QuoteIdentifier(column) + " NULLS FIRST"
}

func (d *PostgresAdapter) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresAdapter) SupportsLateArriving() bool { return true }

func (d *PostgresAdapter) LateArrivingBizExpr(column, colType string) string {
	quoted := d.QuoteIdentifier(column)
	lower := strings.ToLower(colType)
	if strings.Contains(lower, "date") && !strings.Contains(lower, "timestamp") {
		return quoted + "::timestamp"
	}
	return quoted
}

func (d *PostgresAdapter) LateArrivingQuery(schema, table, bizCol, sysCol, bizExpr string) string {
	qt := d.QuoteTable(schema, table)
	qSys := d.QuoteIdentifier(sysCol)
	qBiz := d.QuoteIdentifier(bizCol)
	return fmt.Sprintf(`SELECT COUNT(*) AS total,
    COUNT(*) FILTER (WHERE lh > 24) AS late_1d,
    COUNT(*) FILTER (WHERE lh > 168) AS late_7d,
    ROUND(MIN(lh)::numeric, 2) AS min_h,
    ROUND(AVG(lh)::numeric, 2) AS avg_h,
    ROUND(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY lh)::numeric, 2) AS p95_h,
    ROUND(MAX(lh)::numeric, 2) AS max_h
FROM (SELECT EXTRACT(EPOCH FROM (%s - %s))/3600.0 AS lh FROM %s WHERE %s IS NOT NULL AND %s IS NOT NULL) sub
WHERE lh >= 0`, qSys, bizExpr, qt, qSys, qBiz)
}
