package dialect

import (
	"context"
	"database/sql"
)

// ColumnMeta is the minimal column view adapters need for catalog-free
// heuristics such as partition key detection.
type ColumnMeta struct {
	Name string
	Type string
}

// CheckConstraint describes one CHECK constraint bound to a column.
type CheckConstraint struct {
	Column string
	Name   string
	Clause string
}

// Adapter abstracts vendor-specific catalog access and SQL generation.
//
// Introspection methods degrade to an empty result when the engine rejects
// the call (missing privilege, unsupported feature, absent catalog view);
// they log a warning and never abort the run.
type Adapter interface {
	// Name returns the driver name this adapter serves.
	Name() string

	// Identifier quoting
	QuoteIdentifier(name string) string
	QuoteTable(schema, table string) string

	// Schema resolution
	DefaultSchema() string
	ResolveDefaultSchema(ctx context.Context, db *sql.DB) string
	// NormalizeSchema adjusts a user-supplied schema name to the form the
	// vendor catalog expects (e.g. Oracle stores owners upper-case).
	NormalizeSchema(schema string) string

	// Catalog reflection queries. Each takes the target schema as its single
	// bind parameter and yields a fixed column shape consumed by the crawler:
	//   TablesQuery      -> (table_name)
	//   ColumnsQuery     -> (table_name, column_name, data_type, is_nullable, column_default, extra)
	//   PrimaryKeysQuery -> (table_name, column_name)
	//   ForeignKeysQuery -> (table_name, column_name, ref_table, ref_column)
	TablesQuery() string
	ColumnsQuery() string
	PrimaryKeysQuery() string
	ForeignKeysQuery() string

	// Server and constraint introspection
	DatabaseTimezone(ctx context.Context, db *sql.DB) string
	CheckConstraints(ctx context.Context, db *sql.DB, schema string) map[string][]CheckConstraint
	EnumColumns(ctx context.Context, db *sql.DB, schema string) map[string]map[string][]string
	UniqueConstraints(ctx context.Context, db *sql.DB, schema string) map[string]map[string]bool
	CDCEnabled(ctx context.Context, db *sql.DB, schema, table string) bool
	PartitionColumns(ctx context.Context, db *sql.DB, schema, table string, cols []ColumnMeta) []string

	// Query generation
	LimitClause(limit int) string
	SelectLimitQuery(schema, table string, limit int) string
	OrderByNullableFirst(column string) string
	Placeholder(index int) string

	// Late-arriving data support
	SupportsLateArriving() bool
	// LateArrivingBizExpr returns the expression used for the business-date
	// column inside the lag query. Plain DATE columns usually need a cast so
	// the subtraction yields a duration.
	LateArrivingBizExpr(column, colType string) string
	LateArrivingQuery(schema, table, bizCol, sysCol, bizExpr string) string
}
