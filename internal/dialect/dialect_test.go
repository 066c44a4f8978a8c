package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func allAdapters() map[string]Adapter {
	log := zap.NewNop()
	return map[string]Adapter{
		"postgres":  Get("postgres", log),
		"sqlserver": Get("sqlserver", log),
		"oracle":    Get("oracle", log),
		"mysql":     Get("mysql", log),
	}
}

func TestRegistry(t *testing.T) {
	log := zap.NewNop()

	for name, a := range allAdapters() {
		require.NotNil(t, a, name)
	}
	assert.Equal(t, "sqlserver", Get("mssql", log).Name(), "mssql aliases sqlserver")
	assert.Nil(t, Get("sqlite", log))
	assert.Nil(t, Get("", log))

	supported := Supported()
	assert.Contains(t, supported, "postgres")
	assert.Contains(t, supported, "oracle")
	assert.IsIncreasing(t, supported)
}

func TestQuoting(t *testing.T) {
	a := allAdapters()
	assert.Equal(t, `"order"`, a["postgres"].QuoteIdentifier("order"))
	assert.Equal(t, `"say ""hi"""`, a["postgres"].QuoteIdentifier(`say "hi"`))
	assert.Equal(t, "[order]", a["sqlserver"].QuoteIdentifier("order"))
	assert.Equal(t, "[a]]b]", a["sqlserver"].QuoteIdentifier("a]b"))
	assert.Equal(t, `"ORDERS"`, a["oracle"].QuoteIdentifier("ORDERS"))
	assert.Equal(t, "`order`", a["mysql"].QuoteIdentifier("order"))
	assert.Equal(t, "`a``b`", a["mysql"].QuoteIdentifier("a`b"))

	assert.Equal(t, `"public"."users"`, a["postgres"].QuoteTable("public", "users"))
	assert.Equal(t, "[dbo].[users]", a["sqlserver"].QuoteTable("dbo", "users"))
	assert.Equal(t, "`users`", a["mysql"].QuoteTable("", "users"))
}

func TestLimitClauses(t *testing.T) {
	a := allAdapters()
	assert.Equal(t, "LIMIT 10", a["postgres"].LimitClause(10))
	assert.Equal(t, "TOP 10", a["sqlserver"].LimitClause(10))
	assert.Equal(t, "FETCH FIRST 10 ROWS ONLY", a["oracle"].LimitClause(10))
	assert.Equal(t, "LIMIT 10", a["mysql"].LimitClause(10))

	assert.Equal(t, `SELECT * FROM "public"."users" LIMIT 5`, a["postgres"].SelectLimitQuery("public", "users", 5))
	assert.Equal(t, "SELECT TOP 5 * FROM [dbo].[users]", a["sqlserver"].SelectLimitQuery("dbo", "users", 5))
	assert.Equal(t, `SELECT * FROM "HR"."EMPLOYEES" FETCH FIRST 5 ROWS ONLY`, a["oracle"].SelectLimitQuery("HR", "EMPLOYEES", 5))
}

func TestPlaceholders(t *testing.T) {
	a := allAdapters()
	assert.Equal(t, "$1", a["postgres"].Placeholder(0))
	assert.Equal(t, "$3", a["postgres"].Placeholder(2))
	assert.Equal(t, "@p1", a["sqlserver"].Placeholder(0))
	assert.Equal(t, ":2", a["oracle"].Placeholder(1))
	assert.Equal(t, "?", a["mysql"].Placeholder(0))
	assert.Equal(t, "?", a["mysql"].Placeholder(5))
}

func TestNormalizeSchema(t *testing.T) {
	a := allAdapters()
	assert.Equal(t, "public", a["postgres"].NormalizeSchema("public"))
	assert.Equal(t, "HR", a["oracle"].NormalizeSchema("hr"), "Oracle folds identifiers to upper case")
	assert.Equal(t, "dbo", a["sqlserver"].NormalizeSchema("dbo"))
}

func TestDefaultSchemas(t *testing.T) {
	a := allAdapters()
	assert.Equal(t, "public", a["postgres"].DefaultSchema())
	assert.Equal(t, "dbo", a["sqlserver"].DefaultSchema())
	assert.Equal(t, "", a["mysql"].DefaultSchema(), "MySQL schema comes from the DSN")
}

func TestOrderByNullableFirst(t *testing.T) {
	a := allAdapters()
	assert.Equal(t, `"deleted_at" NULLS FIRST`, a["postgres"].OrderByNullableFirst("deleted_at"))
	assert.Equal(t, `"DELETED_AT" NULLS FIRST`, a["oracle"].OrderByNullableFirst("DELETED_AT"))
	// Engines without NULLS FIRST emulate it with a CASE key.
	assert.Equal(t, "CASE WHEN [deleted_at] IS NULL THEN 0 ELSE 1 END, [deleted_at]", a["sqlserver"].OrderByNullableFirst("deleted_at"))
	assert.Equal(t, "CASE WHEN `deleted_at` IS NULL THEN 0 ELSE 1 END, `deleted_at`", a["mysql"].OrderByNullableFirst("deleted_at"))
}

func TestHeuristicPartitionColumns(t *testing.T) {
	cols := []ColumnMeta{
		{Name: "id", Type: "integer"},
		{Name: "order_date", Type: "date"},
		{Name: "created_at", Type: "timestamptz"},
		{Name: "status", Type: "varchar(20)"},
		{Name: "event_time", Type: "varchar(30)"}, // temporal name, text type
		{Name: "updated_by", Type: "timestamp"},   // temporal type, non-temporal name
	}
	got := HeuristicPartitionColumns(cols)
	assert.Equal(t, []string{"order_date", "created_at"}, got)
}

func TestParseEnumValues(t *testing.T) {
	assert.Equal(t, []string{"new", "shipped", "done"}, parseEnumValues("enum('new','shipped','done')"))
	assert.Equal(t, []string{"a"}, parseEnumValues("enum('a')"))
	assert.Nil(t, parseEnumValues("varchar(20)"))
}

func TestColumnFromCheckClause(t *testing.T) {
	assert.Equal(t, "status", columnFromCheckClause("(`status` in ('a','b'))"))
	assert.Equal(t, "qty", columnFromCheckClause("`qty` >= 0"))
	assert.Equal(t, "", columnFromCheckClause("price >= 0"))
	assert.Equal(t, "", columnFromCheckClause("broken `"))
}

func TestLateArrivingBizExpr(t *testing.T) {
	a := allAdapters()
	// Plain dates are widened to timestamps on Postgres before subtraction.
	assert.Equal(t, `"order_date"::timestamp`, a["postgres"].LateArrivingBizExpr("order_date", "date"))
	assert.Equal(t, `"created_at"`, a["postgres"].LateArrivingBizExpr("created_at", "timestamp with time zone"))
	assert.Equal(t, "[order_date]", a["sqlserver"].LateArrivingBizExpr("order_date", "date"))
	assert.Equal(t, "`order_date`", a["mysql"].LateArrivingBizExpr("order_date", "date"))
}
