package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"db-scope/internal/dialect"
)

func TestBuildStatsQuery(t *testing.T) {
	pg := dialect.Get("postgres", zap.NewNop())
	cols := []*ColumnEntry{
		{Name: "id", Type: "integer"},
		{Name: "payload", Type: "jsonb"},
		{Name: "active", Type: "boolean"},
	}
	q := buildStatsQuery(pg, "public", "events", statsPlan(cols))

	assert.Contains(t, q, `COUNT(DISTINCT "id")`)
	assert.Contains(t, q, `MIN("id")`)
	assert.Contains(t, q, `MAX("id")`)
	// json has no usable equality and no total order
	assert.NotContains(t, q, `COUNT(DISTINCT "payload")`)
	assert.NotContains(t, q, `MIN("payload")`)
	assert.Contains(t, q, `SUM(CASE WHEN "payload" IS NULL THEN 1 ELSE 0 END)`)
	// booleans count distinct but never range
	assert.Contains(t, q, `COUNT(DISTINCT "active")`)
	assert.NotContains(t, q, `MIN("active")`)
	assert.Contains(t, q, `FROM "public"."events"`)
}

func TestStatsPlanSlotCount(t *testing.T) {
	cols := []*ColumnEntry{
		{Name: "id", Type: "bigint"},      // distinct + nulls + min/max
		{Name: "payload", Type: "json"},   // nulls only
		{Name: "flag", Type: "boolean"},   // distinct + nulls
		{Name: "name", Type: "varchar(50)"}, // distinct + nulls + min/max
	}
	plan := statsPlan(cols)
	n := 0
	for _, slot := range plan {
		if slot.distinct {
			n++
		}
		n++
		if slot.ranged {
			n += 2
		}
	}
	assert.Equal(t, 4+1+2+4, n)
}

func TestRangeComparable(t *testing.T) {
	comparable := []string{"integer", "bigint", "numeric(10,2)", "varchar(50)", "text", "date", "timestamp", "timestamptz", "double precision", "NUMBER(10,2)"}
	for _, typ := range comparable {
		assert.True(t, RangeComparable(typ), typ)
	}
	skipped := []string{"jsonb", "json", "bytea", "boolean", "bit", "uuid", "uniqueidentifier", "inet", "array", "interval", "geometry", "varbinary(max)", "rowversion"}
	for _, typ := range skipped {
		assert.False(t, RangeComparable(typ), typ)
	}
}

func TestIsTemporal(t *testing.T) {
	assert.True(t, IsTemporal("timestamp with time zone"))
	assert.True(t, IsTemporal("date"))
	assert.True(t, IsTemporal("datetime2"))
	assert.True(t, IsTemporal("TIME"))
	assert.False(t, IsTemporal("varchar(20)"))
	assert.False(t, IsTemporal("rowversion"))
}

func TestTZAware(t *testing.T) {
	assert.True(t, TZAware("postgres", "timestamptz"))
	assert.True(t, TZAware("postgres", "timestamp with time zone"))
	assert.False(t, TZAware("postgres", "timestamp"))
	assert.True(t, TZAware("sqlserver", "datetimeoffset"))
	assert.False(t, TZAware("sqlserver", "datetime2"))
	assert.True(t, TZAware("oracle", "TIMESTAMP(6) WITH TIME ZONE"))
	assert.True(t, TZAware("mysql", "timestamp"))
	assert.False(t, TZAware("mysql", "datetime"))
	assert.False(t, TZAware("sqlite", "timestamp"), "unknown driver is never aware")
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", stringify(nil))
	assert.Equal(t, "abc", stringify([]byte("abc")))
	assert.Equal(t, "42", stringify(int64(42)))
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-01T12:00:00Z", stringify(ts))
}

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(7), asInt64(int64(7)))
	assert.Equal(t, int64(7), asInt64([]byte("7")))
	assert.Equal(t, int64(7), asInt64("7"))
	assert.Equal(t, int64(7), asInt64(7.0))
	assert.Equal(t, int64(0), asInt64(nil))
}

func TestTableEntryHelpers(t *testing.T) {
	entry := &TableEntry{
		Table:       "orders",
		PrimaryKeys: []string{"id"},
		ForeignKeys: []ForeignKey{{Column: "customer_id", References: "customers.id"}},
		Columns: []*ColumnEntry{
			{Name: "id"}, {Name: "customer_id"},
		},
	}
	assert.True(t, entry.PKSet()["id"])
	assert.True(t, entry.FKSet()["customer_id"])
	assert.NotNil(t, entry.Column("customer_id"))
	assert.Nil(t, entry.Column("missing"))
}

func TestTotalRowsAndSort(t *testing.T) {
	tables := []*TableEntry{
		{Table: "zebras", RowCount: 10},
		{Table: "apples", RowCount: -1}, // count failed, ignored
		{Table: "mangos", RowCount: 5},
	}
	assert.Equal(t, int64(15), TotalRows(tables))
	SortTables(tables)
	assert.Equal(t, "apples", tables[0].Table)
	assert.Equal(t, "zebras", tables[2].Table)
}
