package quality

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"db-scope/internal/dialect"
	"db-scope/internal/schema"
)

func TestLookbackDays(t *testing.T) {
	assert.Equal(t, 1, lookbackDays(0))
	assert.Equal(t, 2, lookbackDays(0.5))
	assert.Equal(t, 2, lookbackDays(24))
	assert.Equal(t, 3, lookbackDays(25))
	assert.Equal(t, 8, lookbackDays(168))
	assert.Equal(t, 31, lookbackDays(720))
}

func TestFreeformColumns(t *testing.T) {
	assert.True(t, isFreeformColumn("description"))
	assert.True(t, isFreeformColumn("first_name"))
	assert.True(t, isFreeformColumn("shipping_address"))
	assert.True(t, isFreeformColumn("company_name"))
	assert.False(t, isFreeformColumn("order_status"))
	assert.False(t, isFreeformColumn("priority"))
}

func TestJoinSuffixOf(t *testing.T) {
	assert.Equal(t, "_id", joinSuffixOf("customer_id"))
	assert.Equal(t, "_ref", joinSuffixOf("shipment_ref"))
	assert.Equal(t, "", joinSuffixOf("postal_code"), "excluded code columns never match")
	assert.Equal(t, "", joinSuffixOf("status"))
	assert.Equal(t, "", joinSuffixOf("_id"), "a bare suffix is not a relationship")
}

func TestControlledValueEligible(t *testing.T) {
	none := map[string]bool{}
	status := func(card int64) *schema.ColumnEntry {
		return &schema.ColumnEntry{Name: "order_status", Type: "varchar(20)", Cardinality: card}
	}

	assert.True(t, controlledValueEligible(status(1), none, none, none))
	assert.True(t, controlledValueEligible(status(20), none, none, none))
	assert.False(t, controlledValueEligible(status(0), none, none, none), "empty columns carry no value set")
	assert.False(t, controlledValueEligible(status(21), none, none, none))

	assert.False(t, controlledValueEligible(status(3), map[string]bool{"order_status": true}, none, none))
	assert.False(t, controlledValueEligible(status(3), none, map[string]bool{"order_status": true}, none))
	assert.False(t, controlledValueEligible(status(3), none, none, map[string]bool{"order_status": true}))

	desc := &schema.ColumnEntry{Name: "description", Type: "text", Cardinality: 3}
	assert.False(t, controlledValueEligible(desc, none, none, none), "free-form columns are exempt")
	num := &schema.ColumnEntry{Name: "order_status", Type: "integer", Cardinality: 3}
	assert.False(t, controlledValueEligible(num, none, none, none))
}

func TestOrphanSeverity(t *testing.T) {
	assert.Equal(t, schema.SeverityWarning, orphanSeverity(0))
	assert.Equal(t, schema.SeverityCritical, orphanSeverity(1))
	assert.Equal(t, schema.SeverityCritical, orphanSeverity(10))
}

func TestDominantButInconsistent(t *testing.T) {
	assert.False(t, dominantButInconsistent(0.2))
	assert.False(t, dominantButInconsistent(0.5), "exactly half is not a dominant format")
	assert.True(t, dominantButInconsistent(0.501))
	assert.True(t, dominantButInconsistent(0.999))
	assert.False(t, dominantButInconsistent(1.0), "a fully consistent column is fine")
}

func TestFormatRegexes(t *testing.T) {
	gofakeit.Seed(11)
	byName := map[string]int{}
	for i, p := range formatPatterns {
		byName[p.name] = i
	}
	for i := 0; i < 50; i++ {
		assert.True(t, formatPatterns[byName["email"]].re.MatchString(gofakeit.Email()))
		assert.True(t, formatPatterns[byName["url"]].re.MatchString(gofakeit.URL()))
	}
	assert.True(t, formatPatterns[byName["date_as_text"]].re.MatchString("2024-03-01"))
	assert.True(t, formatPatterns[byName["numeric_as_text"]].re.MatchString("-12.5"))
	assert.False(t, formatPatterns[byName["email"]].re.MatchString("not an email"))
	assert.False(t, formatPatterns[byName["numeric_as_text"]].re.MatchString("12a"))
}

func TestCheckNullableNeverNull(t *testing.T) {
	tables := []*schema.TableEntry{
		{
			Table: "orders", RowCount: 100, HasPrimaryKey: true,
			Columns: []*schema.ColumnEntry{
				{Name: "note", Nullable: true, NullCount: 0},
				{Name: "coupon", Nullable: true, NullCount: 40},
				{Name: "id", Nullable: false, NullCount: 0},
			},
		},
		{
			Table: "empty", RowCount: 0,
			Columns: []*schema.ColumnEntry{{Name: "x", Nullable: true, NullCount: 0}},
		},
	}
	got := CheckNullableNeverNull(tables)
	require.Len(t, got, 1)
	assert.Equal(t, "orders", got[0].Table)
	assert.Equal(t, "note", got[0].Column)
	assert.Equal(t, schema.SeverityInfo, got[0].Severity)
}

func TestCheckMissingPrimaryKeys(t *testing.T) {
	tables := []*schema.TableEntry{
		{Table: "with_pk", HasPrimaryKey: true},
		{Table: "without_pk", HasPrimaryKey: false},
	}
	got := CheckMissingPrimaryKeys(tables)
	require.Len(t, got, 1)
	assert.Equal(t, "without_pk", got[0].Table)
	assert.Equal(t, schema.SeverityCritical, got[0].Severity)
}

func TestSoftDeleteColumn(t *testing.T) {
	name, kind := softDeleteColumn([]*schema.ColumnEntry{
		{Name: "id", Type: "integer"},
		{Name: "deleted_at", Type: "timestamptz"},
	})
	assert.Equal(t, "deleted_at", name)
	assert.Equal(t, "timestamp", kind)

	name, kind = softDeleteColumn([]*schema.ColumnEntry{{Name: "is_deleted", Type: "boolean"}})
	assert.Equal(t, "is_deleted", name)
	assert.Equal(t, "boolean", kind)

	name, kind = softDeleteColumn([]*schema.ColumnEntry{{Name: "active", Type: "boolean"}})
	assert.Equal(t, "active", name)
	assert.Equal(t, "active_flag", kind)

	// "active" only counts with a boolean type
	name, kind = softDeleteColumn([]*schema.ColumnEntry{{Name: "active", Type: "varchar(10)"}})
	assert.Empty(t, name)
	assert.Empty(t, kind)
}

func TestDeleteManagementFinding(t *testing.T) {
	tbl := &schema.TableEntry{Table: "orders"}

	f := deleteManagementFinding(tbl, "deleted_at", "timestamp", "", "")
	assert.Equal(t, "soft_delete", f.DeleteStrategy)
	assert.Equal(t, schema.SeverityInfo, f.Severity)
	assert.Contains(t, f.Recommendation, "IS NULL")

	cdcTbl := &schema.TableEntry{Table: "orders", CDCEnabled: true}
	f = deleteManagementFinding(cdcTbl, "", "", "", "")
	assert.Equal(t, "hard_delete_with_cdc", f.DeleteStrategy)
	assert.Equal(t, schema.SeverityInfo, f.Severity)

	f = deleteManagementFinding(tbl, "", "", "", "")
	assert.Equal(t, "hard_delete", f.DeleteStrategy)
	assert.Equal(t, schema.SeverityWarning, f.Severity)

	f = deleteManagementFinding(tbl, "", "", "orders_history", "")
	assert.True(t, f.HasAuditTrail)
	assert.Contains(t, f.Detail, "orders_history")
}

func TestAuditTrailTable(t *testing.T) {
	all := map[string]bool{"orders": true, "orders_audit": true, "customers": true}
	assert.Equal(t, "orders_audit", auditTrailTable("orders", all))
	assert.Equal(t, "", auditTrailTable("customers", all))
}

func TestLateArrivalSeverityTiers(t *testing.T) {
	mk := func(maxLag float64) *schema.Finding {
		return lateArrivalFinding("orders", "order_date", "created_at", &schema.LagStats{
			TotalRowsCompared: 1000, MaxLagHours: maxLag, MaxLagDays: maxLag / 24,
		})
	}
	assert.Equal(t, schema.SeverityInfo, mk(0.5).Severity)
	assert.Equal(t, schema.SeverityInfo, mk(20).Severity)
	assert.Equal(t, schema.SeverityWarning, mk(100).Severity)
	assert.Equal(t, schema.SeverityWarning, mk(500).Severity)

	f := mk(100)
	assert.Equal(t, 6, f.RecommendedLookbackDays)
	assert.Contains(t, f.Recommendation, "created_at")
}

func TestCheckTimezonesMixed(t *testing.T) {
	tables := []*schema.TableEntry{
		{
			Table: "orders",
			Columns: []*schema.ColumnEntry{
				{Name: "created_at", Type: "timestamptz", ColumnTimezone: "UTC"},
				{Name: "shipped_at", Type: "timestamp", ColumnTimezone: "America/New_York"},
			},
		},
	}
	got := CheckTimezones("postgres", "America/New_York", tables)
	// One table-level warning plus the schema-wide one: two effective
	// timezones exist even with a single table.
	require.Len(t, got, 2)
	assert.Equal(t, "orders", got[0].Table)
	assert.Equal(t, schema.SeverityWarning, got[0].Severity)
	assert.Equal(t, 1, got[0].TZAwareCount)
	assert.Equal(t, 1, got[0].TZNaiveCount)
	assert.Equal(t, []string{"America/New_York", "UTC"}, got[0].DistinctTimezones)
	assert.Equal(t, schema.DatabaseWide, got[1].Table)
	assert.Equal(t, schema.SeverityWarning, got[1].Severity)
}

func TestCheckTimezonesDatabaseWide(t *testing.T) {
	tables := []*schema.TableEntry{
		{Table: "a", Columns: []*schema.ColumnEntry{{Name: "t", Type: "timestamptz", ColumnTimezone: "UTC"}}},
		{Table: "b", Columns: []*schema.ColumnEntry{{Name: "t", Type: "timestamp", ColumnTimezone: "Europe/Berlin"}}},
	}
	got := CheckTimezones("postgres", "Europe/Berlin", tables)
	require.Len(t, got, 3)
	last := got[len(got)-1]
	assert.Equal(t, schema.DatabaseWide, last.Table)
	assert.Equal(t, schema.SeverityWarning, last.Severity)
	assert.Equal(t, []string{"Europe/Berlin", "UTC"}, last.DistinctTimezones)
}

func TestCheckTimezonesAllAware(t *testing.T) {
	tables := []*schema.TableEntry{
		{Table: "a", Columns: []*schema.ColumnEntry{
			{Name: "created_at", Type: "timestamptz", ColumnTimezone: "UTC"},
			{Name: "updated_at", Type: "timestamptz", ColumnTimezone: "UTC"},
		}},
	}
	got := CheckTimezones("postgres", "UTC", tables)
	require.Len(t, got, 1)
	assert.Equal(t, schema.SeverityInfo, got[0].Severity)
	assert.Equal(t, 2, got[0].TZAwareCount)
}

func TestCheckUnitConsistency(t *testing.T) {
	tables := []*schema.TableEntry{
		{Table: "products", UnitSummary: map[string][]string{"mass": {"kg", "lbs"}}},
		{Table: "shipments", UnitSummary: map[string][]string{"mass": {"kg"}, "length": {"cm"}}},
	}
	got := CheckUnitConsistency(tables)
	require.Len(t, got, 2)
	assert.Equal(t, "products", got[0].Table)
	assert.Equal(t, schema.SeverityWarning, got[0].Severity)
	assert.Equal(t, []string{"kg", "lbs"}, got[0].UnitsObserved)
	assert.Equal(t, schema.DatabaseWide, got[1].Table)
	assert.Equal(t, "mass", got[1].SemanticClass)
}

func TestCheckUnitConsistencyColumnFindings(t *testing.T) {
	tables := []*schema.TableEntry{
		{
			Table: "products",
			Columns: []*schema.ColumnEntry{
				{
					Name: "weight_lbs", SemanticClass: "mass",
					UnitContext: &schema.UnitContext{
						DetectedUnit: "lbs", CanonicalUnit: "kg",
						Conversion: &schema.Conversion{Factor: 0.45359237},
						Confidence: "high",
					},
				},
				{
					Name: "total_amount", SemanticClass: "currency",
					UnitContext: &schema.UnitContext{DetectedUnit: "unknown", Confidence: "low"},
				},
				{
					Name: "height_m", SemanticClass: "length",
					UnitContext: &schema.UnitContext{
						DetectedUnit: "m", CanonicalUnit: "m",
						Conversion: &schema.Conversion{Factor: 1},
						Confidence: "high",
					},
				},
			},
		},
	}
	got := CheckUnitConsistency(tables)
	require.Len(t, got, 2)
	assert.Equal(t, "weight_lbs", got[0].Column)
	assert.Equal(t, schema.SeverityInfo, got[0].Severity)
	assert.Contains(t, got[0].Detail, "canonical 'kg'")
	assert.Equal(t, "total_amount", got[1].Column)
	assert.Contains(t, got[1].Detail, "could not be determined")
}

func TestApplyLimit(t *testing.T) {
	log := zap.NewNop()
	pg := dialect.Get("postgres", log)
	ms := dialect.Get("sqlserver", log)
	ora := dialect.Get("oracle", log)

	assert.Equal(t, "SELECT x FROM t LIMIT 10", applyLimit(pg, "SELECT x FROM t", 10))
	assert.Equal(t, "SELECT TOP 10 x FROM t", applyLimit(ms, "SELECT x FROM t", 10))
	assert.Equal(t, "SELECT DISTINCT TOP 10 x FROM t", applyLimit(ms, "SELECT DISTINCT x FROM t", 10))
	assert.Equal(t, "SELECT x FROM t ORDER BY x FETCH FIRST 10 ROWS ONLY", applyLimit(ora, "SELECT x FROM t ORDER BY x", 10))
}
