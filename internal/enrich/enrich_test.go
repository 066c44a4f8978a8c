package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-scope/internal/schema"
)

func col(name, typ string) *schema.ColumnEntry {
	return &schema.ColumnEntry{Name: name, Type: typ}
}

func TestSensitiveFields(t *testing.T) {
	cols := []*schema.ColumnEntry{
		col("email", "varchar(255)"),
		col("customer_ssn", "varchar(11)"),
		col("salary", "numeric(12,2)"),
		col("password_hash", "varchar(60)"),
		col("client_ip", "inet"),
		col("order_total", "numeric(12,2)"),
	}
	got := SensitiveFields(cols)
	assert.Equal(t, "pii_contact", got["email"])
	assert.Equal(t, "government_id", got["customer_ssn"])
	assert.Equal(t, "financial", got["salary"])
	assert.Equal(t, "credential", got["password_hash"])
	assert.Equal(t, "network_identity", got["client_ip"], "inet type wins regardless of name")
	assert.NotContains(t, got, "order_total")
}

func TestSensitivePatternOrder(t *testing.T) {
	// "email_address" matches both email (pii_contact) and address
	// (pii_address); the earlier pattern must win.
	got := SensitiveFields([]*schema.ColumnEntry{col("email_address", "text")})
	assert.Equal(t, "pii_contact", got["email_address"])
}

func TestIncrementalColumns(t *testing.T) {
	cols := []*schema.ColumnEntry{
		{Name: "id", Type: "integer", Default: "nextval('orders_id_seq'::regclass)"},
		{Name: "code", Type: "bigserial"},
		{Name: "updated_at", Type: "timestamptz"},
		{Name: "created_at", Type: "timestamptz"},
		{Name: "note", Type: "text"},
		{Name: "seq", Type: "int", Extra: "auto_increment"},
	}
	got := IncrementalColumns(cols)
	assert.Equal(t, []string{"id", "code", "updated_at", "created_at", "seq"}, got)
}

func TestClassifyField(t *testing.T) {
	cases := map[string]string{
		"unit_price":    "pricing",
		"total_amount":  "pricing",
		"qty_on_hand":   "quantity",
		"order_status":  "categorical",
		"product_type":  "categorical",
		"created_at":    "temporal",
		"last_modified": "temporal",
		"contact_email": "contact",
		"shipped_via":   "",
	}
	for name, want := range cases {
		assert.Equal(t, want, ClassifyField(name), name)
	}
}

func TestJoinCandidates(t *testing.T) {
	orders := &schema.TableEntry{
		Table:       "orders",
		PrimaryKeys: []string{"id"},
		ForeignKeys: []schema.ForeignKey{{Column: "customer_id", References: "customers.id"}},
		Columns: []*schema.ColumnEntry{
			col("id", "integer"),
			col("customer_id", "integer"),  // declared FK, carried through as-is
			col("product_id", "integer"),   // resolves via plural
			col("category_id", "integer"),  // resolves via inflection (categories)
			col("tracking_ref", "varchar"), // no matching table, low confidence
			col("postal_code", "varchar"),  // excluded code column
			col("status", "varchar"),       // no key suffix
		},
	}
	allPKs := map[string][]string{
		"orders":     {"id"},
		"products":   {"id"},
		"categories": {"id"},
	}
	got := JoinCandidates(orders, allPKs)
	require.Len(t, got, 4)
	assert.Equal(t, "customer_id", got[0].Column, "declared FKs come first")
	assert.Equal(t, "customers", got[0].TargetTable)
	assert.Equal(t, "id", got[0].TargetColumn)
	assert.Equal(t, "high", got[0].Confidence)

	byColumn := map[string]schema.JoinCandidate{}
	for _, c := range got {
		byColumn[c.Column] = c
	}
	assert.Equal(t, "products", byColumn["product_id"].TargetTable)
	assert.Equal(t, "id", byColumn["product_id"].TargetColumn)
	assert.Equal(t, "high", byColumn["product_id"].Confidence)
	assert.Equal(t, "categories", byColumn["category_id"].TargetTable)
	assert.Equal(t, "low", byColumn["tracking_ref"].Confidence)
	assert.Empty(t, byColumn["tracking_ref"].TargetTable)
}

func TestDataCategory(t *testing.T) {
	cases := []struct {
		typ, name, want string
	}{
		{"numeric(10,2)", "price", "continuous"},
		{"double precision", "weight", "continuous"},
		{"timestamp", "created_at", "continuous"},
		{"boolean", "is_active", "discrete"},
		{"integer", "qty", "discrete"},
		{"integer", "priority", "ordinal"},
		{"integer", "stock_level", "discrete"},
		{"integer", "risk_level", "ordinal"},
		{"varchar(20)", "status", "nominal"},
		{"varchar(20)", "severity", "ordinal"},
		{"uuid", "external_id", "nominal"},
		{"jsonb", "payload", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DataCategory(c.typ, c.name), c.typ+"/"+c.name)
	}
}

func TestApply(t *testing.T) {
	orders := &schema.TableEntry{
		Table:       "orders",
		PrimaryKeys: []string{"id"},
		Columns: []*schema.ColumnEntry{
			{Name: "id", Type: "integer", Extra: "identity"},
			col("customer_email", "varchar(255)"),
			col("product_id", "integer"),
			col("total_amount", "numeric(12,2)"),
			col("updated_at", "timestamptz"),
		},
	}
	products := &schema.TableEntry{
		Table:       "products",
		PrimaryKeys: []string{"id"},
		Columns:     []*schema.ColumnEntry{col("id", "integer"), col("weight_kg", "numeric(8,2)")},
	}
	Apply([]*schema.TableEntry{orders, products})

	assert.True(t, orders.HasSensitiveFields)
	assert.Equal(t, "pii_contact", orders.SensitiveFields["customer_email"])
	assert.Equal(t, []string{"id", "updated_at"}, orders.IncrementalColumns)
	assert.True(t, orders.Columns[0].IsIncremental)
	assert.False(t, orders.Columns[1].IsIncremental)
	require.Len(t, orders.JoinCandidates, 1)
	assert.Equal(t, "products", orders.JoinCandidates[0].TargetTable)
	assert.Equal(t, "pricing", orders.FieldClassifications["total_amount"])
	assert.Equal(t, []string{"kg"}, products.UnitSummary["mass"])
}
