// Package enrich derives metadata from crawled schema information: sensitive
// field detection, incremental load candidates, join candidates, field
// classifications and statistical data categories.
package enrich

import (
	"strings"

	"github.com/jinzhu/inflection"

	"db-scope/internal/schema"
)

// sensitivePatterns is an ordered name-fragment list; the first match wins so
// the more specific categories sit on top.
var sensitivePatterns = []struct {
	pattern  string
	category string
}{
	{"ssn", "government_id"}, {"social_security", "government_id"}, {"tax_id", "government_id"},
	{"passport", "government_id"}, {"national_id", "government_id"}, {"driver_license", "government_id"},
	{"credit_card", "financial"}, {"card_number", "financial"}, {"bank_account", "financial"},
	{"routing_number", "financial"}, {"iban", "financial"}, {"salary", "financial"},
	{"email", "pii_contact"}, {"phone", "pii_contact"}, {"mobile", "pii_contact"},
	{"date_of_birth", "pii_personal"}, {"dob", "pii_personal"}, {"gender", "pii_personal"},
	{"address", "pii_address"}, {"street", "pii_address"}, {"postal_code", "pii_address"},
	{"ip_address", "network_identity"}, {"password", "credential"}, {"secret", "credential"},
	{"token", "credential"}, {"api_key", "credential"},
}

// sensitiveTypes overrides name matching: these column types are identifying
// regardless of what the column is called.
var sensitiveTypes = map[string]string{
	"inet":    "network_identity",
	"cidr":    "network_identity",
	"macaddr": "network_identity",
}

// SensitiveFields maps column name to sensitivity category for every column
// that looks sensitive by type or by name.
func SensitiveFields(cols []*schema.ColumnEntry) map[string]string {
	out := map[string]string{}
	for _, col := range cols {
		nameLower := strings.ToLower(col.Name)
		typeLower := strings.ToLower(col.Type)
		matched := false
		for typ, cat := range sensitiveTypes {
			if strings.Contains(typeLower, typ) {
				out[col.Name] = cat
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		for _, p := range sensitivePatterns {
			if strings.Contains(nameLower, p.pattern) {
				out[col.Name] = p.category
				break
			}
		}
	}
	return out
}

// IsAutoIncrement reports whether a column is populated by the database on
// insert: identity and serial types, or sequence-backed defaults.
func IsAutoIncrement(col *schema.ColumnEntry) bool {
	typeLower := strings.ToLower(col.Type)
	defLower := strings.ToLower(col.Default)
	extraLower := strings.ToLower(col.Extra)
	if strings.Contains(typeLower, "serial") {
		return true
	}
	if strings.Contains(defLower, "nextval") || strings.Contains(defLower, "auto_increment") {
		return true
	}
	if strings.Contains(typeLower, "identity") || strings.Contains(extraLower, "identity") {
		return true
	}
	return strings.Contains(extraLower, "auto_increment")
}

var watermarkNames = []string{"updated_at", "modified_at", "changed_at", "last_modified"}

// IncrementalColumns lists columns suitable for watermark-based incremental
// loads: auto-increment keys plus update timestamps, and created_at as the
// insert-only fallback.
func IncrementalColumns(cols []*schema.ColumnEntry) []string {
	out := []string{}
	for _, col := range cols {
		nameLower := strings.ToLower(col.Name)
		switch {
		case IsAutoIncrement(col):
			out = append(out, col.Name)
		case containsAny(nameLower, watermarkNames):
			out = append(out, col.Name)
		case nameLower == "created_at":
			out = append(out, col.Name)
		}
	}
	return out
}

// ClassifyField assigns a business role to a column by name, or "" when none
// applies.
func ClassifyField(colName string) string {
	lower := strings.ToLower(colName)
	switch {
	case containsAny(lower, []string{"price", "cost", "amount", "total", "subtotal"}):
		return "pricing"
	case containsAny(lower, []string{"quantity", "qty"}):
		return "quantity"
	case containsAny(lower, []string{"category", "type", "status"}):
		return "categorical"
	case strings.Contains(lower, "created") || containsAny(lower, []string{"updated", "modified"}):
		return "temporal"
	case containsAny(lower, []string{"email", "phone"}):
		return "contact"
	}
	return ""
}

// FieldClassifications returns the per-column role map, omitting unclassified
// columns.
func FieldClassifications(cols []*schema.ColumnEntry) map[string]string {
	out := map[string]string{}
	for _, col := range cols {
		if role := ClassifyField(col.Name); role != "" {
			out[col.Name] = role
		}
	}
	return out
}

var joinSuffixes = []string{"_id", "_key", "_code", "_ref", "_fk"}

// joinExclude holds column names whose key-like suffix does not indicate a
// relationship (codes, hashes, lookups).
var joinExclude = map[string]bool{
	"postal_code": true, "zip_code": true, "area_code": true, "country_code": true,
	"currency_code": true, "language_code": true, "phone_code": true, "dialing_code": true,
	"iban_code": true, "swift_code": true, "barcode": true, "qr_code": true,
	"hash_code": true, "auth_code": true, "verification_code": true, "access_code": true,
	"promo_code": true, "discount_code": true, "coupon_code": true, "voucher_code": true,
	"error_code": true, "status_code": true, "exit_code": true, "response_code": true,
}

// JoinCandidates lists the join paths of a table: declared foreign keys come
// first at high confidence, then key-like columns resolved against the other
// tables' names. An unresolved key-like column is still reported with low
// confidence.
func JoinCandidates(t *schema.TableEntry, allPKs map[string][]string) []schema.JoinCandidate {
	pks := t.PKSet()
	fks := t.FKSet()
	out := []schema.JoinCandidate{}
	for _, fk := range t.ForeignKeys {
		target, targetCol, _ := strings.Cut(fk.References, ".")
		out = append(out, schema.JoinCandidate{
			Column: fk.Column, TargetTable: target, TargetColumn: targetCol, Confidence: "high",
		})
	}
	for _, col := range t.Columns {
		nameLower := strings.ToLower(col.Name)
		if pks[col.Name] || fks[col.Name] || joinExclude[nameLower] {
			continue
		}
		suffix := ""
		for _, s := range joinSuffixes {
			if strings.HasSuffix(nameLower, s) {
				suffix = s
				break
			}
		}
		if suffix == "" {
			continue
		}
		prefix := strings.TrimSuffix(nameLower, suffix)
		if prefix == "" {
			continue
		}
		target, targetCol := resolveTarget(t.Table, prefix, nameLower, suffix, allPKs)
		if target != "" {
			out = append(out, schema.JoinCandidate{
				Column: col.Name, TargetTable: target, TargetColumn: targetCol, Confidence: "high",
			})
		} else {
			out = append(out, schema.JoinCandidate{Column: col.Name, Confidence: "low"})
		}
	}
	return out
}

func resolveTarget(selfTable, prefix, colLower, suffix string, allPKs map[string][]string) (string, string) {
	for other, pks := range allPKs {
		if other == selfTable {
			continue
		}
		if !tableMatchesPrefix(strings.ToLower(other), prefix) {
			continue
		}
		suffixBase := strings.TrimPrefix(suffix, "_")
		targetCol := ""
		for _, pk := range pks {
			pkLower := strings.ToLower(pk)
			if pkLower == suffixBase || pkLower == colLower {
				targetCol = pk
				break
			}
		}
		if targetCol == "" && len(pks) > 0 {
			targetCol = pks[0]
		}
		return other, targetCol
	}
	return "", ""
}

// tableMatchesPrefix matches a column prefix against a table name directly
// and through singular/plural inflection, so "customer_id" resolves to
// "customers" and "category_id" to "categories".
func tableMatchesPrefix(tableLower, prefix string) bool {
	if tableLower == prefix {
		return true
	}
	if inflection.Plural(prefix) == tableLower || inflection.Singular(tableLower) == prefix {
		return true
	}
	// Crude stemming catches irregular naming the inflector misses.
	return strings.TrimRight(tableLower, "s") == prefix ||
		strings.TrimSuffix(tableLower, "es") == prefix
}

var ordinalNamePatterns = []string{
	"priority", "grade", "rank", "rating", "severity", "score", "stage",
	"phase", "tier", "step", "order_num", "sequence", "position",
}

// ordinalLevelExclude prefixes mark "*_level" columns that are counts rather
// than ranks.
var ordinalLevelExclude = []string{"reorder", "stock", "inventory", "fill", "min", "max"}

func isOrdinalByName(nameLower string) bool {
	if containsAny(nameLower, ordinalNamePatterns) {
		return true
	}
	if strings.Contains(nameLower, "level") {
		for _, prefix := range ordinalLevelExclude {
			if strings.HasPrefix(nameLower, prefix) {
				return false
			}
		}
		return true
	}
	return false
}

// DataCategory classifies a column into a statistical category: continuous,
// discrete, ordinal or nominal. Returns "" for types with no meaningful
// category.
func DataCategory(colType, colName string) string {
	typeLower := strings.ToLower(strings.TrimSpace(colType))
	nameLower := strings.ToLower(colName)
	switch {
	case containsAny(typeLower, []string{"json", "bytea", "xml", "tsvector", "blob", "image"}):
		return ""
	case containsAny(typeLower, []string{"float", "double", "real", "money", "numeric", "decimal"}):
		return "continuous"
	case containsAny(typeLower, []string{"timestamp", "datetime", "date", "time", "interval"}):
		return "continuous"
	case strings.Contains(typeLower, "bool"):
		return "discrete"
	case containsAny(typeLower, []string{"int", "serial"}):
		if isOrdinalByName(nameLower) {
			return "ordinal"
		}
		return "discrete"
	case containsAny(typeLower, []string{"varchar", "char", "text", "citext", "name"}):
		if isOrdinalByName(nameLower) {
			return "ordinal"
		}
		return "nominal"
	case containsAny(typeLower, []string{"uuid", "inet", "macaddr"}):
		return "nominal"
	case strings.Contains(typeLower, "enum"):
		if isOrdinalByName(nameLower) {
			return "ordinal"
		}
		return "nominal"
	}
	return ""
}

// Apply runs every enrichment over the crawled tables in place.
func Apply(tables []*schema.TableEntry) {
	allPKs := make(map[string][]string, len(tables))
	for _, t := range tables {
		allPKs[t.Table] = t.PrimaryKeys
	}
	for _, t := range tables {
		t.SensitiveFields = SensitiveFields(t.Columns)
		t.HasSensitiveFields = len(t.SensitiveFields) > 0
		t.IncrementalColumns = IncrementalColumns(t.Columns)
		t.FieldClassifications = FieldClassifications(t.Columns)
		t.JoinCandidates = JoinCandidates(t, allPKs)
		incSet := map[string]bool{}
		for _, name := range t.IncrementalColumns {
			incSet[name] = true
		}
		for _, col := range t.Columns {
			col.IsIncremental = incSet[col.Name]
			col.DataCategory = DataCategory(col.Type, col.Name)
			InferUnits(col)
			if vals := t.SampleData[col.Name]; len(vals) > 0 {
				InferUnitsFromSamples(col, vals)
			}
		}
		t.UnitSummary = UnitSummary(t.Columns)
	}
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}
