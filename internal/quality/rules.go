// Package quality runs the data quality battery over crawled tables. The
// decision logic (which columns trigger, how findings are worded and rated)
// is kept separate from query execution so it can be tested without a
// database.
package quality

import (
	"math"
	"regexp"
	"strings"
)

const controlledValueMaxCardinality = 20

var textTypes = []string{"text", "varchar", "char", "citext", "name", "character varying", "character"}

var numericTypes = []string{"int", "numeric", "decimal", "float", "double", "real", "money", "serial", "number"}

// freeformExact names columns that legitimately hold open text or opaque
// identifiers; low cardinality there never suggests a lookup table.
var freeformExact = map[string]bool{
	"name": true, "description": true, "desc": true, "comment": true, "note": true,
	"notes": true, "title": true, "body": true, "content": true, "message": true,
	"summary": true, "detail": true, "first_name": true, "last_name": true,
	"full_name": true, "display_name": true, "contact_name": true, "username": true,
	"email": true, "phone": true, "mobile": true, "fax": true, "address": true,
	"street": true, "url": true, "uri": true, "path": true, "filename": true,
	"password": true, "token": true, "secret": true, "api_key": true, "sku": true,
	"barcode": true, "code": true, "uuid": true,
}

var freeformSuffixes = []string{"_name", "_description", "_desc", "_comment", "_email", "_phone", "_address", "_url", "_password"}

var pricingPatterns = []string{"price", "cost", "amount", "total", "subtotal", "fee", "charge", "rate"}

var quantityPatterns = []string{"quantity", "qty", "count", "quantity_on_hand"}

var joinSuffixes = []string{"_id", "_key", "_code", "_ref", "_fk"}

var joinExclude = map[string]bool{
	"postal_code": true, "zip_code": true, "area_code": true, "country_code": true,
	"currency_code": true, "language_code": true, "phone_code": true, "iban_code": true,
	"swift_code": true, "barcode": true, "qr_code": true, "hash_code": true,
	"auth_code": true, "verification_code": true, "access_code": true, "promo_code": true,
	"discount_code": true, "coupon_code": true, "error_code": true, "status_code": true,
	"exit_code": true, "response_code": true,
}

var formatPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"email", regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)},
	{"phone", regexp.MustCompile(`^[+]?[\d\s\-().]{7,20}$`)},
	{"date_as_text", regexp.MustCompile(`^\d{4}[-/]\d{2}[-/]\d{2}`)},
	{"url", regexp.MustCompile(`^https?://`)},
	{"numeric_as_text", regexp.MustCompile(`^-?\d+\.?\d*$`)},
}

var softDeleteTimestamp = []string{"deleted_at", "deleted_date", "removed_at", "archived_at", "archived_date", "deactivated_at", "purged_at"}

var softDeleteBoolean = []string{"is_deleted", "deleted", "is_removed", "removed", "is_archived", "archived", "is_deactivated", "deactivated"}

var activeFlag = []string{"is_active", "active", "enabled", "is_enabled"}

var auditTrailSuffixes = []string{"_history", "_audit", "_log", "_archive", "_changelog"}

var businessDatePatterns = []string{
	"order_date", "transaction_date", "payment_date", "event_date", "event_time",
	"ship_date", "delivery_date", "invoice_date", "booking_date", "sale_date",
	"purchase_date", "effective_date", "activity_date", "record_date", "entry_date",
	"posting_date", "trade_date", "settlement_date", "value_date", "hire_date",
}

var systemTimestampPatterns = []string{
	"created_at", "inserted_at", "created_date", "record_created_at",
	"insert_date", "insert_timestamp", "ingested_at",
}

func isTextType(colType string) bool {
	return containsAny(strings.ToLower(colType), textTypes)
}

func isNumericType(colType string) bool {
	return containsAny(strings.ToLower(colType), numericTypes)
}

func isFreeformColumn(colName string) bool {
	lower := strings.ToLower(colName)
	if freeformExact[lower] {
		return true
	}
	for _, s := range freeformSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// joinSuffixOf returns the key-like suffix of a column name, or "" when the
// column does not follow a relationship naming pattern.
func joinSuffixOf(colName string) string {
	lower := strings.ToLower(colName)
	if joinExclude[lower] {
		return ""
	}
	for _, s := range joinSuffixes {
		if strings.HasSuffix(lower, s) && len(lower) > len(s) {
			return s
		}
	}
	return ""
}

// lookbackDays sizes the incremental-load lookback window from the worst
// observed arrival lag, with one extra day of slack.
func lookbackDays(maxLagHours float64) int {
	days := int(math.Ceil(maxLagHours/24)) + 1
	if days < 1 {
		return 1
	}
	return days
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

func equalsAny(s string, values []string) bool {
	for _, v := range values {
		if s == v {
			return true
		}
	}
	return false
}
