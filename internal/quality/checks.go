package quality

import (
	"fmt"
	"sort"
	"strings"

	"db-scope/internal/schema"
)

// CheckNullableNeverNull flags nullable columns that hold no NULLs at all.
func CheckNullableNeverNull(tables []*schema.TableEntry) []*schema.Finding {
	var findings []*schema.Finding
	for _, t := range tables {
		if t.RowCount <= 0 {
			continue
		}
		for _, col := range t.Columns {
			if col.Nullable && col.NullCount == 0 {
				findings = append(findings, &schema.Finding{
					Check:    schema.CheckNullableNeverNull,
					Severity: schema.SeverityInfo,
					Table:    t.Table,
					Column:   col.Name,
					Detail:   fmt.Sprintf("Column is nullable but has 0 NULLs across %d row(s)", t.RowCount),
					Recommendation: "Consider adding a NOT NULL constraint if the column should always have a value",
				})
			}
		}
	}
	return findings
}

// CheckMissingPrimaryKeys flags tables without a primary key.
func CheckMissingPrimaryKeys(tables []*schema.TableEntry) []*schema.Finding {
	var findings []*schema.Finding
	for _, t := range tables {
		if t.HasPrimaryKey {
			continue
		}
		findings = append(findings, &schema.Finding{
			Check:    schema.CheckMissingPrimaryKey,
			Severity: schema.SeverityCritical,
			Table:    t.Table,
			Detail:   "Table has no primary key defined",
			Recommendation: "Add a primary key to ensure row uniqueness and enable efficient lookups",
		})
	}
	return findings
}

// CheckUnitConsistency reviews the units of measure-like columns: unknown
// units, units stored in a non-canonical form, and semantic classes measured
// in more than one unit, per table and across the whole schema.
func CheckUnitConsistency(tables []*schema.TableEntry) []*schema.Finding {
	var findings []*schema.Finding
	global := map[string]map[string]bool{}
	for _, t := range tables {
		for _, col := range t.Columns {
			uc := col.UnitContext
			switch {
			case uc == nil:
			case uc.DetectedUnit == "unknown":
				findings = append(findings, &schema.Finding{
					Check:          schema.CheckUnitConsistency,
					Severity:       schema.SeverityInfo,
					Table:          t.Table,
					Column:         col.Name,
					Detail:         fmt.Sprintf("Column measures %s but its unit could not be determined", col.SemanticClass),
					Recommendation: "Encode the unit in the column name (e.g. a _kg or _usd suffix) or document it in a data dictionary",
					SemanticClass:  col.SemanticClass,
				})
			case uc.Conversion != nil && uc.CanonicalUnit != "" && uc.DetectedUnit != uc.CanonicalUnit:
				findings = append(findings, &schema.Finding{
					Check:    schema.CheckUnitConsistency,
					Severity: schema.SeverityInfo,
					Table:    t.Table,
					Column:   col.Name,
					Detail: fmt.Sprintf("Column stores %s in '%s' rather than the canonical '%s' (convertible, factor %g)",
						col.SemanticClass, uc.DetectedUnit, uc.CanonicalUnit, uc.Conversion.Factor),
					Recommendation: fmt.Sprintf("Convert to '%s' during ingestion to keep downstream aggregation unit-safe", uc.CanonicalUnit),
					SemanticClass:  col.SemanticClass,
					UnitsObserved:  []string{uc.DetectedUnit},
				})
			}
		}
		for class, units := range t.UnitSummary {
			if global[class] == nil {
				global[class] = map[string]bool{}
			}
			for _, u := range units {
				global[class][u] = true
			}
			if len(units) < 2 {
				continue
			}
			findings = append(findings, &schema.Finding{
				Check:    schema.CheckUnitConsistency,
				Severity: schema.SeverityWarning,
				Table:    t.Table,
				Detail: fmt.Sprintf("Columns measuring %s use %d different units (%s)",
					class, len(units), strings.Join(units, ", ")),
				Recommendation: "Convert these columns to a single canonical unit, or record the unit alongside each value",
				SemanticClass:  class,
				UnitsObserved:  units,
			})
		}
	}
	for _, class := range sortedKeys(global) {
		units := global[class]
		if len(units) < 2 {
			continue
		}
		list := make([]string, 0, len(units))
		for u := range units {
			list = append(list, u)
		}
		sort.Strings(list)
		findings = append(findings, &schema.Finding{
			Check:    schema.CheckUnitConsistency,
			Severity: schema.SeverityWarning,
			Table:    schema.DatabaseWide,
			Detail: fmt.Sprintf("Tables measuring %s disagree on units across the schema (%s)",
				class, strings.Join(list, ", ")),
			Recommendation: "Pick one canonical unit per measure for the whole schema and convert on ingestion",
			SemanticClass:  class,
			UnitsObserved:  list,
		})
	}
	return findings
}

// controlledValueEligible reports whether a column should be screened for an
// uncontrolled value set: low-cardinality text with no PK, FK, CHECK, ENUM or
// UNIQUE constraint, and not a free-form field by name.
func controlledValueEligible(col *schema.ColumnEntry, pks, fks, constrained map[string]bool) bool {
	if !isTextType(col.Type) || col.Cardinality == 0 || col.Cardinality > controlledValueMaxCardinality {
		return false
	}
	return !pks[col.Name] && !fks[col.Name] && !constrained[col.Name] && !isFreeformColumn(col.Name)
}

// orphanSeverity rates a missing foreign key: advisory while the data is
// clean, critical once orphaned values exist.
func orphanSeverity(orphanCount int) string {
	if orphanCount > 0 {
		return schema.SeverityCritical
	}
	return schema.SeverityWarning
}

// dominantButInconsistent reports whether a format match ratio signals a
// dominant pattern with violations: strictly more than half of the sample,
// strictly less than all of it.
func dominantButInconsistent(ratio float64) bool {
	return ratio > 0.5 && ratio < 1.0
}

// softDeleteColumn finds the column marking logical deletion, if any, and
// reports its flavor: timestamp, boolean or active_flag.
func softDeleteColumn(cols []*schema.ColumnEntry) (string, string) {
	for _, col := range cols {
		nameLower := strings.ToLower(col.Name)
		typeLower := strings.ToLower(col.Type)
		switch {
		case equalsAny(nameLower, softDeleteTimestamp):
			return col.Name, "timestamp"
		case equalsAny(nameLower, softDeleteBoolean):
			return col.Name, "boolean"
		case equalsAny(nameLower, activeFlag) && strings.Contains(typeLower, "bool"):
			return col.Name, "active_flag"
		}
	}
	return "", ""
}

// auditTrailTable returns the companion history table of a table, if one
// exists in the schema.
func auditTrailTable(tableName string, allTables map[string]bool) string {
	lower := strings.ToLower(tableName)
	for _, sfx := range auditTrailSuffixes {
		if allTables[lower+sfx] {
			return lower + sfx
		}
	}
	return ""
}

// deleteManagementFinding words the delete-strategy assessment for one table.
// valueInfo is an optional rendering of the soft-delete column's current
// distribution.
func deleteManagementFinding(t *schema.TableEntry, softCol, softType, audit, valueInfo string) *schema.Finding {
	f := &schema.Finding{
		Check:            schema.CheckDeleteManagement,
		Table:            t.Table,
		Column:           softCol,
		SoftDeleteColumn: softCol,
		SoftDeleteType:   softType,
		HasAuditTrail:    audit != "",
		AuditTrailTable:  audit,
	}
	switch {
	case softCol != "" && softType == "active_flag":
		f.DeleteStrategy, f.Severity = "soft_delete", schema.SeverityInfo
		f.Detail = fmt.Sprintf("Active-flag column '%s' (boolean) detected, rows with %s=false are logically deleted.%s", softCol, softCol, valueInfo)
		f.Recommendation = fmt.Sprintf("Filter on %q = true for current records during ingestion.", softCol)
	case softCol != "" && softType == "timestamp":
		f.DeleteStrategy, f.Severity = "soft_delete", schema.SeverityInfo
		f.Detail = fmt.Sprintf("Soft-delete column '%s' (timestamp) detected, deleted rows are preserved with a deletion timestamp.%s", softCol, valueInfo)
		f.Recommendation = fmt.Sprintf("Use %q IS NULL for active records. This column can serve as a watermark for incremental delete detection.", softCol)
	case softCol != "":
		f.DeleteStrategy, f.Severity = "soft_delete", schema.SeverityInfo
		f.Detail = fmt.Sprintf("Soft-delete column '%s' (boolean) detected, deleted rows are flagged in the source table.%s", softCol, valueInfo)
		f.Recommendation = fmt.Sprintf("Filter on %q = false for active records, or ingest all rows for full history.", softCol)
	case t.CDCEnabled:
		f.DeleteStrategy, f.Severity = "hard_delete_with_cdc", schema.SeverityInfo
		f.Detail = "No soft-delete column found, but CDC is enabled. Hard deletes can be captured via change data capture."
		f.Recommendation = "Use CDC (e.g. Debezium, pgoutput) to capture DELETE events."
	default:
		f.DeleteStrategy, f.Severity = "hard_delete", schema.SeverityWarning
		f.Detail = "No soft-delete column detected and CDC is not enabled. Table likely uses hard deletes invisible to incremental ingestion."
		f.Recommendation = "Consider: (1) Add soft-delete column, (2) Enable CDC, or (3) Plan periodic full-load syncs."
	}
	if audit != "" {
		f.Detail += fmt.Sprintf(" Audit-trail table '%s' exists.", audit)
	}
	return f
}

// lateArrivalFinding rates the arrival lag of one table's business date
// against its system timestamp.
func lateArrivalFinding(table, bizCol, sysCol string, stats *schema.LagStats) *schema.Finding {
	lookback := lookbackDays(stats.MaxLagHours)
	f := &schema.Finding{
		Check:                   schema.CheckLateArriving,
		Table:                   table,
		Column:                  bizCol,
		BusinessDateColumn:      bizCol,
		SystemTimestampColumn:   sysCol,
		LagStats:                stats,
		RecommendedLookbackDays: lookback,
	}
	switch {
	case stats.MaxLagHours <= 1:
		f.Severity = schema.SeverityInfo
		f.Detail = fmt.Sprintf("Data arrives promptly, max lag between '%s' and '%s' is %.1fh. Standard watermarking on '%s' is safe.", bizCol, sysCol, stats.MaxLagHours, sysCol)
		f.Recommendation = fmt.Sprintf("Use '%s' as the incremental watermark. No special lookback window needed.", sysCol)
	case stats.MaxLagHours <= 24:
		f.Severity = schema.SeverityInfo
		f.Detail = fmt.Sprintf("Minor arrival delay, max lag between '%s' and '%s' is %.1fh (avg %.1fh, P95 %.1fh).", bizCol, sysCol, stats.MaxLagHours, stats.AvgLagHours, stats.P95LagHours)
		f.Recommendation = fmt.Sprintf("Use '%s' as the watermark (preferred). If using '%s', add a 1-2 day lookback buffer.", sysCol, bizCol)
	case stats.MaxLagHours <= 168:
		f.Severity = schema.SeverityWarning
		f.Detail = fmt.Sprintf("Late-arriving data detected, max lag between '%s' and '%s' is %v day(s). %d of %d row(s) arrived >24h late.", bizCol, sysCol, stats.MaxLagDays, stats.RowsLateOver1d, stats.TotalRowsCompared)
		f.Recommendation = fmt.Sprintf("Do NOT use '%s' as the incremental watermark. Use '%s' instead, or add a lookback window of at least %d day(s).", bizCol, sysCol, lookback)
	default:
		f.Severity = schema.SeverityWarning
		f.Detail = fmt.Sprintf("Significant late-arriving data, max lag %v day(s). %d of %d row(s) arrived >7 days late.", stats.MaxLagDays, stats.RowsLateOver7d, stats.TotalRowsCompared)
		f.Recommendation = fmt.Sprintf("'%s' is NOT safe as a watermark. Use '%s' for incremental loads. If '%s' must be used, apply a %d-day lookback window.", bizCol, sysCol, bizCol, lookback)
	}
	return f
}

// CheckTimezones reviews the effective timezone of every temporal column and
// warns on mixed usage, per table and schema-wide.
func CheckTimezones(driver, serverTZ string, tables []*schema.TableEntry) []*schema.Finding {
	var findings []*schema.Finding
	allTZs := map[string]bool{}

	for _, t := range tables {
		var tzColumns []schema.TimezoneColumn
		tzSet := map[string]bool{}
		for _, col := range t.Columns {
			if col.ColumnTimezone == "" {
				continue
			}
			tzColumns = append(tzColumns, schema.TimezoneColumn{
				Column:            col.Name,
				Type:              col.Type,
				EffectiveTimezone: col.ColumnTimezone,
				IsTZAware:         schema.TZAware(driver, col.Type),
			})
			tzSet[col.ColumnTimezone] = true
		}
		if len(tzColumns) == 0 {
			continue
		}

		aware := 0
		for _, c := range tzColumns {
			if c.IsTZAware {
				aware++
			}
		}
		naive := len(tzColumns) - aware
		distinct := sortedSet(tzSet)
		for tz := range tzSet {
			allTZs[tz] = true
		}

		f := &schema.Finding{
			Check:             schema.CheckTimezone,
			Table:             t.Table,
			ServerTimezone:    serverTZ,
			TimezoneColumns:   tzColumns,
			DistinctTimezones: distinct,
			TZAwareCount:      aware,
			TZNaiveCount:      naive,
		}
		switch {
		case len(distinct) > 1:
			f.Severity = schema.SeverityWarning
			f.Detail = fmt.Sprintf("Mixed timezones within table: date/time columns use multiple effective timezones (%s). %d TZ-aware, %d TZ-naive.", strings.Join(distinct, ", "), aware, naive)
			f.Recommendation = "Standardize date/time columns to a single timezone (preferably UTC with a timezone-aware type)."
		case naive > 0 && serverTZ != "UTC":
			f.Severity = schema.SeverityInfo
			f.Detail = fmt.Sprintf("All %d date/time column(s) are TZ-naive: stored values are implicitly in server timezone '%s'.", len(tzColumns), serverTZ)
			f.Recommendation = fmt.Sprintf("During ingestion, treat all timestamps as '%s' and convert to UTC.", serverTZ)
		case aware == len(tzColumns):
			f.Severity = schema.SeverityInfo
			f.Detail = fmt.Sprintf("All %d date/time column(s) are TZ-aware: values carry a fixed interpretation.", len(tzColumns))
			f.Recommendation = "Timestamps are in UTC. No special timezone handling needed during ingestion."
		default:
			f.Severity = schema.SeverityInfo
			f.Detail = fmt.Sprintf("All %d date/time column(s) use timezone '%s'.", len(tzColumns), distinct[0])
			f.Recommendation = fmt.Sprintf("Treat all timestamps as '%s' during ingestion.", distinct[0])
		}
		findings = append(findings, f)
	}

	if len(allTZs) > 1 {
		list := sortedSet(allTZs)
		findings = append(findings, &schema.Finding{
			Check:             schema.CheckTimezone,
			Severity:          schema.SeverityWarning,
			Table:             schema.DatabaseWide,
			Detail:            fmt.Sprintf("Multiple effective timezones detected across the database: %s.", strings.Join(list, ", ")),
			Recommendation:    "Establish a single source timezone convention. Preferably migrate all columns to a timezone-aware type (UTC).",
			ServerTimezone:    serverTZ,
			DistinctTimezones: list,
		})
	}
	return findings
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
