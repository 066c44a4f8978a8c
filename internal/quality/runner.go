package quality

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"db-scope/internal/dialect"
	"db-scope/internal/schema"
)

// Runner executes the data quality battery against one schema. Checks that
// need live data issue their queries through the dialect adapter; a failed
// query downgrades the check to no finding, never to an error.
type Runner struct {
	db      *sql.DB
	adapter dialect.Adapter
	schema  string
	log     *zap.Logger

	// SampleSize bounds the number of values read for format analysis.
	SampleSize int
}

func NewRunner(db *sql.DB, adapter dialect.Adapter, schemaName string, log *zap.Logger) *Runner {
	return &Runner{db: db, adapter: adapter, schema: schemaName, log: log, SampleSize: 200}
}

// Result carries the findings plus the constraint inventory gathered while
// producing them.
type Result struct {
	Findings       []*schema.Finding
	Constraints    schema.Constraints
	ServerTimezone string
}

// Run executes every check over the crawled tables. Enrichment must have run
// first: join candidates and unit summaries feed the FK and unit checks.
func (r *Runner) Run(ctx context.Context, tables []*schema.TableEntry) Result {
	checkCons := r.adapter.CheckConstraints(ctx, r.db, r.schema)
	enumCols := r.adapter.EnumColumns(ctx, r.db, r.schema)
	uniqueCons := r.adapter.UniqueConstraints(ctx, r.db, r.schema)
	serverTZ := r.adapter.DatabaseTimezone(ctx, r.db)

	var findings []*schema.Finding
	findings = append(findings, r.checkControlledValues(ctx, tables, checkCons, enumCols, uniqueCons)...)
	findings = append(findings, CheckNullableNeverNull(tables)...)
	findings = append(findings, CheckMissingPrimaryKeys(tables)...)
	findings = append(findings, r.checkMissingForeignKeys(ctx, tables)...)
	findings = append(findings, r.checkFormatInconsistency(ctx, tables)...)
	findings = append(findings, r.checkRangeViolations(ctx, tables)...)
	findings = append(findings, r.checkDeleteManagement(ctx, tables)...)
	findings = append(findings, r.checkLateArrivingData(ctx, tables)...)
	findings = append(findings, CheckTimezones(r.adapter.Name(), serverTZ, tables)...)
	findings = append(findings, CheckUnitConsistency(tables)...)

	var cons schema.Constraints
	for _, v := range checkCons {
		cons.CheckConstraints += len(v)
	}
	for _, v := range enumCols {
		cons.EnumColumns += len(v)
	}
	for _, v := range uniqueCons {
		cons.UniqueConstraints += len(v)
	}
	return Result{Findings: findings, Constraints: cons, ServerTimezone: serverTZ}
}

// applyLimit places the vendor row limit into a query: trailing for
// LIMIT/FETCH FIRST engines, after SELECT [DISTINCT] for TOP.
func applyLimit(a dialect.Adapter, query string, limit int) string {
	clause := a.LimitClause(limit)
	if !strings.HasPrefix(clause, "TOP") {
		return query + " " + clause
	}
	if strings.HasPrefix(query, "SELECT DISTINCT") {
		return "SELECT DISTINCT " + clause + query[len("SELECT DISTINCT"):]
	}
	return "SELECT " + clause + query[len("SELECT"):]
}

func (r *Runner) queryStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid {
			out = append(out, v.String)
		}
	}
	return out, rows.Err()
}

func (r *Runner) checkControlledValues(ctx context.Context, tables []*schema.TableEntry,
	checkCons map[string][]dialect.CheckConstraint, enumCols map[string]map[string][]string,
	uniqueCons map[string]map[string]bool) []*schema.Finding {

	var findings []*schema.Finding
	for _, t := range tables {
		if t.RowCount <= 0 {
			continue
		}
		pks := t.PKSet()
		fks := t.FKSet()
		constrained := map[string]bool{}
		for _, c := range checkCons[t.Table] {
			constrained[c.Column] = true
		}
		for col := range enumCols[t.Table] {
			constrained[col] = true
		}
		for col := range uniqueCons[t.Table] {
			constrained[col] = true
		}

		for _, col := range t.Columns {
			if !controlledValueEligible(col, pks, fks, constrained) {
				continue
			}
			q := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s",
				r.adapter.QuoteIdentifier(col.Name),
				r.adapter.QuoteTable(t.Schema, t.Table),
				r.adapter.QuoteIdentifier(col.Name),
				r.adapter.QuoteIdentifier(col.Name))
			values, err := r.queryStrings(ctx, applyLimit(r.adapter, q, 25))
			if err != nil {
				r.log.Warn("could not read distinct values",
					zap.String("table", t.Table), zap.String("column", col.Name), zap.Error(err))
			}
			display := values
			if len(display) > 10 {
				display = display[:10]
			}
			findings = append(findings, &schema.Finding{
				Check:    schema.CheckControlledValue,
				Severity: schema.SeverityWarning,
				Table:    t.Table,
				Column:   col.Name,
				Detail: fmt.Sprintf("Text column with %d distinct value(s) (%s) but no CHECK, ENUM, or FK constraint",
					col.Cardinality, quoteJoin(display)),
				Recommendation: "Add a CHECK constraint, convert to an ENUM type, or create a lookup/reference table to prevent invalid values",
				DistinctValues: values,
				Cardinality:    col.Cardinality,
			})
		}
	}
	return findings
}

func quoteJoin(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, ", ")
}

func (r *Runner) checkMissingForeignKeys(ctx context.Context, tables []*schema.TableEntry) []*schema.Finding {
	var findings []*schema.Finding
	for _, t := range tables {
		fks := t.FKSet()
		for _, cand := range t.JoinCandidates {
			// Declared FKs appear among the candidates but need no finding.
			if fks[cand.Column] || cand.Confidence != "high" || cand.TargetTable == "" {
				continue
			}
			var orphans []string
			if t.RowCount > 0 && cand.TargetColumn != "" {
				q := fmt.Sprintf(
					"SELECT DISTINCT s.%[1]s FROM %[2]s s LEFT JOIN %[3]s t ON s.%[1]s = t.%[4]s WHERE s.%[1]s IS NOT NULL AND t.%[4]s IS NULL",
					r.adapter.QuoteIdentifier(cand.Column),
					r.adapter.QuoteTable(t.Schema, t.Table),
					r.adapter.QuoteTable(t.Schema, cand.TargetTable),
					r.adapter.QuoteIdentifier(cand.TargetColumn))
				var err error
				orphans, err = r.queryStrings(ctx, applyLimit(r.adapter, q, 10))
				if err != nil {
					r.log.Warn("could not probe for orphaned values",
						zap.String("table", t.Table), zap.String("column", cand.Column), zap.Error(err))
					orphans = nil
				}
			}

			detail := fmt.Sprintf("Column follows FK naming pattern and matches %s.%s but has no FK constraint",
				cand.TargetTable, cand.TargetColumn)
			if len(orphans) > 0 {
				detail += fmt.Sprintf(". Found %d orphaned value(s): %s", len(orphans), strings.Join(orphans, ", "))
			}
			findings = append(findings, &schema.Finding{
				Check:    schema.CheckMissingForeignKey,
				Severity: orphanSeverity(len(orphans)),
				Table:    t.Table,
				Column:   cand.Column,
				Detail:   detail,
				Recommendation: fmt.Sprintf("Add FOREIGN KEY constraint referencing %s(%s) to enforce referential integrity",
					cand.TargetTable, cand.TargetColumn),
				TargetTable:    cand.TargetTable,
				TargetColumn:   cand.TargetColumn,
				OrphanedValues: orphans,
			})
		}
	}
	return findings
}

func (r *Runner) checkFormatInconsistency(ctx context.Context, tables []*schema.TableEntry) []*schema.Finding {
	var findings []*schema.Finding
	for _, t := range tables {
		if t.RowCount <= 0 {
			continue
		}
		for _, col := range t.Columns {
			if !isTextType(col.Type) || col.Cardinality <= controlledValueMaxCardinality {
				continue
			}
			q := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL",
				r.adapter.QuoteIdentifier(col.Name),
				r.adapter.QuoteTable(t.Schema, t.Table),
				r.adapter.QuoteIdentifier(col.Name))
			values, err := r.queryStrings(ctx, applyLimit(r.adapter, q, r.SampleSize))
			if err != nil || len(values) == 0 {
				continue
			}
			for _, pat := range formatPatterns {
				matches := 0
				var nonMatching []string
				for _, v := range values {
					if pat.re.MatchString(v) {
						matches++
					} else if len(nonMatching) < 5 {
						nonMatching = append(nonMatching, v)
					}
				}
				ratio := float64(matches) / float64(len(values))
				if !dominantButInconsistent(ratio) {
					continue
				}
				findings = append(findings, &schema.Finding{
					Check:    schema.CheckFormat,
					Severity: schema.SeverityWarning,
					Table:    t.Table,
					Column:   col.Name,
					Detail: fmt.Sprintf("%d/%d sampled values match %s format, but %d do not. Non-matching samples: %s",
						matches, len(values), pat.name, len(values)-matches, strings.Join(nonMatching, ", ")),
					Recommendation: fmt.Sprintf("Add validation to ensure consistent %s format, or separate non-conforming values", pat.name),
					Pattern:        pat.name,
					MatchRatio:     float64(int(ratio*1000)) / 1000,
				})
			}
		}
	}
	return findings
}

func (r *Runner) negativeCount(ctx context.Context, t *schema.TableEntry, colName string) int64 {
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s < 0",
		r.adapter.QuoteTable(t.Schema, t.Table), r.adapter.QuoteIdentifier(colName))
	var count int64
	if err := r.db.QueryRowContext(ctx, q).Scan(&count); err != nil {
		r.log.Warn("could not count negative values",
			zap.String("table", t.Table), zap.String("column", colName), zap.Error(err))
		return 0
	}
	return count
}

func (r *Runner) checkRangeViolations(ctx context.Context, tables []*schema.TableEntry) []*schema.Finding {
	var findings []*schema.Finding
	for _, t := range tables {
		if t.RowCount <= 0 {
			continue
		}
		for _, col := range t.Columns {
			if col.DataRange == nil || col.DataRange.Min == "" || !isNumericType(col.Type) {
				continue
			}
			if !strings.HasPrefix(strings.TrimSpace(col.DataRange.Min), "-") {
				continue
			}
			nameLower := strings.ToLower(col.Name)
			if containsAny(nameLower, pricingPatterns) {
				if n := r.negativeCount(ctx, t, col.Name); n > 0 {
					findings = append(findings, &schema.Finding{
						Check:    schema.CheckRangeViolation,
						Severity: schema.SeverityWarning,
						Table:    t.Table,
						Column:   col.Name,
						Detail: fmt.Sprintf("Pricing/amount column has %d negative value(s) (min: %s)",
							n, col.DataRange.Min),
						Recommendation: "Add CHECK constraint (value >= 0) or verify negatives represent valid adjustments",
						ViolationType:  "negative_pricing",
						ViolationCount: n,
					})
				}
			}
			if containsAny(nameLower, quantityPatterns) {
				if n := r.negativeCount(ctx, t, col.Name); n > 0 {
					findings = append(findings, &schema.Finding{
						Check:    schema.CheckRangeViolation,
						Severity: schema.SeverityWarning,
						Table:    t.Table,
						Column:   col.Name,
						Detail: fmt.Sprintf("Quantity column has %d negative value(s) (min: %s)",
							n, col.DataRange.Min),
						Recommendation: "Add CHECK constraint (value >= 0) if negative quantities are not expected",
						ViolationType:  "negative_quantity",
						ViolationCount: n,
					})
				}
			}
		}
	}
	return findings
}

func (r *Runner) checkDeleteManagement(ctx context.Context, tables []*schema.TableEntry) []*schema.Finding {
	allTables := make(map[string]bool, len(tables))
	for _, t := range tables {
		allTables[strings.ToLower(t.Table)] = true
	}
	var findings []*schema.Finding
	for _, t := range tables {
		softCol, softType := softDeleteColumn(t.Columns)
		audit := auditTrailTable(t.Table, allTables)
		valueInfo := ""
		if softCol != "" && t.RowCount > 0 {
			valueInfo = r.softDeleteDistribution(ctx, t, softCol)
		}
		findings = append(findings, deleteManagementFinding(t, softCol, softType, audit, valueInfo))
	}
	return findings
}

func (r *Runner) softDeleteDistribution(ctx context.Context, t *schema.TableEntry, softCol string) string {
	q := fmt.Sprintf("SELECT %s, COUNT(*) FROM %s GROUP BY %s ORDER BY %s",
		r.adapter.QuoteIdentifier(softCol),
		r.adapter.QuoteTable(t.Schema, t.Table),
		r.adapter.QuoteIdentifier(softCol),
		r.adapter.OrderByNullableFirst(softCol))
	rows, err := r.db.QueryContext(ctx, applyLimit(r.adapter, q, 10))
	if err != nil {
		return ""
	}
	defer rows.Close()
	var parts []string
	for rows.Next() {
		var value sql.NullString
		var count int64
		if err := rows.Scan(&value, &count); err != nil {
			return ""
		}
		label := value.String
		if !value.Valid {
			label = "NULL"
		}
		parts = append(parts, fmt.Sprintf("%s=%d", label, count))
	}
	if rows.Err() != nil || len(parts) == 0 {
		return ""
	}
	return " Current distribution: " + strings.Join(parts, ", ") + "."
}

func (r *Runner) checkLateArrivingData(ctx context.Context, tables []*schema.TableEntry) []*schema.Finding {
	if !r.adapter.SupportsLateArriving() {
		return nil
	}
	var findings []*schema.Finding
	for _, t := range tables {
		if t.RowCount <= 0 {
			continue
		}
		byLower := map[string]*schema.ColumnEntry{}
		for _, col := range t.Columns {
			byLower[strings.ToLower(col.Name)] = col
		}
		var bizCol *schema.ColumnEntry
		for _, p := range businessDatePatterns {
			if c, ok := byLower[p]; ok {
				bizCol = c
				break
			}
		}
		if bizCol == nil {
			continue
		}
		var sysCol *schema.ColumnEntry
		for _, p := range systemTimestampPatterns {
			if c, ok := byLower[p]; ok {
				sysCol = c
				break
			}
		}
		if sysCol == nil {
			findings = append(findings, &schema.Finding{
				Check:    schema.CheckLateArriving,
				Severity: schema.SeverityInfo,
				Table:    t.Table,
				Column:   bizCol.Name,
				Detail: fmt.Sprintf("Table has business-date column '%s' but no system-insertion timestamp (created_at, etc.). Cannot measure arrival lag.",
					bizCol.Name),
				Recommendation:     "Add a created_at / inserted_at column to track when rows actually land.",
				BusinessDateColumn: bizCol.Name,
			})
			continue
		}

		bizExpr := r.adapter.LateArrivingBizExpr(bizCol.Name, bizCol.Type)
		q := r.adapter.LateArrivingQuery(t.Schema, t.Table, bizCol.Name, sysCol.Name, bizExpr)
		var total, late1d, late7d sql.NullInt64
		var minH, avgH, p95H, maxH sql.NullFloat64
		if err := r.db.QueryRowContext(ctx, q).Scan(&total, &late1d, &late7d, &minH, &avgH, &p95H, &maxH); err != nil {
			r.log.Warn("could not compute arrival lag",
				zap.String("table", t.Table), zap.String("column", bizCol.Name), zap.Error(err))
			continue
		}
		if total.Int64 == 0 {
			continue
		}
		stats := &schema.LagStats{
			TotalRowsCompared: total.Int64,
			MinLagHours:       minH.Float64,
			AvgLagHours:       avgH.Float64,
			P95LagHours:       p95H.Float64,
			MaxLagHours:       maxH.Float64,
			MaxLagDays:        float64(int(maxH.Float64/24*10+0.5)) / 10,
			RowsLateOver1d:    late1d.Int64,
			RowsLateOver7d:    late7d.Int64,
		}
		findings = append(findings, lateArrivalFinding(t.Table, bizCol.Name, sysCol.Name, stats))
	}
	return findings
}
