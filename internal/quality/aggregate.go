package quality

import (
	"time"

	"db-scope/internal/schema"
)

// BuildDocument folds findings into the tables they concern and assembles
// the final report. Findings against the database-wide pseudo-table move to
// the summary instead of a table entry.
func BuildDocument(databaseURL, schemaFilter string, conn schema.Connection,
	tables []*schema.TableEntry, res Result) *schema.Document {

	byTable := map[string][]*schema.Finding{}
	var databaseWide []*schema.Finding
	summary := schema.QualitySummary{
		ByCheck:          map[string]int{},
		ConstraintsFound: res.Constraints,
	}
	for _, check := range schema.CheckKinds {
		summary.ByCheck[check] = 0
	}

	for _, f := range res.Findings {
		switch f.Severity {
		case schema.SeverityCritical:
			summary.Critical++
		case schema.SeverityWarning:
			summary.Warning++
		case schema.SeverityInfo:
			summary.Info++
		}
		summary.ByCheck[f.Check]++
		if f.Table == schema.DatabaseWide {
			databaseWide = append(databaseWide, f)
		} else {
			byTable[f.Table] = append(byTable[f.Table], f)
		}
	}
	summary.DatabaseWideFindings = databaseWide

	var totalFindings int
	for _, t := range tables {
		findings := byTable[t.Table]
		if findings == nil {
			findings = []*schema.Finding{}
		}
		t.DataQuality = schema.DataQuality{Findings: findings}
		totalFindings += len(findings)
	}
	totalFindings += len(databaseWide)

	conn.Timezone = res.ServerTimezone
	return &schema.Document{
		Metadata: schema.Metadata{
			GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
			DatabaseURL:   RedactURL(databaseURL),
			SchemaFilter:  schemaFilter,
			TotalTables:   len(tables),
			TotalRows:     schema.TotalRows(tables),
			TotalFindings: totalFindings,
		},
		Connection:     conn,
		QualitySummary: summary,
		Tables:         tables,
	}
}

// RedactURL strips credentials from a connection URL: everything before the
// last '@' is dropped.
func RedactURL(url string) string {
	for i := len(url) - 1; i >= 0; i-- {
		if url[i] == '@' {
			return url[i+1:]
		}
	}
	return url
}
