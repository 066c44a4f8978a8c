package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"db-scope/internal/dialect"
)

// Crawler walks one schema and produces TableEntry records with per-column
// statistics. All catalog metadata for a table comes from four fixed queries,
// and all column statistics come from a single aggregate query per table, so
// the query count grows with the number of tables, not columns.
type Crawler struct {
	db      *sql.DB
	adapter dialect.Adapter
	log     *zap.Logger

	// SampleRows > 0 attaches up to that many raw rows per table.
	SampleRows int

	// ServerTimezone is the effective timezone for timezone-naive temporal
	// columns. Set it from the adapter before crawling.
	ServerTimezone string

	// Progress, when set, is called once per fully crawled table.
	Progress func(done, total int, table string)
}

func NewCrawler(db *sql.DB, adapter dialect.Adapter, log *zap.Logger) *Crawler {
	return &Crawler{db: db, adapter: adapter, log: log}
}

// Crawl discovers the tables of schema and fills in columns, keys, row counts
// and statistics. When only is non-empty, discovery is restricted to those
// table names. Failures below the table level are logged and skipped; an
// error is returned only when table discovery itself fails.
func (c *Crawler) Crawl(ctx context.Context, schema string, only []string) ([]*TableEntry, error) {
	schema = c.adapter.NormalizeSchema(schema)

	wanted := make(map[string]bool, len(only))
	for _, t := range only {
		wanted[c.adapter.NormalizeSchema(t)] = true
	}

	var tables []*TableEntry
	byName := map[string]*TableEntry{}
	err := c.forEach(ctx, c.adapter.TablesQuery(), schema, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if len(wanted) > 0 && !wanted[name] && !wanted[c.adapter.NormalizeSchema(name)] {
			return nil
		}
		entry := &TableEntry{
			Table:              name,
			Schema:             schema,
			PrimaryKeys:        []string{},
			ForeignKeys:        []ForeignKey{},
			SensitiveFields:    map[string]string{},
			IncrementalColumns: []string{},
			PartitionColumns:   []string{},
			JoinCandidates:     []JoinCandidate{},
			DataQuality:        DataQuality{Findings: []*Finding{}},
		}
		tables = append(tables, entry)
		byName[name] = entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing tables in schema %q: %w", schema, err)
	}
	if len(tables) == 0 {
		return nil, nil
	}

	if err := c.loadColumns(ctx, schema, byName); err != nil {
		return nil, fmt.Errorf("listing columns in schema %q: %w", schema, err)
	}
	c.loadPrimaryKeys(ctx, schema, byName)
	c.loadForeignKeys(ctx, schema, byName)

	for i, t := range tables {
		c.loadRowCount(ctx, t)
		c.loadStats(ctx, t)
		c.classifyTimezones(t)
		t.CDCEnabled = c.adapter.CDCEnabled(ctx, c.db, schema, t.Table)
		t.PartitionColumns = c.partitionColumns(ctx, t)
		t.HasPrimaryKey = len(t.PrimaryKeys) > 0
		t.HasForeignKeys = len(t.ForeignKeys) > 0
		if c.SampleRows > 0 {
			c.loadSample(ctx, t)
		}
		if c.Progress != nil {
			c.Progress(i+1, len(tables), t.Table)
		}
	}
	return tables, nil
}

func (c *Crawler) forEach(ctx context.Context, query, schema string, scan func(*sql.Rows) error) error {
	rows, err := c.db.QueryContext(ctx, query, schema)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (c *Crawler) loadColumns(ctx context.Context, schema string, byName map[string]*TableEntry) error {
	return c.forEach(ctx, c.adapter.ColumnsQuery(), schema, func(rows *sql.Rows) error {
		var tbl, col, typ, nullable string
		var def, extra sql.NullString
		if err := rows.Scan(&tbl, &col, &typ, &nullable, &def, &extra); err != nil {
			return err
		}
		t := byName[tbl]
		if t == nil {
			return nil
		}
		t.Columns = append(t.Columns, &ColumnEntry{
			Name:     col,
			Type:     typ,
			Nullable: strings.EqualFold(nullable, "YES"),
			Default:  def.String,
			Extra:    extra.String,
		})
		return nil
	})
}

func (c *Crawler) loadPrimaryKeys(ctx context.Context, schema string, byName map[string]*TableEntry) {
	err := c.forEach(ctx, c.adapter.PrimaryKeysQuery(), schema, func(rows *sql.Rows) error {
		var tbl, col string
		if err := rows.Scan(&tbl, &col); err != nil {
			return err
		}
		if t := byName[tbl]; t != nil {
			t.PrimaryKeys = append(t.PrimaryKeys, col)
		}
		return nil
	})
	if err != nil {
		c.log.Warn("could not fetch primary keys", zap.String("schema", schema), zap.Error(err))
	}
}

func (c *Crawler) loadForeignKeys(ctx context.Context, schema string, byName map[string]*TableEntry) {
	err := c.forEach(ctx, c.adapter.ForeignKeysQuery(), schema, func(rows *sql.Rows) error {
		var tbl, col, refTable, refCol string
		if err := rows.Scan(&tbl, &col, &refTable, &refCol); err != nil {
			return err
		}
		if t := byName[tbl]; t != nil {
			t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
				Column:     col,
				References: refTable + "." + refCol,
			})
		}
		return nil
	})
	if err != nil {
		c.log.Warn("could not fetch foreign keys", zap.String("schema", schema), zap.Error(err))
	}
}

func (c *Crawler) loadRowCount(ctx context.Context, t *TableEntry) {
	query := "SELECT COUNT(*) FROM " + c.adapter.QuoteTable(t.Schema, t.Table)
	if err := c.db.QueryRowContext(ctx, query).Scan(&t.RowCount); err != nil {
		c.log.Warn("could not count rows", zap.String("table", t.Table), zap.Error(err))
		t.RowCount = -1
	}
}

// statSlot describes the aggregates requested for one column. Columns whose
// type has no usable equality (json, arrays, large binaries) only get a null
// count; range aggregates are limited to types with a total order.
type statSlot struct {
	col      *ColumnEntry
	distinct bool
	ranged   bool
}

func statsPlan(cols []*ColumnEntry) []statSlot {
	plan := make([]statSlot, 0, len(cols))
	for _, col := range cols {
		plan = append(plan, statSlot{
			col:      col,
			distinct: !skipDistinct(col.Type),
			ranged:   RangeComparable(col.Type),
		})
	}
	return plan
}

func buildStatsQuery(a dialect.Adapter, schema, table string, plan []statSlot) string {
	var exprs []string
	for _, slot := range plan {
		q := a.QuoteIdentifier(slot.col.Name)
		if slot.distinct {
			exprs = append(exprs, fmt.Sprintf("COUNT(DISTINCT %s)", q))
		}
		exprs = append(exprs, fmt.Sprintf("SUM(CASE WHEN %s IS NULL THEN 1 ELSE 0 END)", q))
		if slot.ranged {
			exprs = append(exprs, fmt.Sprintf("MIN(%s)", q), fmt.Sprintf("MAX(%s)", q))
		}
	}
	return "SELECT " + strings.Join(exprs, ", ") + " FROM " + a.QuoteTable(schema, table)
}

func (c *Crawler) loadStats(ctx context.Context, t *TableEntry) {
	if len(t.Columns) == 0 || t.RowCount <= 0 {
		return
	}
	plan := statsPlan(t.Columns)
	query := buildStatsQuery(c.adapter, t.Schema, t.Table, plan)

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
	values := make([]any, n)
	dests := make([]any, n)
	for i := range values {
		dests[i] = &values[i]
	}
	if err := c.db.QueryRowContext(ctx, query).Scan(dests...); err != nil {
		c.log.Warn("could not gather column statistics",
			zap.String("table", t.Table), zap.Error(err))
		return
	}

	i := 0
	for _, slot := range plan {
		if slot.distinct {
			slot.col.Cardinality = asInt64(values[i])
			i++
		}
		slot.col.NullCount = asInt64(values[i])
		i++
		if slot.ranged {
			min, max := values[i], values[i+1]
			i += 2
			if min != nil || max != nil {
				slot.col.DataRange = &DataRange{Min: stringify(min), Max: stringify(max)}
			}
		}
	}
}

func (c *Crawler) partitionColumns(ctx context.Context, t *TableEntry) []string {
	meta := make([]dialect.ColumnMeta, len(t.Columns))
	for i, col := range t.Columns {
		meta[i] = dialect.ColumnMeta{Name: col.Name, Type: col.Type}
	}
	cols := c.adapter.PartitionColumns(ctx, c.db, t.Schema, t.Table, meta)
	if cols == nil {
		cols = []string{}
	}
	return cols
}

func (c *Crawler) loadSample(ctx context.Context, t *TableEntry) {
	query := c.adapter.SelectLimitQuery(t.Schema, t.Table, c.SampleRows)
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		c.log.Warn("could not sample rows", zap.String("table", t.Table), zap.Error(err))
		return
	}
	defer rows.Close()
	names, err := rows.Columns()
	if err != nil {
		return
	}
	sample := make(map[string][]string, len(names))
	values := make([]any, len(names))
	dests := make([]any, len(names))
	for i := range values {
		dests[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dests...); err != nil {
			return
		}
		for i, name := range names {
			sample[name] = append(sample[name], stringify(values[i]))
		}
	}
	if rows.Err() == nil {
		t.SampleData = sample
	}
}

// classifyTimezones tags temporal columns with their effective timezone:
// timezone-aware types store a fixed interpretation, naive types inherit
// whatever the server session applies. Plain dates carry no timezone at all.
func (c *Crawler) classifyTimezones(t *TableEntry) {
	for _, col := range t.Columns {
		lower := strings.ToLower(strings.TrimSpace(col.Type))
		if !IsTemporal(col.Type) || lower == "date" {
			continue
		}
		if TZAware(c.adapter.Name(), col.Type) {
			col.ColumnTimezone = tzAwareInterpretation[c.adapter.Name()]
		} else if c.ServerTimezone != "" {
			col.ColumnTimezone = c.ServerTimezone
		} else {
			col.ColumnTimezone = "Unknown"
		}
	}
}

// tzAwareInterpretation is what a timezone-aware value means per engine:
// Postgres and MySQL normalize to UTC on write, SQL Server keeps the offset
// in the value itself.
var tzAwareInterpretation = map[string]string{
	"postgres":  "UTC",
	"mysql":     "UTC",
	"sqlserver": "offset_embedded",
	"oracle":    "offset_embedded",
}

// tzAwareTypes maps a driver name to the lowercase type fragments that mark a
// temporal column as carrying timezone information.
var tzAwareTypes = map[string][]string{
	"postgres":  {"timestamptz", "timetz", "with time zone"},
	"sqlserver": {"datetimeoffset"},
	"oracle":    {"with time zone", "with local time zone"},
	// MySQL TIMESTAMP is stored as UTC and converted on read.
	"mysql": {"timestamp"},
}

// TZAware reports whether colType keeps timezone information under the given
// driver.
func TZAware(driver, colType string) bool {
	lower := strings.ToLower(colType)
	for _, frag := range tzAwareTypes[driver] {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// IsTemporal reports whether colType holds dates or times. SQL Server's
// legacy "timestamp" (rowversion) alias is excluded.
func IsTemporal(colType string) bool {
	lower := strings.ToLower(colType)
	if lower == "rowversion" {
		return false
	}
	return strings.Contains(lower, "date") ||
		strings.Contains(lower, "time") ||
		strings.HasPrefix(lower, "year")
}

// rangeSkipTypes lists lowercase type fragments excluded from MIN/MAX
// aggregation: no total order, or values too large to report as a range.
var rangeSkipTypes = []string{
	"json", "xml", "bytea", "blob", "clob", "binary", "varbinary", "image",
	"array", "bool", "bit", "uuid", "uniqueidentifier", "inet", "cidr",
	"macaddr", "point", "line", "lseg", "box", "path", "polygon", "circle",
	"geometry", "geography", "interval", "tsvector", "tsquery", "rowversion",
	"raw", "long", "hierarchyid", "sql_variant", "set(",
}

// RangeComparable reports whether MIN/MAX are meaningful for colType:
// numeric, character and date/time types qualify.
func RangeComparable(colType string) bool {
	lower := strings.ToLower(colType)
	for _, frag := range rangeSkipTypes {
		if strings.Contains(lower, frag) {
			return false
		}
	}
	return true
}

// skipDistinct reports whether COUNT(DISTINCT) must be avoided for colType,
// which is the case for types without usable equality.
func skipDistinct(colType string) bool {
	lower := strings.ToLower(colType)
	for _, frag := range []string{"json", "xml", "blob", "clob", "image", "array", "geometry", "geography", "tsvector", "tsquery", "point", "line", "polygon", "circle", "sql_variant"} {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// TotalRows sums the row counts of tables, treating unknown (-1) as zero.
func TotalRows(tables []*TableEntry) int64 {
	var total int64
	for _, t := range tables {
		if t.RowCount > 0 {
			total += t.RowCount
		}
	}
	return total
}

// SortTables orders tables by name for deterministic output.
func SortTables(tables []*TableEntry) {
	sort.Slice(tables, func(i, j int) bool { return tables[i].Table < tables[j].Table })
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		var out int64
		fmt.Sscanf(string(n), "%d", &out)
		return out
	case string:
		var out int64
		fmt.Sscanf(n, "%d", &out)
		return out
	default:
		return 0
	}
}

// stringify renders a scanned database value for the report.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
