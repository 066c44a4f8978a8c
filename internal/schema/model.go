package schema

// Severity levels for data quality findings.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Check kinds. Every Finding carries exactly one of these tags.
const (
	CheckControlledValue   = "controlled_value_candidate"
	CheckNullableNeverNull = "nullable_but_never_null"
	CheckMissingPrimaryKey = "missing_primary_key"
	CheckMissingForeignKey = "missing_foreign_key"
	CheckFormat            = "format_inconsistency"
	CheckRangeViolation    = "range_violation"
	CheckDeleteManagement  = "delete_management"
	CheckLateArriving      = "late_arriving_data"
	CheckTimezone          = "timezone"
	CheckUnitConsistency   = "unit_consistency"
)

// CheckKinds lists the battery in report order.
var CheckKinds = []string{
	CheckControlledValue, CheckNullableNeverNull, CheckMissingPrimaryKey,
	CheckMissingForeignKey, CheckFormat, CheckRangeViolation,
	CheckDeleteManagement, CheckLateArriving, CheckTimezone,
	CheckUnitConsistency,
}

// DatabaseWide is the pseudo-table name for findings that span the schema.
const DatabaseWide = "(database-wide)"

// Document is the full analysis output serialized to JSON.
type Document struct {
	Metadata       Metadata       `json:"metadata"`
	Connection     Connection     `json:"connection"`
	QualitySummary QualitySummary `json:"data_quality_summary"`
	Tables         []*TableEntry  `json:"tables"`
}

// ErrorDocument is returned instead of Document when nothing was discovered.
type ErrorDocument struct {
	Error string `json:"error"`
}

type Metadata struct {
	GeneratedAt   string `json:"generated_at"`
	DatabaseURL   string `json:"database_url"`
	SchemaFilter  string `json:"schema_filter"`
	TotalTables   int    `json:"total_tables"`
	TotalRows     int64  `json:"total_rows"`
	TotalFindings int    `json:"total_findings"`
}

type Connection struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Database string `json:"database"`
	Driver   string `json:"driver"`
	Timezone string `json:"timezone"`
}

type QualitySummary struct {
	Critical             int            `json:"critical"`
	Warning              int            `json:"warning"`
	Info                 int            `json:"info"`
	ByCheck              map[string]int `json:"by_check"`
	ConstraintsFound     Constraints    `json:"constraints_found"`
	DatabaseWideFindings []*Finding     `json:"database_wide_findings,omitempty"`
}

type Constraints struct {
	CheckConstraints  int `json:"check_constraints"`
	EnumColumns       int `json:"enum_columns"`
	UniqueConstraints int `json:"unique_constraints"`
}

// TableEntry is one crawled and enriched table.
type TableEntry struct {
	Table                string            `json:"table"`
	Schema               string            `json:"schema"`
	Columns              []*ColumnEntry    `json:"columns"`
	PrimaryKeys          []string          `json:"primary_keys"`
	ForeignKeys          []ForeignKey      `json:"foreign_keys"`
	RowCount             int64             `json:"row_count"`
	FieldClassifications map[string]string `json:"field_classifications,omitempty"`
	SensitiveFields      map[string]string `json:"sensitive_fields"`
	IncrementalColumns   []string          `json:"incremental_columns"`
	PartitionColumns     []string          `json:"partition_columns"`
	JoinCandidates       []JoinCandidate   `json:"join_candidates"`
	UnitSummary          map[string][]string `json:"unit_summary,omitempty"`
	CDCEnabled           bool              `json:"cdc_enabled"`
	HasPrimaryKey        bool              `json:"has_primary_key"`
	HasForeignKeys       bool              `json:"has_foreign_keys"`
	HasSensitiveFields   bool              `json:"has_sensitive_fields"`
	SampleData           map[string][]string `json:"sample_data,omitempty"`
	DataQuality          DataQuality       `json:"data_quality"`
}

// Column returns the column entry by name, or nil.
func (t *TableEntry) Column(name string) *ColumnEntry {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// PKSet returns the primary key columns as a lookup set.
func (t *TableEntry) PKSet() map[string]bool {
	set := make(map[string]bool, len(t.PrimaryKeys))
	for _, pk := range t.PrimaryKeys {
		set[pk] = true
	}
	return set
}

// FKSet returns the explicit foreign key columns as a lookup set.
func (t *TableEntry) FKSet() map[string]bool {
	set := make(map[string]bool, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		set[fk.Column] = true
	}
	return set
}

type ForeignKey struct {
	Column string `json:"column"`
	// References is "target_table.target_column".
	References string `json:"references"`
}

type JoinCandidate struct {
	Column       string `json:"column"`
	TargetTable  string `json:"target_table,omitempty"`
	TargetColumn string `json:"target_column,omitempty"`
	Confidence   string `json:"confidence"`
}

// ColumnEntry is one crawled and enriched column.
type ColumnEntry struct {
	Name           string       `json:"name"`
	Type           string       `json:"type"`
	Nullable       bool         `json:"nullable"`
	Default        string       `json:"-"`
	Extra          string       `json:"-"`
	IsIncremental  bool         `json:"is_incremental"`
	ColumnTimezone string       `json:"column_timezone,omitempty"`
	Cardinality    int64        `json:"cardinality"`
	NullCount      int64        `json:"null_count"`
	DataRange      *DataRange   `json:"data_range,omitempty"`
	DataCategory   string       `json:"data_category,omitempty"`
	SemanticClass  string       `json:"semantic_class,omitempty"`
	UnitContext    *UnitContext `json:"unit_context,omitempty"`
}

type DataRange struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// UnitContext captures the inferred unit of measure for a column whose
// semantic class implies one.
type UnitContext struct {
	DetectedUnit    string      `json:"detected_unit"`
	DetectionSource string      `json:"detection_source,omitempty"`
	CanonicalUnit   string      `json:"canonical_unit,omitempty"`
	UnitSystem      string      `json:"unit_system,omitempty"`
	Conversion      *Conversion `json:"conversion,omitempty"`
	Confidence      string      `json:"detection_confidence"`
	Notes           string      `json:"notes,omitempty"`
}

// Conversion maps a detected unit onto its canonical unit:
// canonical = detected*Factor + Offset.
type Conversion struct {
	Factor float64 `json:"factor"`
	Offset float64 `json:"offset"`
}

type DataQuality struct {
	Findings []*Finding `json:"findings"`
}

// Finding is one data quality observation. The base fields are shared by
// every check; the payload pointers are populated per check kind.
type Finding struct {
	Check          string `json:"check"`
	Severity       string `json:"severity"`
	Table          string `json:"table"`
	Column         string `json:"column,omitempty"`
	Detail         string `json:"detail"`
	Recommendation string `json:"recommendation"`

	// controlled_value_candidate
	DistinctValues []string `json:"distinct_values,omitempty"`
	Cardinality    int64    `json:"cardinality,omitempty"`

	// missing_foreign_key
	TargetTable    string   `json:"target_table,omitempty"`
	TargetColumn   string   `json:"target_column,omitempty"`
	OrphanedValues []string `json:"orphaned_values,omitempty"`

	// format_inconsistency
	Pattern    string  `json:"pattern,omitempty"`
	MatchRatio float64 `json:"match_ratio,omitempty"`

	// range_violation
	ViolationType  string `json:"violation_type,omitempty"`
	ViolationCount int64  `json:"violation_count,omitempty"`

	// delete_management
	DeleteStrategy   string `json:"delete_strategy,omitempty"`
	SoftDeleteColumn string `json:"soft_delete_column,omitempty"`
	SoftDeleteType   string `json:"soft_delete_type,omitempty"`
	HasAuditTrail    bool   `json:"has_audit_trail,omitempty"`
	AuditTrailTable  string `json:"audit_trail_table,omitempty"`

	// late_arriving_data
	BusinessDateColumn      string    `json:"business_date_column,omitempty"`
	SystemTimestampColumn   string    `json:"system_ts_column,omitempty"`
	LagStats                *LagStats `json:"lag_stats,omitempty"`
	RecommendedLookbackDays int       `json:"recommended_lookback_days,omitempty"`

	// timezone
	ServerTimezone    string           `json:"server_timezone,omitempty"`
	TimezoneColumns   []TimezoneColumn `json:"columns,omitempty"`
	DistinctTimezones []string         `json:"distinct_timezones,omitempty"`
	TZAwareCount      int              `json:"tz_aware_count,omitempty"`
	TZNaiveCount      int              `json:"tz_naive_count,omitempty"`

	// unit_consistency
	SemanticClass string   `json:"semantic_class,omitempty"`
	UnitsObserved []string `json:"units_observed,omitempty"`
}

type LagStats struct {
	TotalRowsCompared int64   `json:"total_rows_compared"`
	MinLagHours       float64 `json:"min_lag_hours"`
	AvgLagHours       float64 `json:"avg_lag_hours"`
	P95LagHours       float64 `json:"p95_lag_hours"`
	MaxLagHours       float64 `json:"max_lag_hours"`
	MaxLagDays        float64 `json:"max_lag_days"`
	RowsLateOver1d    int64   `json:"rows_late_over_1d"`
	RowsLateOver7d    int64   `json:"rows_late_over_7d"`
}

type TimezoneColumn struct {
	Column            string `json:"column"`
	Type              string `json:"type"`
	EffectiveTimezone string `json:"effective_timezone"`
	IsTZAware         bool   `json:"is_tz_aware"`
}
