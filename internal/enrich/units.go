package enrich

import (
	"regexp"
	"sort"
	"strings"

	"db-scope/internal/schema"
)

// Semantic classes assigned to measure-like columns.
const (
	ClassLength      = "length"
	ClassMass        = "mass"
	ClassVolume      = "volume"
	ClassPressure    = "pressure"
	ClassTemperature = "temperature"
	ClassDuration    = "duration"
	ClassSpeed       = "speed"
	ClassEnergy      = "energy"
	ClassCurrency    = "currency"
	ClassPercentage  = "percentage"
)

// semanticRules map column names to a semantic class. Ordered: the first
// matching rule wins, so narrow patterns come before broad ones.
var semanticRules = []struct {
	re    *regexp.Regexp
	class string
}{
	{regexp.MustCompile(`(?i)(^|_)(temperature|temp)(_|$)`), ClassTemperature},
	{regexp.MustCompile(`(?i)(^|_)(pressure)(_|$)`), ClassPressure},
	{regexp.MustCompile(`(?i)(^|_)(speed|velocity)(_|$)`), ClassSpeed},
	{regexp.MustCompile(`(?i)(^|_)(energy|consumption)(_|$)`), ClassEnergy},
	{regexp.MustCompile(`(?i)(^|_)(duration|elapsed|runtime|uptime|latency)(_|$)`), ClassDuration},
	{regexp.MustCompile(`(?i)(^|_)(weight|mass)(_|$)`), ClassMass},
	{regexp.MustCompile(`(?i)(^|_)(height|width|depth|length|distance|radius|diameter)(_|$)`), ClassLength},
	{regexp.MustCompile(`(?i)(^|_)(volume|capacity)(_|$)`), ClassVolume},
	{regexp.MustCompile(`(?i)(percent|percentage|pct)(_|$)`), ClassPercentage},
	{regexp.MustCompile(`(?i)(^|_)(price|cost|amount|total|subtotal|fee|charge|revenue|balance)(_|$)`), ClassCurrency},
}

// unitAlias maps a unit token found in a column name onto its class,
// canonical unit and the linear conversion canonical = value*factor + offset.
type unitAlias struct {
	class     string
	canonical string
	system    string
	factor    float64
	offset    float64
}

var unitAliases = map[string]unitAlias{
	// length, canonical meter
	"m":      {ClassLength, "m", "metric", 1, 0},
	"meters": {ClassLength, "m", "metric", 1, 0},
	"km":     {ClassLength, "m", "metric", 1000, 0},
	"cm":     {ClassLength, "m", "metric", 0.01, 0},
	"mm":     {ClassLength, "m", "metric", 0.001, 0},
	"in":     {ClassLength, "m", "imperial", 0.0254, 0},
	"inches": {ClassLength, "m", "imperial", 0.0254, 0},
	"ft":     {ClassLength, "m", "imperial", 0.3048, 0},
	"feet":   {ClassLength, "m", "imperial", 0.3048, 0},
	"yd":     {ClassLength, "m", "imperial", 0.9144, 0},
	"mi":     {ClassLength, "m", "imperial", 1609.344, 0},
	"miles":  {ClassLength, "m", "imperial", 1609.344, 0},

	// mass, canonical kilogram
	"kg":     {ClassMass, "kg", "metric", 1, 0},
	"g":      {ClassMass, "kg", "metric", 0.001, 0},
	"mg":     {ClassMass, "kg", "metric", 0.000001, 0},
	"tonnes": {ClassMass, "kg", "metric", 1000, 0},
	"lb":     {ClassMass, "kg", "imperial", 0.45359237, 0},
	"lbs":    {ClassMass, "kg", "imperial", 0.45359237, 0},
	"oz":     {ClassMass, "kg", "imperial", 0.028349523125, 0},

	// volume, canonical liter
	"l":      {ClassVolume, "l", "metric", 1, 0},
	"liters": {ClassVolume, "l", "metric", 1, 0},
	"ml":     {ClassVolume, "l", "metric", 0.001, 0},
	"m3":     {ClassVolume, "l", "metric", 1000, 0},
	"gal":    {ClassVolume, "l", "imperial", 3.785411784, 0},
	"qt":     {ClassVolume, "l", "imperial", 0.946352946, 0},
	"pt":     {ClassVolume, "l", "imperial", 0.473176473, 0},
	"floz":   {ClassVolume, "l", "imperial", 0.0295735295625, 0},

	// pressure, canonical pascal
	"pa":   {ClassPressure, "pa", "si", 1, 0},
	"kpa":  {ClassPressure, "pa", "si", 1000, 0},
	"mpa":  {ClassPressure, "pa", "si", 1000000, 0},
	"bar":  {ClassPressure, "pa", "metric", 100000, 0},
	"mbar": {ClassPressure, "pa", "metric", 100, 0},
	"psi":  {ClassPressure, "pa", "imperial", 6894.757293168, 0},
	"atm":  {ClassPressure, "pa", "si", 101325, 0},

	// temperature, canonical celsius; fahrenheit needs the offset term
	"c":          {ClassTemperature, "c", "metric", 1, 0},
	"celsius":    {ClassTemperature, "c", "metric", 1, 0},
	"f":          {ClassTemperature, "c", "imperial", 5.0 / 9.0, -160.0 / 9.0},
	"fahrenheit": {ClassTemperature, "c", "imperial", 5.0 / 9.0, -160.0 / 9.0},
	"k":          {ClassTemperature, "c", "si", 1, -273.15},
	"kelvin":     {ClassTemperature, "c", "si", 1, -273.15},

	// duration, canonical second
	"s":       {ClassDuration, "s", "si", 1, 0},
	"sec":     {ClassDuration, "s", "si", 1, 0},
	"secs":    {ClassDuration, "s", "si", 1, 0},
	"seconds": {ClassDuration, "s", "si", 1, 0},
	"ms":      {ClassDuration, "s", "si", 0.001, 0},
	"min":     {ClassDuration, "s", "si", 60, 0},
	"mins":    {ClassDuration, "s", "si", 60, 0},
	"minutes": {ClassDuration, "s", "si", 60, 0},
	"hr":      {ClassDuration, "s", "si", 3600, 0},
	"hrs":     {ClassDuration, "s", "si", 3600, 0},
	"hours":   {ClassDuration, "s", "si", 3600, 0},
	"days":    {ClassDuration, "s", "si", 86400, 0},

	// speed, canonical meter per second
	"mps":   {ClassSpeed, "mps", "si", 1, 0},
	"kmh":   {ClassSpeed, "mps", "metric", 1.0 / 3.6, 0},
	"kph":   {ClassSpeed, "mps", "metric", 1.0 / 3.6, 0},
	"mph":   {ClassSpeed, "mps", "imperial", 0.44704, 0},
	"knots": {ClassSpeed, "mps", "nautical", 0.514444444, 0},

	// energy, canonical joule
	"j":    {ClassEnergy, "j", "si", 1, 0},
	"kj":   {ClassEnergy, "j", "si", 1000, 0},
	"wh":   {ClassEnergy, "j", "si", 3600, 0},
	"kwh":  {ClassEnergy, "j", "si", 3600000, 0},
	"cal":  {ClassEnergy, "j", "metric", 4.184, 0},
	"kcal": {ClassEnergy, "j", "metric", 4184, 0},

	// percentage, canonical percent
	"pct":     {ClassPercentage, "percent", "none", 1, 0},
	"percent": {ClassPercentage, "percent", "none", 1, 0},

	// currency codes; no cross-currency conversion is attempted
	"usd": {ClassCurrency, "usd", "currency", 1, 0},
	"eur": {ClassCurrency, "eur", "currency", 1, 0},
	"gbp": {ClassCurrency, "gbp", "currency", 1, 0},
	"jpy": {ClassCurrency, "jpy", "currency", 1, 0},
	"cents": {ClassCurrency, "usd", "currency", 0.01, 0},
}

// SemanticClass infers the measure class of a column from its name, or ""
// when no rule matches.
func SemanticClass(colName string) string {
	for _, rule := range semanticRules {
		if rule.re.MatchString(colName) {
			return rule.class
		}
	}
	return ""
}

// unitToken extracts a trailing unit token from a column name, matching on
// underscore boundaries: weight_kg -> kg, temp_f -> f, distance_km -> km.
func unitToken(colName string) (string, unitAlias, bool) {
	parts := strings.Split(strings.ToLower(colName), "_")
	if len(parts) < 2 {
		return "", unitAlias{}, false
	}
	token := parts[len(parts)-1]
	alias, ok := unitAliases[token]
	return token, alias, ok
}

// numericColumn reports whether the column can carry a measured quantity.
func numericColumn(colType string) bool {
	lower := strings.ToLower(colType)
	return containsAny(lower, []string{"int", "numeric", "decimal", "float", "double", "real", "money", "serial", "number"})
}

// InferUnits assigns SemanticClass and UnitContext to a numeric column whose
// name implies a measured quantity. Non-measure columns are left untouched.
func InferUnits(col *schema.ColumnEntry) {
	if !numericColumn(col.Type) {
		return
	}
	class := SemanticClass(col.Name)
	token, alias, hasToken := unitToken(col.Name)

	// A unit suffix alone is enough to establish the class: "reading_kpa"
	// is a pressure even without a pressure keyword.
	if class == "" && hasToken {
		class = alias.class
	}
	if class == "" {
		return
	}
	col.SemanticClass = class

	ctx := &schema.UnitContext{}
	switch {
	case hasToken && alias.class == class:
		ctx.DetectedUnit = token
		ctx.DetectionSource = "column_name_suffix"
		ctx.CanonicalUnit = alias.canonical
		ctx.UnitSystem = alias.system
		ctx.Conversion = &schema.Conversion{Factor: alias.factor, Offset: alias.offset}
		ctx.Confidence = "high"
	case hasToken:
		// Suffix and keyword disagree; report the conflict instead of
		// guessing a conversion.
		ctx.DetectedUnit = token
		ctx.DetectionSource = "column_name_suffix"
		ctx.Confidence = "low"
		ctx.Notes = "unit suffix conflicts with the semantic class implied by the column name"
	default:
		// A class without a detected unit is reported as unknown rather
		// than assuming the canonical unit.
		ctx.DetectedUnit = "unknown"
		ctx.Confidence = "low"
		ctx.Notes = "no unit token in the column name"
	}
	col.UnitContext = ctx
}

var valueUnitRe = regexp.MustCompile(`^\s*-?\d+(?:[.,]\d+)?\s*([a-zA-Z]+)\s*$`)

// unitFromValues finds the unit token dominating sampled values of the form
// "12.5 kg". It needs a strict majority of the sample to agree.
func unitFromValues(values []string) (string, unitAlias, bool) {
	counts := map[string]int{}
	for _, v := range values {
		m := valueUnitRe.FindStringSubmatch(v)
		if m == nil {
			continue
		}
		token := strings.ToLower(m[1])
		if _, ok := unitAliases[token]; ok {
			counts[token]++
		}
	}
	best, bestN := "", 0
	for token, n := range counts {
		if n > bestN || (n == bestN && token < best) {
			best, bestN = token, n
		}
	}
	if bestN*2 <= len(values) {
		return "", unitAlias{}, false
	}
	return best, unitAliases[best], true
}

// InferUnitsFromSamples complements InferUnits for columns that carry the
// unit inside the value itself ("12.5 kg" in a varchar). A name-suffix
// detection is never downgraded; anything weaker is replaced when a single
// known unit token dominates the sample.
func InferUnitsFromSamples(col *schema.ColumnEntry, values []string) {
	if len(values) == 0 {
		return
	}
	if col.UnitContext != nil && col.UnitContext.DetectionSource == "column_name_suffix" {
		return
	}
	token, alias, ok := unitFromValues(values)
	if !ok {
		return
	}
	class := col.SemanticClass
	if class == "" {
		class = SemanticClass(col.Name)
	}
	if class == "" {
		class = alias.class
	}
	if alias.class != class {
		return
	}
	col.SemanticClass = class
	col.UnitContext = &schema.UnitContext{
		DetectedUnit:    token,
		DetectionSource: "sampled_values",
		CanonicalUnit:   alias.canonical,
		UnitSystem:      alias.system,
		Conversion:      &schema.Conversion{Factor: alias.factor, Offset: alias.offset},
		Confidence:      "medium",
		Notes:           "unit token observed in sampled values",
	}
}

// UnitSummary groups the detected units of a table's columns by semantic
// class, sorted for deterministic output. Classes with no unit context are
// omitted, and "unknown" is not an observed unit.
func UnitSummary(cols []*schema.ColumnEntry) map[string][]string {
	byClass := map[string]map[string]bool{}
	for _, col := range cols {
		if col.SemanticClass == "" || col.UnitContext == nil {
			continue
		}
		if col.UnitContext.DetectedUnit == "" || col.UnitContext.DetectedUnit == "unknown" {
			continue
		}
		if byClass[col.SemanticClass] == nil {
			byClass[col.SemanticClass] = map[string]bool{}
		}
		byClass[col.SemanticClass][col.UnitContext.DetectedUnit] = true
	}
	if len(byClass) == 0 {
		return nil
	}
	out := make(map[string][]string, len(byClass))
	for class, units := range byClass {
		list := make([]string, 0, len(units))
		for u := range units {
			list = append(list, u)
		}
		sort.Strings(list)
		out[class] = list
	}
	return out
}
