package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-scope/internal/schema"
)

func TestSemanticClass(t *testing.T) {
	cases := map[string]string{
		"weight_kg":        ClassMass,
		"shipping_weight":  ClassMass,
		"height_cm":        ClassLength,
		"distance":         ClassLength,
		"tank_volume":      ClassVolume,
		"tire_pressure":    ClassPressure,
		"temp_f":           ClassTemperature,
		"max_speed":        ClassSpeed,
		"energy_kwh":       ClassEnergy,
		"elapsed_ms":       ClassDuration,
		"discount_pct":     ClassPercentage,
		"unit_price":       ClassCurrency,
		"total_amount":     ClassCurrency,
		"customer_name":    "",
		"quantity_on_hand": "",
	}
	for name, want := range cases {
		assert.Equal(t, want, SemanticClass(name), name)
	}
}

func TestInferUnitsFromSuffix(t *testing.T) {
	c := &schema.ColumnEntry{Name: "weight_lbs", Type: "numeric(8,2)"}
	InferUnits(c)
	require.NotNil(t, c.UnitContext)
	assert.Equal(t, ClassMass, c.SemanticClass)
	assert.Equal(t, "lbs", c.UnitContext.DetectedUnit)
	assert.Equal(t, "kg", c.UnitContext.CanonicalUnit)
	assert.Equal(t, "imperial", c.UnitContext.UnitSystem)
	assert.Equal(t, "column_name_suffix", c.UnitContext.DetectionSource)
	assert.Equal(t, "high", c.UnitContext.Confidence)
	require.NotNil(t, c.UnitContext.Conversion)
	assert.InDelta(t, 0.45359237, c.UnitContext.Conversion.Factor, 1e-9)
	assert.Zero(t, c.UnitContext.Conversion.Offset)
}

func TestInferUnitsConversions(t *testing.T) {
	cases := []struct {
		name   string
		class  string
		factor float64
		offset float64
	}{
		{"length_in", ClassLength, 0.0254, 0},
		{"pressure_psi", ClassPressure, 6894.757293168, 0},
		{"temp_f", ClassTemperature, 5.0 / 9.0, -160.0 / 9.0},
		{"temp_k", ClassTemperature, 1, -273.15},
		{"duration_hrs", ClassDuration, 3600, 0},
		{"speed_mph", ClassSpeed, 0.44704, 0},
		{"energy_kwh", ClassEnergy, 3600000, 0},
	}
	for _, tc := range cases {
		c := &schema.ColumnEntry{Name: tc.name, Type: "double precision"}
		InferUnits(c)
		require.NotNil(t, c.UnitContext, tc.name)
		require.NotNil(t, c.UnitContext.Conversion, tc.name)
		assert.Equal(t, tc.class, c.SemanticClass, tc.name)
		assert.InDelta(t, tc.factor, c.UnitContext.Conversion.Factor, 1e-9, tc.name)
		assert.InDelta(t, tc.offset, c.UnitContext.Conversion.Offset, 1e-9, tc.name)
	}
}

func TestInferUnitsSuffixOnly(t *testing.T) {
	// No class keyword, but the suffix alone identifies the measure.
	c := &schema.ColumnEntry{Name: "reading_kpa", Type: "numeric(8,2)"}
	InferUnits(c)
	require.NotNil(t, c.UnitContext)
	assert.Equal(t, ClassPressure, c.SemanticClass)
	assert.Equal(t, "kpa", c.UnitContext.DetectedUnit)
	assert.Equal(t, "high", c.UnitContext.Confidence)
}

func TestInferUnitsNoSuffixUnknown(t *testing.T) {
	// A measure-like name without a unit token gets no assumed unit.
	c := &schema.ColumnEntry{Name: "package_weight", Type: "numeric(8,2)"}
	InferUnits(c)
	require.NotNil(t, c.UnitContext)
	assert.Equal(t, ClassMass, c.SemanticClass)
	assert.Equal(t, "unknown", c.UnitContext.DetectedUnit)
	assert.Equal(t, "low", c.UnitContext.Confidence)
	assert.Nil(t, c.UnitContext.Conversion)
}

func TestInferUnitsConflict(t *testing.T) {
	// Name says weight, suffix says kilometers.
	c := &schema.ColumnEntry{Name: "weight_km", Type: "numeric(8,2)"}
	InferUnits(c)
	require.NotNil(t, c.UnitContext)
	assert.Equal(t, ClassMass, c.SemanticClass)
	assert.Equal(t, "low", c.UnitContext.Confidence)
	assert.Nil(t, c.UnitContext.Conversion)
}

func TestInferUnitsCurrencyUnknown(t *testing.T) {
	c := &schema.ColumnEntry{Name: "total_amount", Type: "numeric(12,2)"}
	InferUnits(c)
	require.NotNil(t, c.UnitContext)
	assert.Equal(t, ClassCurrency, c.SemanticClass)
	assert.Equal(t, "unknown", c.UnitContext.DetectedUnit)
	assert.Equal(t, "low", c.UnitContext.Confidence)
}

func TestInferUnitsSkipsNonNumeric(t *testing.T) {
	c := &schema.ColumnEntry{Name: "weight_kg", Type: "varchar(20)"}
	InferUnits(c)
	assert.Empty(t, c.SemanticClass)
	assert.Nil(t, c.UnitContext)
}

func TestInferUnitsFromSamples(t *testing.T) {
	c := &schema.ColumnEntry{Name: "weight", Type: "varchar(20)"}
	InferUnits(c) // non-numeric type, no-op
	require.Nil(t, c.UnitContext)
	InferUnitsFromSamples(c, []string{"12.5 kg", "3 kg", "8kg", "n/a"})
	require.NotNil(t, c.UnitContext)
	assert.Equal(t, ClassMass, c.SemanticClass)
	assert.Equal(t, "kg", c.UnitContext.DetectedUnit)
	assert.Equal(t, "sampled_values", c.UnitContext.DetectionSource)
	assert.Equal(t, "medium", c.UnitContext.Confidence)
}

func TestInferUnitsFromSamplesKeepsSuffix(t *testing.T) {
	c := &schema.ColumnEntry{Name: "weight_lbs", Type: "numeric(8,2)"}
	InferUnits(c)
	InferUnitsFromSamples(c, []string{"12 kg", "3 kg", "8 kg"})
	assert.Equal(t, "lbs", c.UnitContext.DetectedUnit, "a name suffix is never downgraded")
}

func TestInferUnitsFromSamplesClassConflict(t *testing.T) {
	// Name implies mass, values carry a length unit; no guess is made.
	c := &schema.ColumnEntry{Name: "weight", Type: "varchar(20)"}
	InferUnitsFromSamples(c, []string{"10 km", "4 km"})
	assert.Nil(t, c.UnitContext)
}

func TestInferUnitsFromSamplesNeedsMajority(t *testing.T) {
	c := &schema.ColumnEntry{Name: "reading", Type: "varchar(20)"}
	InferUnitsFromSamples(c, []string{"5 kpa", "high", "low", "n/a"})
	assert.Nil(t, c.UnitContext, "one match in four values is not enough")
}

func TestUnitSummary(t *testing.T) {
	cols := []*schema.ColumnEntry{
		{Name: "weight_kg", Type: "numeric"},
		{Name: "net_weight_lbs", Type: "numeric"},
		{Name: "height_cm", Type: "numeric"},
		{Name: "note", Type: "text"},
	}
	for _, c := range cols {
		InferUnits(c)
	}
	got := UnitSummary(cols)
	require.NotNil(t, got)
	assert.Equal(t, []string{"kg", "lbs"}, got[ClassMass])
	assert.Equal(t, []string{"cm"}, got[ClassLength])
}

func TestUnitSummarySkipsUnknown(t *testing.T) {
	cols := []*schema.ColumnEntry{
		{Name: "weight_kg", Type: "numeric"},
		{Name: "package_weight", Type: "numeric"},
	}
	for _, c := range cols {
		InferUnits(c)
	}
	got := UnitSummary(cols)
	require.NotNil(t, got)
	assert.Equal(t, []string{"kg"}, got[ClassMass], "an undetermined unit is not a second unit")
}
