package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"db-scope/internal/schema"
)

var checkDescriptions = map[string]string{
	schema.CheckControlledValue:   "Low-cardinality text columns without CHECK, ENUM, UNIQUE or FK constraints",
	schema.CheckNullableNeverNull: "Nullable columns that contain no NULLs at all",
	schema.CheckMissingPrimaryKey: "Tables without a primary key",
	schema.CheckMissingForeignKey: "Columns following FK naming patterns without a declared constraint, probed for orphans",
	schema.CheckFormat:            "Text columns where most but not all sampled values share a recognizable format",
	schema.CheckRangeViolation:    "Negative values in pricing and quantity columns",
	schema.CheckDeleteManagement:  "Soft-delete columns, CDC availability and audit-trail tables per table",
	schema.CheckLateArriving:      "Arrival lag between business dates and system insertion timestamps",
	schema.CheckTimezone:          "Effective timezones of temporal columns, per table and database-wide",
	schema.CheckUnitConsistency:   "Unknown, non-canonical or mixed units within a semantic measure class",
}

var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "List the data quality checks the analyzer runs",
	// Listing the battery needs no database; skip the root connection setup.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		for i, check := range schema.CheckKinds {
			fmt.Printf("[%02d] %-28s %s\n", i+1, check, checkDescriptions[check])
		}
	},
}

func init() {
	RootCmd.AddCommand(checksCmd)
}
