package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"db-scope/internal/dialect"
	"db-scope/internal/enrich"
	"db-scope/internal/quality"
	"db-scope/internal/schema"
)

var (
	schemaFlag string
	outputPath string
	sampleRows int
	dryRun     bool
	tables     []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Profile the schema and run the data quality battery",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Config file may carry per-database schema/output settings; flags win.
		if activeConfig, err := GetActiveDBConfig(); err == nil {
			if schemaFlag == "" && activeConfig.Schema != "" {
				SchemaName = activeConfig.Schema
			}
			if outputPath == "schema.json" && activeConfig.Output != "" {
				outputPath = activeConfig.Output
			}
		}
		if schemaFlag != "" {
			SchemaName = schemaFlag
		}

		adapter := dialect.Get(DriverName, Logger)
		connStr := viper.GetString("database.dsn")

		fmt.Printf("🔭 Connected via %s, profiling schema %q\n", DriverName, SchemaName)
		start := time.Now()

		crawler := schema.NewCrawler(DB, adapter, Logger)
		crawler.SampleRows = sampleRows
		crawler.ServerTimezone = adapter.DatabaseTimezone(cmd.Context(), DB)

		uiprogress.Start()
		bar := uiprogress.AddBar(1).AppendCompleted().PrependElapsed()
		current := ""
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return fmt.Sprintf("Profiling %-20s", current)
		})
		crawler.Progress = func(done, total int, table string) {
			current = table
			bar.Total = total
			bar.Set(done)
		}

		crawled, err := crawler.Crawl(cmd.Context(), SchemaName, tables)
		uiprogress.Stop()
		if err != nil {
			return err
		}
		if len(crawled) == 0 {
			Logger.Warn("no tables found to analyze", zap.String("schema", SchemaName))
			return writeJSON(outputPath, &schema.ErrorDocument{Error: "No tables found"})
		}
		schema.SortTables(crawled)

		if dryRun {
			fmt.Printf("🔍 Analysis Results:\n")
			for i, t := range crawled {
				fmt.Printf("[%02d] %s (%d rows, %d columns)\n", i+1, t.Table, t.RowCount, len(t.Columns))
			}
			return nil
		}

		enrich.Apply(crawled)

		Logger.Info("running data quality checks", zap.Int("tables", len(crawled)))
		runner := quality.NewRunner(DB, adapter, adapter.NormalizeSchema(SchemaName), Logger)
		if s := viper.GetInt("rules.sample_size"); s > 0 {
			runner.SampleSize = s
		}
		result := runner.Run(cmd.Context(), crawled)

		doc := quality.BuildDocument(connStr, SchemaName, parseConnection(DriverName, connStr), crawled, result)
		if err := writeJSON(outputPath, doc); err != nil {
			return err
		}

		fmt.Println("\n📊 Summary Report:")
		fmt.Printf("Tables analyzed : %d\n", doc.Metadata.TotalTables)
		fmt.Printf("Total rows      : %d\n", doc.Metadata.TotalRows)
		fmt.Printf("Findings        : %d (critical: %d, warning: %d, info: %d)\n",
			doc.Metadata.TotalFindings, doc.QualitySummary.Critical,
			doc.QualitySummary.Warning, doc.QualitySummary.Info)
		fmt.Println("--------------------------------------------------")
		fmt.Printf("Saved to %s (elapsed: %s)\n", outputPath, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func writeJSON(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// parseConnection extracts host, port and database name from the DSN for the
// report header. URL-style DSNs parse directly; the MySQL DSN needs its
// tcp(host:port) form unpacked.
func parseConnection(driver, connStr string) schema.Connection {
	conn := schema.Connection{Driver: driver}
	if u, err := url.Parse(connStr); err == nil && u.Host != "" {
		conn.Host = u.Hostname()
		conn.Port = u.Port()
		conn.Database = strings.TrimPrefix(u.Path, "/")
		return conn
	}
	if open := strings.Index(connStr, "tcp("); open >= 0 {
		rest := connStr[open+4:]
		if end := strings.Index(rest, ")"); end >= 0 {
			hostPort := rest[:end]
			if i := strings.LastIndex(hostPort, ":"); i >= 0 {
				conn.Host, conn.Port = hostPort[:i], hostPort[i+1:]
			} else {
				conn.Host = hostPort
			}
			if slash := strings.Index(rest[end:], "/"); slash >= 0 {
				db := rest[end+slash+1:]
				if q := strings.Index(db, "?"); q >= 0 {
					db = db[:q]
				}
				conn.Database = db
			}
		}
	}
	return conn
}

func init() {
	RootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&schemaFlag, "schema", "", "Schema to analyze (defaults to the driver's default schema)")
	analyzeCmd.Flags().StringVarP(&outputPath, "output", "o", "schema.json", "Output path for the JSON report")
	analyzeCmd.Flags().IntVar(&sampleRows, "sample", 0, "Attach up to N sample rows per table")
	analyzeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List discovered tables without running checks")
	analyzeCmd.Flags().StringSliceVarP(&tables, "tables", "t", []string{}, "Specific tables to analyze (comma-separated)")

	viper.BindPFlag("database.schema", analyzeCmd.Flags().Lookup("schema"))
	viper.SetDefault("rules.sample_size", 200)
}
