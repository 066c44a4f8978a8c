package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"db-scope/internal/dialect"
)

var (
	dsn        string
	cfgFile    string
	DB         *sql.DB
	DriverName string // "postgres", "sqlserver", "oracle" or "mysql"
	SchemaName string
	Logger     *zap.Logger
)

var RootCmd = &cobra.Command{
	Use:   "db-scope",
	Short: "A database profiling tool",
	Long: `
  ____  ____    ____   ____ ___  ____  _____
 |  _ \| __ )  / ___| / ___/ _ \|  _ \| ____|
 | | | |  _ \  \___ \| |  | | | | |_) |  _|
 | |_| | |_) |  ___) | |__| |_| |  __/| |___
 |____/|____/  |____/ \____\___/|_|   |_____|

DB SCOPE 🔭 - Schema Profiler & Data Quality Analyzer
`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		Logger, err = buildLogger()
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}

		// Viper precedence: flag > config > default
		connStr := viper.GetString("database.dsn")
		if connStr == "" {
			return fmt.Errorf("database.dsn is required (via flag or config)")
		}

		configDriver := viper.GetString("database.driver")
		if configDriver != "" {
			DriverName = configDriver
		} else {
			DriverName = detectDriver(connStr)
		}
		if dialect.Get(DriverName, Logger) == nil {
			return fmt.Errorf("unsupported driver %q (supported: %s)",
				DriverName, strings.Join(dialect.Supported(), ", "))
		}

		DB, err = sql.Open(DriverName, connStr)
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		DB.SetMaxOpenConns(15)
		DB.SetMaxIdleConns(5)
		DB.SetConnMaxLifetime(30 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := DB.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to connect to db: %w", err)
		}

		// Schema precedence: flag/config > driver default
		SchemaName = viper.GetString("database.schema")
		if SchemaName == "" {
			SchemaName = dialect.Get(DriverName, Logger).ResolveDefaultSchema(ctx, DB)
		}
		if SchemaName == "" {
			return fmt.Errorf("could not resolve a schema; set database.schema in config or use --schema")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			DB.Close()
		}
		if Logger != nil {
			Logger.Sync()
		}
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func buildLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// detectDriver guesses the driver from the DSN shape when none is configured.
func detectDriver(connStr string) string {
	switch {
	case strings.HasPrefix(connStr, "postgres://"), strings.HasPrefix(connStr, "postgresql://"), strings.Contains(connStr, "sslmode"):
		return "postgres"
	case strings.HasPrefix(connStr, "sqlserver://"), strings.Contains(connStr, "server="):
		return "sqlserver"
	case strings.HasPrefix(connStr, "oracle://"):
		return "oracle"
	default:
		return "mysql"
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-scope.yaml)")
	RootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Database Source Name (DSN)")
	RootCmd.PersistentFlags().Bool("verbose", false, "verbose logging")

	viper.BindPFlag("database.dsn", RootCmd.PersistentFlags().Lookup("dsn"))
	viper.BindPFlag("verbose", RootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}
		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("db-scope")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
