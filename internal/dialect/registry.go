package dialect

import (
	"sort"

	"go.uber.org/zap"
)

// Constructor builds an Adapter bound to the given logger.
type Constructor func(log *zap.Logger) Adapter

var registry = map[string]Constructor{}

// Register binds a driver name to an adapter constructor. Called from the
// adapter init functions; later registrations win, so callers may override.
func Register(driver string, ctor Constructor) {
	registry[driver] = ctor
}

// Get returns an adapter for the driver name, or nil when the dialect is
// unsupported.
func Get(driver string, log *zap.Logger) Adapter {
	if ctor, ok := registry[driver]; ok {
		return ctor(log)
	}
	return nil
}

// Supported lists the registered driver names in stable order.
func Supported() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("postgres", func(log *zap.Logger) Adapter { return &PostgresAdapter{log: log} })
	Register("sqlserver", func(log *zap.Logger) Adapter { return &MSSQLAdapter{log: log} })
	Register("mssql", func(log *zap.Logger) Adapter { return &MSSQLAdapter{log: log} })
	Register("oracle", func(log *zap.Logger) Adapter { return &OracleAdapter{log: log} })
	Register("mysql", func(log *zap.Logger) Adapter { return &MySQLAdapter{log: log} })
}

// Ensure interface implementation
var _ Adapter = (*PostgresAdapter)(nil)
var _ Adapter = (*MSSQLAdapter)(nil)
var _ Adapter = (*OracleAdapter)(nil)
var _ Adapter = (*MySQLAdapter)(nil)
