package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/cpleditor/internal/config"
)

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.AuditConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverMemory, "":
		return NewMemoryStore(cfg.MemoryCapacity), nil
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.DSN)
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN, cfg.MaxConns)
	default:
		return nil, fmt.Errorf("unknown audit driver: %q", cfg.Driver)
	}
}
