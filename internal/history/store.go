package history

import (
	"fmt"

	"github.com/dermascan-server/internal/domain"
)

// New picks a store for the configured driver. databaseURL is only used by
// the postgres driver. A "none" driver returns a nil store.
func New(cfg domain.HistoryConfig, dbCfg domain.DatabaseConfig, databaseURL string) (Store, error) {
	switch cfg.Driver {
	case "none":
		return nil, nil
	case "", "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "data/history.db"
		}
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgresStoreFromURL(databaseURL, dbCfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported history driver %q", cfg.Driver)
	}
}
