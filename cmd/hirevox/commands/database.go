package commands

import (
	"database/sql"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/db"
	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/logger"
)

// openDatabase opens and migrates the call ledger database. An empty
// path falls back to the configured one.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		cfg, err := am.Load()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
		dbPath = cfg.Database.Path
	}

	database, err := db.Open(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}

	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrapf(err, "failed to run migrations on %s", dbPath)
	}

	return database, nil
}
