package store

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

// DefaultSQLitePath is used when the sqlite driver has no dsn or path.
const DefaultSQLitePath = "cinescope.db"

// Options selects and configures a backend.
type Options struct {
	Driver string
	// DSN is the postgres connection string or the sqlite file/dsn.
	DSN string
	// Path is the badger directory, or the sqlite file when DSN is empty.
	Path string
}

// Open builds the configured backend.
func Open(opts Options, logger zerolog.Logger) (Store, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		dsn := opts.DSN
		if dsn == "" {
			dsn = opts.Path
		}
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		db, err := openGorm(sqlite.Open(dsn))
		if err != nil {
			return nil, err
		}
		if dsn == ":memory:" {
			// each connection would otherwise see its own empty database
			sqlDB, err := db.DB()
			if err != nil {
				return nil, err
			}
			sqlDB.SetMaxOpenConns(1)
		}
		logger.Debug().Str("driver", DriverSQLite).Str("dsn", dsn).Msg("Opened store")
		return NewGormStore(db)

	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("store dsn is required for the postgres driver")
		}
		db, err := openGorm(postgres.Open(opts.DSN))
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("driver", DriverPostgres).Msg("Opened store")
		return NewGormStore(db)

	case DriverBadger:
		if opts.Path == "" {
			return nil, fmt.Errorf("store path is required for the badger driver")
		}
		db, err := OpenBadger(opts.Path, logger)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("driver", DriverBadger).Str("path", opts.Path).Msg("Opened store")
		return NewBadgerStore(db), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, opts.Driver)
	}
}

func openGorm(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
