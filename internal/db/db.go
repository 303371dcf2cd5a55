package db

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/retroboard/internal/config"
	"github.com/sujalbistaa/retroboard/internal/store"
)

// sqlitePragmas keeps the single writer from failing fast under contention.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// Init opens the database named by cfg.URL and runs migrations.
// URL is sqlite://<path> or postgres://<dsn>.
func Init(cfg config.DatabaseConfig, debug bool, log *slog.Logger) (*gorm.DB, error) {
	var (
		dialector gorm.Dialector
		isSQLite  bool
	)

	switch {
	case strings.HasPrefix(cfg.URL, "postgres://"):
		dialector = postgres.Open(cfg.URL)
		log.Info("connecting to postgres")
	case strings.HasPrefix(cfg.URL, "sqlite://"):
		path := strings.TrimPrefix(cfg.URL, "sqlite://")
		dialector = sqlite.Open(sqliteDSN(path))
		isSQLite = true
		log.Info("connecting to sqlite", slog.String("path", path))
	default:
		return nil, fmt.Errorf("invalid database url %q: must start with postgres:// or sqlite://", cfg.URL)
	}

	level := logger.Silent
	if debug {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if isSQLite {
		// SQLite allows one writer; a single connection also keeps :memory: databases shared.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := store.Migrate(db); err != nil {
		return nil, err
	}

	log.Info("database connection established")
	return db, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + sqlitePragmas
	}
	return path + "?" + sqlitePragmas
}
