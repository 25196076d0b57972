package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ropatopia/internal/model"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Options selects the driver. DSN is used for mysql, Path for sqlite.
type Options struct {
	Driver string
	DSN    string
	Path   string
	Debug  bool
}

func New(ctx context.Context, opts Options) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if opts.Debug {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		db  *gorm.DB
		err error
	)
	switch opts.Driver {
	case DriverMySQL:
		db, err = gorm.Open(mysql.Open(opts.DSN), gormCfg)
	case DriverSQLite, "":
		if opts.Path != ":memory:" {
			if mkErr := os.MkdirAll(filepath.Dir(opts.Path), 0o755); mkErr != nil {
				return nil, fmt.Errorf("create sqlite dir failed: %w", mkErr)
			}
		}
		db, err = gorm.Open(sqlite.Open(opts.Path), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s failed: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db failed: %w", err)
	}

	if opts.Driver == DriverMySQL {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(1 * time.Hour)
		sqlDB.SetConnMaxIdleTime(30 * time.Minute)
	} else {
		// sqlite allows one writer at a time.
		sqlDB.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping database failed: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.BulkJob{}); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}
