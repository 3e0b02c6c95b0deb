package dbmysql

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"revline/internal/config"
)

// Models lists every table owned by the messaging core, in migration order.
func Models() []interface{} {
	return []interface{}{
		&UserProfile{},
		&UserFollow{},
		&Conversation{},
		&Participant{},
		&Message{},
		&Notification{},
		&Device{},
	}
}

// NewDatabase returns a GORM DB instance connected to the configured relational store
func NewDatabase(cnf *config.Config) (*gorm.DB, error) {
	dsn := cnf.DSN()
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is not set")
	}

	var dialector gorm.Dialector
	switch cnf.Database.Driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		dialector = mysql.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:      logger.Default.LogMode(gormLogLevel(cnf.Logging.Level)),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %w", cnf.Database.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql.DB error: %w", err)
	}
	sqlDB.SetMaxOpenConns(cnf.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cnf.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if cnf.Database.AutoMigrate {
		if err := db.AutoMigrate(Models()...); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	log.Info().Str("driver", cnf.Database.Driver).Str("database", cnf.Database.DatabaseName).Msg("connected to relational store")

	return db, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug", "trace":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error", "fatal", "panic":
		return logger.Error
	default:
		return logger.Silent
	}
}
