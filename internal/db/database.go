package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/pinechat-backend/internal/config"
	"github.com/yungbote/pinechat-backend/internal/logger"
	"github.com/yungbote/pinechat-backend/internal/types"
)

type DatabaseService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewDatabaseService opens the configured database (sqlite or postgres) for
// the database-backed conversation store.
func NewDatabaseService(cfg *config.Config, log *logger.Logger) (*DatabaseService, error) {
	serviceLog := log.With("service", "DatabaseService")

	var dialector gorm.Dialector
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		serviceLog.Info("Connecting to SQLite...", "path", cfg.Storage.SQLitePath)
		dialector = sqlite.Open(cfg.Storage.SQLitePath)
	case config.DriverPostgres:
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.Storage.PostgresUser,
			cfg.Storage.PostgresPassword,
			cfg.Storage.PostgresHost,
			cfg.Storage.PostgresPort,
			cfg.Storage.PostgresName,
		)
		serviceLog.Info("Connecting to Postgres...", "host", cfg.Storage.PostgresHost, "db", cfg.Storage.PostgresName)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("storage driver %q is not database-backed", cfg.Storage.Driver)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		serviceLog.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("connect to %s: %w", cfg.Storage.Driver, err)
	}
	return &DatabaseService{db: gormDB, log: serviceLog}, nil
}

func (s *DatabaseService) AutoMigrateAll() error {
	s.log.Info("Auto migrating conversation tables...")
	if err := s.db.AutoMigrate(&types.ConversationRecord{}); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}

func (s *DatabaseService) DB() *gorm.DB { return s.db }
