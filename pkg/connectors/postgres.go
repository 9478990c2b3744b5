package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/jjpp222/tutor-aleman-backend/config"
	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresConnector hands out the shared gorm handle. Constructed once in main
// and injected everywhere a store needs the database.
type PostgresConnector interface {
	DB(ctx context.Context) *gorm.DB
	Ping(ctx context.Context) error
	Close() error
}

type postgresConnector struct {
	db     *gorm.DB
	logger commons.Logger
}

func NewPostgresConnector(cfg *config.AppConfig, logger commons.Logger) (PostgresConnector, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.PostgresConfig.Host,
		cfg.PostgresConfig.Port,
		cfg.PostgresConfig.User,
		cfg.PostgresConfig.Password,
		cfg.PostgresConfig.DbName,
		cfg.PostgresConfig.SslMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unable to access underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.PostgresConfig.MaxOpenConnection)
	sqlDB.SetMaxIdleConns(cfg.PostgresConfig.MaxIdealConnection)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Infof("postgres connected: host=%s db=%s", cfg.PostgresConfig.Host, cfg.PostgresConfig.DbName)
	return &postgresConnector{db: db, logger: logger}, nil
}

func (p *postgresConnector) DB(ctx context.Context) *gorm.DB {
	return p.db.WithContext(ctx)
}

func (p *postgresConnector) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (p *postgresConnector) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
