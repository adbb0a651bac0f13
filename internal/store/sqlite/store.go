package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"crossguard/internal/store"
	"crossguard/internal/store/model"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// pure-Go driver, registered as "sqlite"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

type SqliteStore struct {
	db *gorm.DB
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	return newSqliteStore(db)
}

// Open opens a gorm handle on the modernc driver.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Dialector{DriverName: driverName, DSN: dsn}, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
}

// NewMemoryStore opens a private in-memory ledger, used by tests and dry runs without db_path.
func NewMemoryStore() (*SqliteStore, error) {
	db, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		return nil, err
	}
	return newSqliteStore(db)
}

func newSqliteStore(db *gorm.DB) (*SqliteStore, error) {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &gormUnitOfWork{tx: tx}, nil
}

// Ping checks the connection and that a write transaction can be opened.
func (s *SqliteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping ledger: %w", err)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Exec("UPDATE daily_risk_counters SET day = day WHERE 1 = 0").Error
	})
}

func (s *SqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormUnitOfWork struct {
	tx *gorm.DB
}

func (u *gormUnitOfWork) Trades() store.TradeRepository       { return NewTradeRepo(u.tx) }
func (u *gormUnitOfWork) FundFlows() store.FundFlowRepository { return NewFundFlowRepo(u.tx) }
func (u *gormUnitOfWork) Intents() store.IntentRepository     { return NewIntentRepo(u.tx) }
func (u *gormUnitOfWork) Drifts() store.DriftRepository       { return NewDriftRepo(u.tx) }
func (u *gormUnitOfWork) Counters() store.CounterRepository   { return NewCounterRepo(u.tx) }
func (u *gormUnitOfWork) Snapshots() store.SnapshotRepository { return NewSnapshotRepo(u.tx) }

func (u *gormUnitOfWork) Commit() error {
	return u.tx.Commit().Error
}

func (u *gormUnitOfWork) Rollback() error {
	return u.tx.Rollback().Error
}
