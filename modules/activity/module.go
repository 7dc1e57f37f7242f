package activity

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-monolith/mono"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module owns the activity store and service. The backend is selected by
// environment: DATABASE_URL switches to Postgres, otherwise a local
// SQLite file is used.
type Module struct {
	db      *gorm.DB
	pool    *pgxpool.Pool
	service *Service
	dbPath  string
	dbURL   string
	cfg     Config
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the activity module with environment configuration.
func NewModule() *Module {
	dbPath := os.Getenv("WKD_DB_PATH")
	if dbPath == "" {
		dbPath = "activity.db"
	}
	cfg := DefaultConfig()
	if label := os.Getenv("WKD_REDACTED_LABEL"); label != "" {
		cfg.RedactedFallback = label
	}
	return &Module{
		dbPath: dbPath,
		dbURL:  os.Getenv("DATABASE_URL"),
		cfg:    cfg,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "activity"
}

// Service returns the activity service. Valid after Start.
func (m *Module) Service() *Service {
	return m.service
}

// Start opens the store, runs migrations, and builds the service.
func (m *Module) Start(ctx context.Context) error {
	var repo Repository
	if m.dbURL != "" {
		log.Println("[activity] Connecting to Postgres")
		pool, err := pgxpool.New(ctx, m.dbURL)
		if err != nil {
			return fmt.Errorf("failed to create pool: %w", err)
		}
		repo, err = NewPgRepository(ctx, pool)
		if err != nil {
			pool.Close()
			return err
		}
		m.pool = pool
	} else {
		log.Printf("[activity] Connecting to SQLite database: %s", m.dbPath)
		logLevel := logger.Silent
		if os.Getenv("DB_DEBUG") == "true" {
			logLevel = logger.Info
		}
		db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logLevel),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := Migrate(db); err != nil {
			return err
		}
		m.db = db
		repo = NewGormRepository(db)
	}

	m.service = NewService(repo, m.cfg)
	log.Println("[activity] Module started successfully")
	return nil
}

// Stop closes the store.
func (m *Module) Stop(_ context.Context) error {
	if m.pool != nil {
		log.Println("[activity] Closing Postgres pool...")
		m.pool.Close()
	}
	if m.db != nil {
		log.Println("[activity] Closing database connection...")
		sqlDB, err := m.db.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}

// Health performs a health check on the activity store.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	switch {
	case m.pool != nil:
		if err := m.pool.Ping(ctx); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("database ping failed: %v", err),
			}
		}
		return mono.HealthStatus{
			Healthy: true,
			Message: "operational",
			Details: map[string]any{"driver": "pgx/v5"},
		}
	case m.db != nil:
		sqlDB, err := m.db.DB()
		if err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("failed to get sql.DB: %v", err),
			}
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("database ping failed: %v", err),
			}
		}
		return mono.HealthStatus{
			Healthy: true,
			Message: "operational",
			Details: map[string]any{"driver": "sqlite", "path": m.dbPath},
		}
	default:
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}
}
