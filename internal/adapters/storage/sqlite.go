package storage

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
)

// inChunk bounds the size of IN lists sent to the database.
const inChunk = 500

// Adapter implements every storage port on top of GORM. SQLite and
// PostgreSQL share the same models.
type Adapter struct {
	db *gorm.DB
}

var (
	_ ports.CatalogRepository      = (*Adapter)(nil)
	_ ports.SubscriptionRepository = (*Adapter)(nil)
	_ ports.CVERepository          = (*Adapter)(nil)
	_ ports.CycleStore             = (*Adapter)(nil)
	_ ports.AuditRepository        = (*Adapter)(nil)
	_ ports.Store                  = (*Adapter)(nil)
)

// Open connects to the database and migrates the schema.
func Open(driver, dsn string) (*Adapter, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}

	if dialector.Name() == "sqlite" {
		// SQLite allows a single writer; a shared connection also keeps
		// :memory: databases alive across queries.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return NewAdapter(db)
}

// NewAdapter migrates the schema on an existing connection.
func NewAdapter(db *gorm.DB) (*Adapter, error) {
	if err := db.AutoMigrate(
		&VendorModel{},
		&ProductModel{},
		&CategoryModel{},
		&UserModel{},
		&CVEModel{},
		&CVEMatchKeyModel{},
		&ReportModel{},
		&FeedRecordModel{},
		&ChangeModel{},
		&AlertModel{},
		&AuditLogModel{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_feed_records_unprocessed ON feed_records(processed, id)",
		"CREATE INDEX IF NOT EXISTS idx_changes_pending ON changes(dispatched, id)",
		"CREATE INDEX IF NOT EXISTS idx_alerts_undelivered ON alerts(user_id, delivered_at)",
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return nil, fmt.Errorf("migrate: create index: %w", err)
		}
	}

	return &Adapter{db: db}, nil
}

func (a *Adapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection, for health probes.
func (a *Adapter) Ping() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// translate maps driver errors onto domain errors.
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func chunks(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
