// Package journal persists committed ledger events to SQL so operators can
// audit activity and track which authorizations have been honoured.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"stakeledger/core/events"
	"stakeledger/core/txn"
)

// Entry is one committed event.
type Entry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Height     uint64    `gorm:"index"`
	Root       string    `gorm:"size:66"`
	Position   int
	Type       string `gorm:"index;size:64"`
	Account    string `gorm:"index;size:64"`
	Asset      string `gorm:"size:64"`
	Amount     string `gorm:"size:80"`
	Via        string `gorm:"size:16"`
	Digest     string `gorm:"index;size:66"`
	Attributes string `gorm:"type:text"`
	CreatedAt  time.Time
}

func (Entry) TableName() string { return "ledger_events" }

// Journal is an events.Emitter backed by gorm.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time
}

// Open connects to dsn. DSNs starting with postgres:// or postgresql:// use
// the Postgres driver; anything else is handed to SQLite.
func Open(dsn string, logger *slog.Logger) (*Journal, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("journal: dsn required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return New(db, logger)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB, logger *slog.Logger) (*Journal, error) {
	if db == nil {
		return nil, errors.New("journal: db required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db, logger: logger, nowFn: time.Now}, nil
}

// Emit records evt. Envelopes contribute their height, root and position;
// events that cannot be flattened into attributes are skipped.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || evt == nil {
		return
	}
	entry, ok := j.entryFor(evt)
	if !ok {
		return
	}
	if err := j.db.Create(&entry).Error; err != nil {
		j.logger.Error("journal write failed",
			slog.String("type", entry.Type),
			slog.Uint64("height", entry.Height),
			slog.Any("error", err))
	}
}

func (j *Journal) entryFor(evt events.Event) (Entry, bool) {
	entry := Entry{ID: uuid.New(), CreatedAt: j.nowFn().UTC()}
	payload := evt
	if env, ok := evt.(txn.Envelope); ok {
		entry.Height = env.Height
		entry.Root = env.Root.Hex()
		entry.Position = env.Index
		payload = env.Payload
	}
	conv, ok := payload.(events.Convertible)
	if !ok {
		return Entry{}, false
	}
	flat := conv.Event()
	if flat == nil {
		return Entry{}, false
	}
	entry.Type = flat.Type
	entry.Account = flat.Attr("account")
	entry.Asset = flat.Attr("asset")
	entry.Amount = flat.Attr("amount")
	entry.Via = flat.Attr("via")
	entry.Digest = flat.Attr("digest")
	if raw, err := json.Marshal(flat.Attributes); err == nil {
		entry.Attributes = string(raw)
	}
	return entry, true
}

// Uses returns how many committed operations honoured digest.
func (j *Journal) Uses(ctx context.Context, digest common.Hash) (int64, error) {
	var count int64
	err := j.db.WithContext(ctx).Model(&Entry{}).Where("digest = ?", digest.Hex()).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("journal: count digest: %w", err)
	}
	return count, nil
}

// Filter narrows Entries. Zero fields match everything.
type Filter struct {
	Type    string
	Account string
	Limit   int
}

// Entries returns matching rows, newest first.
func (j *Journal) Entries(ctx context.Context, filter Filter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := j.db.WithContext(ctx).Model(&Entry{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Account != "" {
		query = query.Where("account = ?", filter.Account)
	}
	var out []Entry
	if err := query.Order("height DESC").Order("position DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
