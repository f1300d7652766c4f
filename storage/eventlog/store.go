package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pettrace/core/events"
	"pettrace/core/types"
	"pettrace/native/bounty"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	publishTimeout = 5 * time.Second
)

// Record is one archived event row.
type Record struct {
	ID         uint64  `gorm:"primaryKey;autoIncrement"`
	TxHash     string  `gorm:"size:66;index;uniqueIndex:idx_event_position"`
	Sequence   uint64  `gorm:"index"`
	Position   int     `gorm:"uniqueIndex:idx_event_position"`
	Type       string  `gorm:"size:64;index"`
	ReportID   *uint64 `gorm:"index"`
	Attributes string  `gorm:"type:text"`
	CreatedAt  time.Time
}

// TableName pins the table name independent of the struct name.
func (Record) TableName() string { return "pettrace_events" }

// Event decodes the stored attributes back into the canonical shape.
func (r *Record) Event() (types.Event, error) {
	evt := types.Event{Type: r.Type, Attributes: map[string]string{}}
	if strings.TrimSpace(r.Attributes) == "" {
		return evt, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &evt.Attributes); err != nil {
		return types.Event{}, fmt.Errorf("decode attributes: %w", err)
	}
	return evt, nil
}

// Store is an append-only relational archive of committed events.
type Store struct {
	db *gorm.DB

	// OnFailure is invoked when Publish cannot archive a batch.
	OnFailure func(error)
}

// Open connects to the archive database and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		if strings.TrimSpace(dsn) == "" {
			return nil, errors.New("eventlog: sqlite dsn required")
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if strings.TrimSpace(dsn) == "" {
			return nil, errors.New("eventlog: postgres dsn required")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("eventlog: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("eventlog: nil database")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// AutoMigrate creates or updates the archive tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append archives a batch of committed events in one database transaction.
// Events of a transaction that touched a report are all tagged with that
// report id, so transfers made by a claim are found alongside the claim.
func (s *Store) Append(ctx context.Context, batch []events.Committed) error {
	if len(batch) == 0 {
		return nil
	}
	reports := make(map[string]uint64)
	for i := range batch {
		if id, ok := bounty.ReportIDAttr(&batch[i].Event); ok {
			key := events.FormatHash(batch[i].TxHash)
			if _, seen := reports[key]; !seen {
				reports[key] = id
			}
		}
	}
	now := time.Now().UTC()
	rows := make([]Record, 0, len(batch))
	for _, item := range batch {
		attrs, err := json.Marshal(item.Event.Attributes)
		if err != nil {
			return fmt.Errorf("eventlog: encode attributes: %w", err)
		}
		row := Record{
			TxHash:     events.FormatHash(item.TxHash),
			Sequence:   item.Sequence,
			Position:   item.Index,
			Type:       item.Event.Type,
			Attributes: string(attrs),
			CreatedAt:  now,
		}
		if id, ok := reports[row.TxHash]; ok {
			reportID := id
			row.ReportID = &reportID
		}
		rows = append(rows, row)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
}

// ByReport returns every archived event tied to the report, oldest first.
func (s *Store) ByReport(ctx context.Context, id uint64) ([]Record, error) {
	var rows []Record
	err := s.db.WithContext(ctx).
		Where("report_id = ?", id).
		Order("sequence ASC").
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Publish implements events.Sink. Archive failures are logged and reported
// through OnFailure; they never affect the committed state.
func (s *Store) Publish(batch []events.Committed) {
	if s == nil || len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.Append(ctx, batch); err != nil {
		slog.Error("event archive append failed",
			slog.String("txHash", events.FormatHash(batch[0].TxHash)),
			slog.Int("events", len(batch)),
			slog.Any("error", err))
		if s.OnFailure != nil {
			s.OnFailure(err)
		}
	}
}
