// Package audit mirrors published Batches and AcknowledgeBlock calls into a
// SQL table via jinzhu/gorm + go-sql-driver/mysql, purely as a best-effort
// operator-facing ledger -- the db package's KV store remains the sole
// source of truth the tasks themselves read from.
package audit

import (
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"

	"github.com/klaytn/bridgescan/log"
	"github.com/klaytn/bridgescan/primitives"
)

var logger = log.NewModuleLogger(log.ModuleAudit)

// BatchRecord is the gorm model for one published Batch.
type BatchRecord struct {
	ID               uint `gorm:"primary_key"`
	Network          string `gorm:"index"`
	BatchID          uint32
	InstructionCount int
	PublishedAt      time.Time
}

// AcknowledgementRecord is the gorm model for one AcknowledgeBlock call.
type AcknowledgementRecord struct {
	ID            uint `gorm:"primary_key"`
	BlockNumber   uint64 `gorm:"index"`
	AcknowledgedAt time.Time
}

// Ledger writes both record types into a MySQL database. A nil *Ledger
// (NewNoopLedger) makes every method a no-op.
type Ledger struct {
	db *gorm.DB
}

// Open dials dsn (a go-sql-driver/mysql DSN) and migrates both tables.
func Open(dsn string) (*Ledger, error) {
	db, err := gorm.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&BatchRecord{}, &AcknowledgementRecord{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

// NewNoopLedger returns a Ledger whose every method is a no-op, for
// deployments that don't run the audit database.
func NewNoopLedger() *Ledger { return nil }

// RecordBatch inserts a row for a just-published Batch. Failures are
// logged, never returned -- the audit ledger must never block the Report
// task's actual job of publishing.
func (l *Ledger) RecordBatch(batch primitives.Batch) {
	if l == nil {
		return
	}
	rec := BatchRecord{
		Network:          batch.Network,
		BatchID:          batch.Id,
		InstructionCount: len(batch.Instructions),
		PublishedAt:      time.Now(),
	}
	if err := l.db.Create(&rec).Error; err != nil {
		logger.Warn("audit: failed to record batch", "network", batch.Network, "id", batch.Id, "err", err)
	}
}

// RecordAcknowledgement inserts a row for a just-acknowledged block.
func (l *Ledger) RecordAcknowledgement(n primitives.BlockNumber) {
	if l == nil {
		return
	}
	rec := AcknowledgementRecord{BlockNumber: n, AcknowledgedAt: time.Now()}
	if err := l.db.Create(&rec).Error; err != nil {
		logger.Warn("audit: failed to record acknowledgement", "number", n, "err", err)
	}
}

func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}
