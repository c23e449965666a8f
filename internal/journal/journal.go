// Package journal persists executions and order outcomes to Postgres for
// end-of-day review. Writes are best effort: a journal failure is logged
// and never blocks the trading path. A nil Journal is a no-op, so callers
// wire it unconditionally.
package journal

import (
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"main/internal/exec"
	"main/internal/schema"
	"main/pkg/conn"
)

// FillRecord is one execution row.
type FillRecord struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID    uint64 `gorm:"index"`
	Instrument string `gorm:"index;size:64"`
	Side       string `gorm:"size:8"`
	Qty        int64
	Price      int64
	FilledAt   time.Time
	CreatedAt  time.Time
}

// OutcomeRecord is one terminal order state row.
type OutcomeRecord struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID      uint64 `gorm:"index"`
	Instrument   string `gorm:"index;size:64"`
	Side         string `gorm:"size:8"`
	State        string `gorm:"size:16"`
	RemainingQty int64
	LimitPrice   int64
	RepriceCount int
	ClosedAt     time.Time
	CreatedAt    time.Time
}

// Journal writes trade records through a gorm connection.
type Journal struct {
	client *conn.Client
}

// Open connects to the journal database and migrates the schema. An empty
// dsn returns a nil Journal, which disables journaling.
func Open(dsn string) (*Journal, error) {
	if dsn == "" {
		return nil, nil
	}
	client, err := conn.New(conn.Option{
		ConnString:     dsn,
		AppName:        "spx-terminal",
		ConnectTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open journal db")
	}
	if err := client.DB().AutoMigrate(&FillRecord{}, &OutcomeRecord{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate journal schema")
	}
	return &Journal{client: client}, nil
}

// Close releases the database connection.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.client.Close()
}

// RecordFill persists one execution.
func (j *Journal) RecordFill(fill schema.Fill) {
	if j == nil {
		return
	}
	rec := FillRecord{
		OrderID:    fill.OrderID,
		Instrument: fill.Instrument.String(),
		Side:       fill.Side.String(),
		Qty:        int64(fill.Qty),
		Price:      int64(fill.Price),
		FilledAt:   fill.Time,
	}
	if err := j.db().Create(&rec).Error; err != nil {
		logs.Errorf("journal fill write failed, orderId: %d, err: %+v", fill.OrderID, err)
	}
}

// RecordOutcome persists one terminal order state.
func (j *Journal) RecordOutcome(o exec.Outcome) {
	if j == nil {
		return
	}
	rec := OutcomeRecord{
		OrderID:      o.OrderID,
		Instrument:   o.Instrument.String(),
		Side:         o.Side.String(),
		State:        o.State.String(),
		RemainingQty: int64(o.RemainingQty),
		LimitPrice:   int64(o.LimitPrice),
		RepriceCount: o.RepriceCount,
		ClosedAt:     o.Time,
	}
	if err := j.db().Create(&rec).Error; err != nil {
		logs.Errorf("journal outcome write failed, orderId: %d, err: %+v", o.OrderID, err)
	}
}

func (j *Journal) db() *gorm.DB {
	return j.client.DB()
}
