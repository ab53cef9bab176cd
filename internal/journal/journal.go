// Package journal keeps a write-only audit trail of the order actions the quoter issued.
package journal

import (
	"context"
	"time"

	"swapper/internal/adapter"
	"swapper/internal/bus"
	"swapper/internal/obs"
	"swapper/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

// Actions
const (
	ActionPlace  = "place"
	ActionCancel = "cancel"
)

const _insertTimeout = 5 * time.Second

// Entry is one order action row.
type Entry struct {
	ID            uint      `gorm:"primaryKey"`
	CreatedAt     time.Time `gorm:"index"`
	TraceID       uint64
	Action        string `gorm:"size:16;index"`
	Symbol        string `gorm:"size:32"`
	Side          string `gorm:"size:8"`
	OrderID       int64  `gorm:"index"`
	ClientOrderID string `gorm:"size:64"`
	Price         string `gorm:"size:64"`
	Quantity      string `gorm:"size:64"`
	Status        string `gorm:"size:32"`
}

func (Entry) TableName() string {
	return "order_actions"
}

// NewEntry builds an entry from the exchange's view of the order.
func NewEntry(traceID uint64, action string, o adapter.Order) Entry {
	return Entry{
		TraceID:       traceID,
		Action:        action,
		Symbol:        o.Symbol,
		Side:          o.Side.String(),
		OrderID:       o.ID,
		ClientOrderID: o.ClientOrderID,
		Price:         o.Price.String(),
		Quantity:      o.Quantity.String(),
		Status:        o.Status.String(),
	}
}

// Store persists entries.
type Store interface {
	Insert(ctx context.Context, e Entry) error
}

// GormStore writes entries through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the journal table and returns a store over db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, exception.ErrNilInstance
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, errors.Wrap(err, "migrate order actions")
	}

	return &GormStore{db: db}, nil
}

func (s *GormStore) Insert(ctx context.Context, e Entry) error {
	if err := s.db.WithContext(ctx).Create(&e).Error; err != nil {
		return errors.Wrap(err, "insert order action")
	}
	return nil
}

// Journal buffers entries so recording never blocks the reconciliation loop.
type Journal struct {
	queue   *bus.Queue[Entry]
	store   Store
	metrics *obs.Metrics
	now     func() time.Time
}

// New creates a journal with a queue of the given capacity.
func New(store Store, capacity int, metrics *obs.Metrics) *Journal {
	return &Journal{
		queue:   bus.NewQueue[Entry](capacity),
		store:   store,
		metrics: metrics,
		now:     time.Now,
	}
}

// Record enqueues the entry, dropping it when the queue is full or closed.
func (j *Journal) Record(e Entry) {
	if j == nil {
		return
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.now().UTC()
	}

	if err := j.queue.TryPublish(e); err != nil {
		j.metrics.IncJournalDrop()
		logs.Errorf("drop journal entry, action: %s, order: %d, pending: %d, err: %+v", e.Action, e.OrderID, j.queue.Len(), err)
	}
}

// Run writes queued entries until ctx is done or the journal is closed and drained.
func (j *Journal) Run(ctx context.Context) {
	j.queue.Run(ctx, func(e Entry) {
		insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), _insertTimeout)
		defer cancel()

		if err := j.store.Insert(insertCtx, e); err != nil {
			logs.Errorf("write journal entry, action: %s, order: %d, err: %+v", e.Action, e.OrderID, err)
		}
	})
}

// Close stops accepting entries. Run returns after the queued ones are written.
func (j *Journal) Close() {
	if j == nil {
		return
	}
	j.queue.Close()
}
