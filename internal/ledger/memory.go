package ledger

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// MemoryStore keeps the ledger in process memory. Entries do not survive a
// restart. Intended for tests and single-shot deployments.
type MemoryStore struct {
	entries *xsync.Map[string, Record]
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: xsync.NewMap[string, Record](), now: time.Now}
}

func (m *MemoryStore) Reserve(_ context.Context, rec Record) (Record, bool, error) {
	if err := validID(rec.WebhookID); err != nil {
		return Record{}, false, err
	}
	rec.Response = nil
	rec.ProcessedAt = time.Time{}
	if rec.ReservedAt.IsZero() {
		rec.ReservedAt = m.now().UTC()
	}
	actual, loaded := m.entries.LoadOrStore(rec.WebhookID, rec)
	if loaded {
		return actual, false, nil
	}
	return actual, true, nil
}

func (m *MemoryStore) MarkProcessed(_ context.Context, webhookID string, response []byte) error {
	var opErr error
	m.entries.Compute(webhookID, func(old Record, loaded bool) (Record, xsync.ComputeOp) {
		switch {
		case !loaded:
			opErr = ErrNotFound
			return old, xsync.CancelOp
		case !old.Pending():
			opErr = ErrAlreadyProcessed
			return old, xsync.CancelOp
		}
		old.Response = append([]byte(nil), response...)
		old.ProcessedAt = m.now().UTC()
		return old, xsync.UpdateOp
	})
	return opErr
}

func (m *MemoryStore) Release(_ context.Context, webhookID string) error {
	m.entries.Compute(webhookID, func(old Record, loaded bool) (Record, xsync.ComputeOp) {
		if loaded && old.Pending() {
			return old, xsync.DeleteOp
		}
		return old, xsync.CancelOp
	})
	return nil
}

func (m *MemoryStore) Lookup(_ context.Context, webhookID string) (Record, error) {
	rec, ok := m.entries.Load(webhookID)
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) Close() error { return nil }
