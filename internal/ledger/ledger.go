// Package ledger records processed webhook deliveries so redeliveries can be
// detected and answered from the stored response.
//
// A delivery is first reserved, atomically, under its webhook id. The caller
// that wins the reservation processes the event and then finalizes the entry
// with the serialized response exactly once. Finalized entries are never
// modified or removed.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/xxh3"
)

var (
	// ErrNotFound means no entry exists for the webhook id.
	ErrNotFound = errors.New("ledger: webhook not found")
	// ErrAlreadyProcessed means the entry was finalized before.
	ErrAlreadyProcessed = errors.New("ledger: webhook already processed")
)

// Record is one ledger entry. Response is nil while the entry is pending.
type Record struct {
	WebhookID   string          `json:"webhookId"`
	EntityType  string          `json:"entityType,omitempty"`
	EntityID    string          `json:"entityId,omitempty"`
	ChangeType  string          `json:"changeType,omitempty"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	ReservedAt  time.Time       `json:"reservedAt"`
	ProcessedAt time.Time       `json:"processedAt,omitzero"`
}

// Pending reports whether the entry is reserved but not yet finalized.
func (r Record) Pending() bool { return r.Response == nil }

// Store is implemented by every ledger backend. All methods are safe for
// concurrent use.
type Store interface {
	// Reserve claims rec.WebhookID. reserved is true for exactly one caller
	// per id; every other caller gets the existing entry back.
	Reserve(ctx context.Context, rec Record) (existing Record, reserved bool, err error)
	// MarkProcessed finalizes a pending entry with the serialized response.
	MarkProcessed(ctx context.Context, webhookID string, response []byte) error
	// Release drops a pending reservation so a later delivery can retry.
	// Finalized entries are left untouched.
	Release(ctx context.Context, webhookID string) error
	Lookup(ctx context.Context, webhookID string) (Record, error)
	Close() error
}

// IsDuplicate reports whether webhookID already has an entry.
func IsDuplicate(ctx context.Context, s Store, webhookID string) (bool, error) {
	_, err := s.Lookup(ctx, webhookID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Fingerprint is a short content hash of a webhook body, kept with the entry
// to spot redeliveries whose payload changed.
func Fingerprint(body []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(body))
}

func validID(id string) error {
	if id == "" {
		return errors.New("ledger: empty webhook id")
	}
	return nil
}
