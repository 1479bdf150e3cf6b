/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ledger is the shop-side store of customer loyalty state: a current snapshot
// per customer plus an append-only event log.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/trustbloc/edge-core/pkg/storage"

	"github.com/loyaltybloc/loyalty-adapter/pkg/tier"
)

const (
	storeName = "ledger"

	snapshotKeyFmt = "snapshot_%s"
	eventsKeyFmt   = "events_%s"

	// PointsPerUnit is the fixed purchase-to-points conversion: one point per ten
	// currency units spent, rounded down.
	PointsPerUnit = 10
)

// ErrInsufficientAmount is returned when a purchase is too small to earn any points.
// Callers can distinguish "nothing to do" from "successfully added zero".
var ErrInsufficientAmount = errors.New("amount too small to earn points")

// Store is the shop's ledger store. The shop is the only writer of official point
// totals; updates always build on the shop's own last-known total.
type Store struct {
	store storage.Store

	mu sync.Mutex // serializes snapshot+log read-modify-write
}

// New returns the ledger store.
func New(p storage.Provider) (*Store, error) {
	err := p.CreateStore(storeName)
	if err != nil && !errors.Is(err, storage.ErrDuplicateStore) {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	store, err := p.OpenStore(storeName)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &Store{store: store}, nil
}

// RecordIssuance records a new customer relationship. An existing entry for the same
// customer is replaced; the relationship starts over at the entry's stated points.
func (s *Store) RecordIssuance(entry *Entry) error {
	if entry == nil || entry.CustomerDID == "" {
		return errors.New("entry customer DID mandatory")
	}

	if entry.Points < 0 {
		return errors.New("entry points must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Tier = tier.FromPoints(entry.Points)
	entry.UpdatedAt = time.Now().UTC()

	if err := s.putSnapshot(entry); err != nil {
		return err
	}

	return s.appendEvent(&Event{
		Type:        EventIssuance,
		CustomerDID: entry.CustomerDID,
		PointsDelta: entry.Points,
		NewTotal:    entry.Points,
		RecordedAt:  entry.UpdatedAt,
	})
}

// RecordUpdate converts a purchase amount to points and applies them to the shop's own
// last-known total for the customer. It never trusts a client-submitted total. Returns
// the updated entry and the points delta that was granted.
func (s *Store) RecordUpdate(customerDID string, amountSpent int) (*Entry, int, error) {
	if amountSpent < 0 {
		return nil, 0, errors.New("amount must not be negative")
	}

	delta := amountSpent / PointsPerUnit
	if delta == 0 {
		return nil, 0, fmt.Errorf("%w: %d", ErrInsufficientAmount, amountSpent)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.getSnapshot(customerDID)
	if err != nil {
		return nil, 0, err
	}

	entry.Points += delta
	entry.Tier = tier.FromPoints(entry.Points)
	entry.LastTransactionAmount = amountSpent
	entry.UpdatedAt = time.Now().UTC()

	if err := s.putSnapshot(entry); err != nil {
		return nil, 0, err
	}

	err = s.appendEvent(&Event{
		Type:        EventUpdate,
		CustomerDID: customerDID,
		Amount:      amountSpent,
		PointsDelta: delta,
		NewTotal:    entry.Points,
		RecordedAt:  entry.UpdatedAt,
	})
	if err != nil {
		return nil, 0, err
	}

	return entry, delta, nil
}

// RecordReset zeroes a customer's points. This is the only sanctioned way to lower a
// total; ordinary updates are monotonically non-decreasing.
func (s *Store) RecordReset(customerDID string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.getSnapshot(customerDID)
	if err != nil {
		return nil, err
	}

	delta := -entry.Points

	entry.Points = 0
	entry.Tier = tier.FromPoints(0)
	entry.UpdatedAt = time.Now().UTC()

	if err := s.putSnapshot(entry); err != nil {
		return nil, err
	}

	err = s.appendEvent(&Event{
		Type:        EventReset,
		CustomerDID: customerDID,
		PointsDelta: delta,
		NewTotal:    0,
		RecordedAt:  entry.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// RecordRedemption logs an offer redemption for the customer.
func (s *Store) RecordRedemption(customerDID, offerID string) error {
	if offerID == "" {
		return errors.New("offer id mandatory")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.getSnapshot(customerDID)
	if err != nil {
		return err
	}

	return s.appendEvent(&Event{
		Type:        EventRedemption,
		CustomerDID: customerDID,
		NewTotal:    entry.Points,
		OfferID:     offerID,
		RecordedAt:  time.Now().UTC(),
	})
}

// RedemptionCount returns how often the given offer was redeemed by the customer.
func (s *Store) RedemptionCount(customerDID, offerID string) (int, error) {
	events, err := s.Events(customerDID)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, e := range events {
		if e.Type == EventRedemption && e.OfferID == offerID {
			count++
		}
	}

	return count, nil
}

// GetSnapshot fetches the current entry for the customer.
func (s *Store) GetSnapshot(customerDID string) (*Entry, error) {
	return s.getSnapshot(customerDID)
}

// Events returns the customer's event history in recorded order.
func (s *Store) Events(customerDID string) ([]*Event, error) {
	bits, err := s.store.Get(eventsKey(customerDID))
	if err != nil {
		if errors.Is(err, storage.ErrValueNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch events for customer %s: %w", customerDID, err)
	}

	var events []*Event

	if err := json.Unmarshal(bits, &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}

	return events, nil
}

func (s *Store) getSnapshot(customerDID string) (*Entry, error) {
	bits, err := s.store.Get(snapshotKey(customerDID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot for customer %s: %w", customerDID, err)
	}

	entry := &Entry{}

	if err := json.Unmarshal(bits, entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return entry, nil
}

func (s *Store) putSnapshot(entry *Entry) error {
	bits, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.store.Put(snapshotKey(entry.CustomerDID), bits); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// appendEvent must be called with s.mu held. Existing events are never rewritten, only
// appended to.
func (s *Store) appendEvent(event *Event) error {
	events, err := s.Events(event.CustomerDID)
	if err != nil {
		return err
	}

	event.Sequence = len(events) + 1
	events = append(events, event)

	bits, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	if err := s.store.Put(eventsKey(event.CustomerDID), bits); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

func snapshotKey(customerDID string) string {
	return fmt.Sprintf(snapshotKeyFmt, customerDID)
}

func eventsKey(customerDID string) string {
	return fmt.Sprintf(eventsKeyFmt, customerDID)
}
