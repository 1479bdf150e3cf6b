/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/trustbloc/edge-core/pkg/storage"
)

const (
	outboxStoreName = "outbox"

	intentKeyFmt   = "intent_%s"
	intentIndexKey = "intent_index"

	drainInterval = 15 * time.Second
	maxAttempts   = 5
)

// Intent kinds.
const (
	IntentJoin   = "join"
	IntentUpdate = "update"
)

// Intent is a durable record of a push that must eventually reach the remote ledger.
type Intent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Program   *Program  `json:"program"`
	CreatedAt time.Time `json:"createdAt"`
}

type pusher interface {
	PushJoin(p *Program) error
	PushPointsUpdate(p *Program) error
}

// Outbox persists push intents before delivery and drains them with backoff, so the
// local mutation never waits on the network and no confirmed intent is lost. Failed
// pushes are logged and retried on the next drain; they never surface to the user.
type Outbox struct {
	store  storage.Store
	client pusher

	mu sync.Mutex // guards index read-modify-write
}

// NewOutbox returns the outbox backed by the given provider.
func NewOutbox(p storage.Provider, client pusher) (*Outbox, error) {
	err := p.CreateStore(outboxStoreName)
	if err != nil && !errors.Is(err, storage.ErrDuplicateStore) {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	store, err := p.OpenStore(outboxStoreName)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &Outbox{store: store, client: client}, nil
}

// Enqueue durably records the intent and attempts immediate delivery in the
// background. The caller's mutation has already succeeded locally; errors here are
// logged, never returned to the user path.
func (o *Outbox) Enqueue(kind string, program *Program) error {
	if kind != IntentJoin && kind != IntentUpdate {
		return fmt.Errorf("unsupported intent kind %s", kind)
	}

	intent := &Intent{
		ID:        uuid.New().String(),
		Kind:      kind,
		Program:   program,
		CreatedAt: time.Now().UTC(),
	}

	bits, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.store.Put(intentKey(intent.ID), bits); err != nil {
		return fmt.Errorf("failed to save intent: %w", err)
	}

	if err := o.addToIndex(intent.ID); err != nil {
		return err
	}

	go o.deliver(intent)

	return nil
}

// Pending returns all undelivered intents in enqueue order.
func (o *Outbox) Pending() ([]*Intent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.pending()
}

// DrainLoop attempts delivery of pending intents until ctx is cancelled.
func (o *Outbox) DrainLoop(ctx context.Context) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.DrainOnce()
		}
	}
}

// DrainOnce attempts delivery of every pending intent with exponential backoff,
// removing each only on confirmed success.
func (o *Outbox) DrainOnce() {
	o.mu.Lock()
	intents, err := o.pending()
	o.mu.Unlock()

	if err != nil {
		logger.Errorf("failed to read outbox: %s", err)

		return
	}

	for _, intent := range intents {
		intent := intent

		err := backoff.Retry(func() error {
			return o.push(intent)
		}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts))
		if err != nil {
			logger.Warnf("intent %s (%s) still undelivered: %s", intent.ID, intent.Kind, err)

			continue
		}

		o.remove(intent.ID)
	}
}

// deliver makes one immediate attempt; on failure the intent stays queued for the
// drain loop.
func (o *Outbox) deliver(intent *Intent) {
	if err := o.push(intent); err != nil {
		logger.Warnf("push of intent %s (%s) failed, queued for retry: %s", intent.ID, intent.Kind, err)

		return
	}

	o.remove(intent.ID)
}

func (o *Outbox) push(intent *Intent) error {
	switch intent.Kind {
	case IntentJoin:
		return o.client.PushJoin(intent.Program)
	case IntentUpdate:
		return o.client.PushPointsUpdate(intent.Program)
	default:
		return fmt.Errorf("unsupported intent kind %s", intent.Kind)
	}
}

// pending must be called with o.mu held.
func (o *Outbox) pending() ([]*Intent, error) {
	ids, err := o.readIndex()
	if err != nil {
		return nil, err
	}

	intents := make([]*Intent, 0, len(ids))

	for _, id := range ids {
		bits, err := o.store.Get(intentKey(id))
		if err != nil {
			if errors.Is(err, storage.ErrValueNotFound) {
				continue
			}

			return nil, fmt.Errorf("failed to fetch intent %s: %w", id, err)
		}

		intent := &Intent{}

		if err := json.Unmarshal(bits, intent); err != nil {
			return nil, fmt.Errorf("failed to unmarshal intent: %w", err)
		}

		intents = append(intents, intent)
	}

	return intents, nil
}

func (o *Outbox) remove(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.store.Delete(intentKey(id)); err != nil {
		logger.Warnf("failed to delete delivered intent %s: %s", id, err)
	}

	if err := o.removeFromIndex(id); err != nil {
		logger.Warnf("failed to unindex delivered intent %s: %s", id, err)
	}
}

// addToIndex and removeFromIndex must be called with o.mu held.
func (o *Outbox) addToIndex(id string) error {
	ids, err := o.readIndex()
	if err != nil {
		return err
	}

	return o.writeIndex(append(ids, id))
}

func (o *Outbox) removeFromIndex(id string) error {
	ids, err := o.readIndex()
	if err != nil {
		return err
	}

	filtered := ids[:0]

	for _, existing := range ids {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}

	return o.writeIndex(filtered)
}

func (o *Outbox) readIndex() ([]string, error) {
	bits, err := o.store.Get(intentIndexKey)
	if err != nil {
		if errors.Is(err, storage.ErrValueNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch outbox index: %w", err)
	}

	var ids []string

	if err := json.Unmarshal(bits, &ids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outbox index: %w", err)
	}

	return ids, nil
}

func (o *Outbox) writeIndex(ids []string) error {
	bits, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox index: %w", err)
	}

	if err := o.store.Put(intentIndexKey, bits); err != nil {
		return fmt.Errorf("failed to save outbox index: %w", err)
	}

	return nil
}

func intentKey(id string) string {
	return fmt.Sprintf(intentKeyFmt, id)
}
