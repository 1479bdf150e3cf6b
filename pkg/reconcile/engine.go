/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package reconcile decides whether inbound transport payloads are applied to the
// holder's wallet.
package reconcile

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trustbloc/edge-core/pkg/log"
	"github.com/trustbloc/edge-core/pkg/storage"

	"github.com/loyaltybloc/loyalty-adapter/pkg/crypto"
	"github.com/loyaltybloc/loyalty-adapter/pkg/db/wallet"
	"github.com/loyaltybloc/loyalty-adapter/pkg/tier"
	"github.com/loyaltybloc/loyalty-adapter/pkg/transport"
)

var logger = log.New("loyalty-adapter/reconcile")

// Reason codes for rejected payloads.
const (
	ReasonWrongIssuer  = "WrongIssuer"
	ReasonWrongHolder  = "WrongHolder"
	ReasonExpired      = "Expired"
	ReasonNotNewer     = "NotNewer"
	ReasonBadSignature = "BadSignature"
)

// Rejection reports a payload that was evaluated and not applied. A rejection is an
// expected, inert outcome (a re-scanned receipt QR is frequent), never a crash.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("update rejected: %s", r.Reason)
}

// AsRejection unwraps err into a Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	r := &Rejection{}
	if errors.As(err, &r) {
		return r, true
	}

	return nil, false
}

// Delta summarizes an applied update. This is the only state the surrounding
// application needs for user feedback.
type Delta struct {
	PointsAdded int        `json:"pointsAdded"`
	TierChanged bool       `json:"tierChanged"`
	OldTier     tier.Level `json:"oldTier"`
	NewTier     tier.Level `json:"newTier"`
}

type credentialStore interface {
	GetByIssuer(issuerRef string) (*wallet.Credential, error)
	Upsert(c *wallet.Credential) error
	SaveOfferReceipt(r *wallet.OfferReceipt) error
}

// Engine applies inbound payloads to the holder's credential store.
type Engine struct {
	store    credentialStore
	verifier crypto.Verifier
	now      func() time.Time
	locks    sync.Map // credential key -> *sync.Mutex
}

// New returns the reconciliation engine. The verifier decides how update signatures
// are checked; pass crypto.NullVerifier to skip authenticity verification.
func New(store *wallet.Store, verifier crypto.Verifier) *Engine {
	return newEngine(store, verifier)
}

func newEngine(store credentialStore, verifier crypto.Verifier) *Engine {
	return &Engine{store: store, verifier: verifier, now: time.Now}
}

// Join creates the credential for a new holder-shop relationship from a JOIN payload.
// A repeated join with the same issuer replaces the prior relationship; the store
// guarantees there is never more than one credential per issuer.
func (e *Engine) Join(p *transport.Payload, holderDID string) (*wallet.Credential, error) {
	if p.Type != transport.TypeJoin {
		return nil, fmt.Errorf("expected %s payload, got %s", transport.TypeJoin, p.Type)
	}

	if holderDID == "" {
		return nil, errors.New("holder DID mandatory")
	}

	unlock := e.lock(holderDID, p.IssuerRef)
	defer unlock()

	now := e.now().UTC()

	credential := &wallet.Credential{
		CustomerRef:     uuid.New().String(),
		HolderDID:       holderDID,
		IssuerRef:       p.IssuerRef,
		IssuerName:      p.IssuerName,
		IssuerPublicKey: p.IssuerPublicKey,
		Points:          0,
		Tier:            tier.Base,
		IssuedAt:        *p.IssuedAt,
		LastUpdatedAt:   now,
	}

	if err := e.store.Upsert(credential); err != nil {
		return nil, fmt.Errorf("failed to store joined credential: %w", err)
	}

	logger.Debugf("joined issuer %s for holder %s", p.IssuerRef, holderDID)

	return credential, nil
}

// ApplyUpdate runs the update state machine: WrongIssuer, WrongHolder, Expired,
// NotNewer, signature, then merge. Checks run in order; first match wins. The whole
// read-decide-write sequence holds the per-credential lock, so no other writer can
// interleave and double-scans cannot tear the read-modify-write.
func (e *Engine) ApplyUpdate(p *transport.Payload) (*Delta, error) {
	if p.Type != transport.TypeUpdate {
		return nil, fmt.Errorf("expected %s payload, got %s", transport.TypeUpdate, p.Type)
	}

	unlock := e.lock(p.HolderDID, p.IssuerRef)
	defer unlock()

	existing, err := e.store.GetByIssuer(p.IssuerRef)
	if err != nil {
		if errors.Is(err, storage.ErrValueNotFound) {
			// no relationship with this issuer exists
			return nil, &Rejection{Reason: ReasonWrongIssuer}
		}

		return nil, fmt.Errorf("failed to read credential: %w", err)
	}

	if existing.IssuerRef != p.IssuerRef {
		return nil, &Rejection{Reason: ReasonWrongIssuer}
	}

	if existing.HolderDID != p.HolderDID {
		return nil, &Rejection{Reason: ReasonWrongHolder}
	}

	now := e.now().UTC()

	if p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
		return nil, &Rejection{Reason: ReasonExpired}
	}

	if !isNewer(p, existing) {
		return nil, &Rejection{Reason: ReasonNotNewer}
	}

	if existing.IssuerPublicKey != "" {
		if err := e.verifier.Verify(p.Signature, transport.SigningBytes(p), existing.IssuerPublicKey); err != nil {
			logger.Warnf("rejecting update for issuer %s: %s", p.IssuerRef, err)

			return nil, &Rejection{Reason: ReasonBadSignature}
		}
	}

	oldPoints, oldTier := existing.Points, existing.Tier

	// clock skew guard: lastUpdatedAt must never lag the applied payload's timestamp,
	// otherwise the same QR would pass the staleness check on a re-scan.
	updatedAt := now
	if p.Timestamp != nil && p.Timestamp.After(updatedAt) {
		updatedAt = p.Timestamp.UTC()
	}

	existing.Points = *p.Points
	existing.Tier = tier.FromPoints(existing.Points) // never trusted verbatim from the payload
	existing.Signature = p.Signature
	existing.ExpiresAt = p.ExpiresAt
	existing.LastUpdatedAt = updatedAt

	if err := e.store.Upsert(existing); err != nil {
		return nil, fmt.Errorf("failed to store merged credential: %w", err)
	}

	return &Delta{
		PointsAdded: existing.Points - oldPoints,
		TierChanged: oldTier != existing.Tier,
		OldTier:     oldTier,
		NewTier:     existing.Tier,
	}, nil
}

// ApplyOffer records a broadcast offer receipt. Re-scanning the same offer is a no-op.
func (e *Engine) ApplyOffer(p *transport.Payload) (*wallet.OfferReceipt, error) {
	if p.Type != transport.TypeOffer {
		return nil, fmt.Errorf("expected %s payload, got %s", transport.TypeOffer, p.Type)
	}

	now := e.now().UTC()

	if p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
		return nil, &Rejection{Reason: ReasonExpired}
	}

	receipt := &wallet.OfferReceipt{
		OfferID:    p.OfferID,
		IssuerRef:  p.IssuerRef,
		Title:      p.OfferTitle,
		ReceivedAt: now,
		ExpiresAt:  p.ExpiresAt,
	}

	if err := e.store.SaveOfferReceipt(receipt); err != nil {
		return nil, fmt.Errorf("failed to store offer receipt: %w", err)
	}

	return receipt, nil
}

// isNewer is the replay-protection rule: the payload counts as an update only if it
// carries more points than the stored credential or a strictly newer timestamp.
func isNewer(p *transport.Payload, existing *wallet.Credential) bool {
	if *p.Points > existing.Points {
		return true
	}

	return p.Timestamp != nil && p.Timestamp.After(existing.LastUpdatedAt)
}

func (e *Engine) lock(holderDID, issuerRef string) func() {
	key := holderDID + "_" + issuerRef

	value, _ := e.locks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)

	mu.Lock()

	return mu.Unlock
}
