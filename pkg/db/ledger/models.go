/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"time"

	"github.com/loyaltybloc/loyalty-adapter/pkg/tier"
)

// Entry is the shop's authoritative view of a customer's loyalty state. The holder's
// wallet copy is a replica that reconciles toward it.
type Entry struct {
	CustomerDID           string     `json:"customerDID"`
	CustomerRef           string     `json:"customerRef,omitempty"`
	Points                int        `json:"points"`
	Tier                  tier.Level `json:"tier"`
	LastTransactionAmount int        `json:"lastTransactionAmount"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// Event types recorded in the append-only log.
const (
	EventIssuance   = "issuance"
	EventUpdate     = "update"
	EventReset      = "reset"
	EventRedemption = "redemption"
)

// Event is one immutable record in a customer's ledger history.
type Event struct {
	Sequence    int       `json:"sequence"`
	Type        string    `json:"type"`
	CustomerDID string    `json:"customerDID"`
	Amount      int       `json:"amount,omitempty"`
	PointsDelta int       `json:"pointsDelta"`
	NewTotal    int       `json:"newTotal"`
	OfferID     string    `json:"offerID,omitempty"`
	RecordedAt  time.Time `json:"recordedAt"`
}
