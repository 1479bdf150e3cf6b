/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package wallet

import (
	"time"

	"github.com/loyaltybloc/loyalty-adapter/pkg/identity"
	"github.com/loyaltybloc/loyalty-adapter/pkg/tier"
)

// Credential is the holder-side record of one holder-shop relationship.
// There is exactly one credential per (holder DID, issuer ref) pair in the store.
type Credential struct {
	CustomerRef     string     `json:"customerRef"`
	HolderDID       string     `json:"holderDID"`
	IssuerRef       string     `json:"issuerRef"`
	IssuerName      string     `json:"issuerName"`
	IssuerPublicKey string     `json:"issuerPublicKey,omitempty"`
	Points          int        `json:"points"`
	Tier            tier.Level `json:"tier"`
	IssuedAt        time.Time  `json:"issuedAt"`
	LastUpdatedAt   time.Time  `json:"lastUpdatedAt"`
	Signature       string     `json:"signature,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
}

// OfferReceipt is the holder-side record of a broadcast offer.
type OfferReceipt struct {
	OfferID    string     `json:"offerID"`
	IssuerRef  string     `json:"issuerRef"`
	Title      string     `json:"title"`
	ReceivedAt time.Time  `json:"receivedAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// Settings holds wallet preferences.
type Settings struct {
	PINSet bool `json:"pinSet"`
}

// Snapshot is a full export of the wallet's three logical partitions. Identity secrets
// are carried in the clear; the snapshot is the holder's own backup and is re-sealed
// under the wallet passphrase on import.
type Snapshot struct {
	Identity    *identity.Identity `json:"identity"`
	Credentials []*Credential      `json:"credentials"`
	Settings    *Settings          `json:"settings"`
}
