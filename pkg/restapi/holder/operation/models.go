/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"time"

	"github.com/loyaltybloc/loyalty-adapter/pkg/db/wallet"
	"github.com/loyaltybloc/loyalty-adapter/pkg/reconcile"
)

// IdentityResponse is returned on identity creation and restore. RecoveryPhrase is
// populated only when the identity was just created; it is the holder's one chance to
// write it down.
type IdentityResponse struct {
	DID            string    `json:"did"`
	RecoveryPhrase string    `json:"recoveryPhrase,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	WeakEntropy    bool      `json:"weakEntropy,omitempty"`

	// RestoredCredentials counts credentials rebuilt from the remote ledger on restore.
	RestoredCredentials int `json:"restoredCredentials,omitempty"`
}

// RestoreIdentityRequest carries the 12 word recovery phrase, whitespace separated.
type RestoreIdentityRequest struct {
	RecoveryPhrase string `json:"recoveryPhrase"`
}

// ScanRequest carries the raw wire string read from a QR code.
type ScanRequest struct {
	Payload string `json:"payload"`
}

// ScanResult reports what a scanned payload did to the wallet. A rejection is a valid,
// inert outcome: Applied is false and Reason carries the rejection code.
type ScanResult struct {
	Applied    bool                 `json:"applied"`
	Reason     string               `json:"reason,omitempty"`
	Delta      *reconcile.Delta     `json:"delta,omitempty"`
	Credential *wallet.Credential   `json:"credential,omitempty"`
	Offer      *wallet.OfferReceipt `json:"offer,omitempty"`
}

// CredentialsResponse lists the wallet's credentials.
type CredentialsResponse struct {
	Credentials []*wallet.Credential `json:"credentials"`
}
