/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"time"

	"github.com/loyaltybloc/loyalty-adapter/pkg/db/ledger"
)

// CreateProfileRequest carries the shop-supplied part of a profile. The DID and key
// material are generated server side.
type CreateProfileRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// QRResponse carries a wire string ready to render as a QR code.
type QRResponse struct {
	Payload string `json:"payload"`
}

// PurchaseRequest records one purchase by a customer.
type PurchaseRequest struct {
	CustomerDID string `json:"customerDID"`
	CustomerRef string `json:"customerRef,omitempty"`
	Amount      int    `json:"amount"`
}

// PurchaseResponse returns the updated ledger entry and the signed update payload the
// customer scans to sync their wallet.
type PurchaseResponse struct {
	Payload     string        `json:"payload"`
	PointsAdded int           `json:"pointsAdded"`
	Entry       *ledger.Entry `json:"entry"`
}

// OfferRequest describes a broadcast offer.
type OfferRequest struct {
	OfferID   string     `json:"offerID,omitempty"`
	Title     string     `json:"title"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// RedemptionRequest carries a scanned OFFER_REDEMPTION wire string.
type RedemptionRequest struct {
	Payload string `json:"payload"`
}

// RedemptionResponse reports the recorded redemption and the running count for the
// customer-offer pair.
type RedemptionResponse struct {
	CustomerDID string `json:"customerDID"`
	OfferID     string `json:"offerID"`
	Redemptions int    `json:"redemptions"`
}

// EventsResponse lists a customer's ledger history.
type EventsResponse struct {
	Events []*ledger.Event `json:"events"`
}
