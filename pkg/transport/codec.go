/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package transport serializes credential payloads to and from the QR wire format.
// Image encoding/decoding is out of scope: the wire string is what a QR codec carries.
package transport

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Type discriminates transport payloads.
type Type string

// Supported payload types.
const (
	TypeJoin            Type = "JOIN"
	TypeUpdate          Type = "UPDATE"
	TypeOffer           Type = "OFFER"
	TypeOfferRedemption Type = "OFFER_REDEMPTION"
)

// Payload is the QR wire message. Field presence depends on Type; Decode guarantees all
// type-required fields are populated.
type Payload struct {
	Type            Type       `json:"type"`
	HolderDID       string     `json:"holderDID,omitempty"`
	IssuerRef       string     `json:"issuerRef,omitempty"`
	IssuerName      string     `json:"issuerName,omitempty"`
	IssuerPublicKey string     `json:"issuerPublicKey,omitempty"`
	Points          *int       `json:"points,omitempty"`
	Tier            string     `json:"tier,omitempty"`
	Signature       string     `json:"signature,omitempty"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
	IssuedAt        *time.Time `json:"issuedAt,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	OfferID         string     `json:"offerID,omitempty"`
	OfferTitle      string     `json:"offerTitle,omitempty"`
}

// MalformedPayloadError reports a structural decode failure. The scan that produced the
// payload is unusable; the user retries with a fresh QR.
type MalformedPayloadError struct {
	Field  string
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed payload: %s", e.Reason)
	}

	return fmt.Sprintf("malformed payload: field %q %s", e.Field, e.Reason)
}

// Encode serializes the payload into the wire string carried by a QR code.
func Encode(p *Payload) (string, error) {
	if err := validate(p); err != nil {
		return "", err
	}

	bits, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	return string(bits), nil
}

// Decode parses a wire string. It never returns a payload of ambiguous shape: any
// missing discriminator or type-required field yields a *MalformedPayloadError.
func Decode(wire string) (*Payload, error) {
	p := &Payload{}

	if err := json.Unmarshal([]byte(wire), p); err != nil {
		return nil, &MalformedPayloadError{Reason: err.Error()}
	}

	if err := validate(p); err != nil {
		return nil, err
	}

	return p, nil
}

// SigningBytes returns the canonical byte string an issuer signs for an UPDATE payload.
// Signature and derived fields are excluded.
func SigningBytes(p *Payload) []byte {
	points := 0
	if p.Points != nil {
		points = *p.Points
	}

	ts := ""
	if p.Timestamp != nil {
		ts = p.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	return []byte(strings.Join([]string{
		string(p.Type), p.HolderDID, p.IssuerRef, fmt.Sprintf("%d", points), ts,
	}, "|"))
}

// nolint:gocyclo // flat per-type field checks
func validate(p *Payload) error {
	switch p.Type {
	case TypeJoin, TypeUpdate, TypeOffer, TypeOfferRedemption:
	case "":
		return &MalformedPayloadError{Field: "type", Reason: "is missing"}
	default:
		return &MalformedPayloadError{Field: "type", Reason: fmt.Sprintf("has unknown value %q", p.Type)}
	}

	if p.IssuerRef == "" {
		return &MalformedPayloadError{Field: "issuerRef", Reason: "is missing"}
	}

	switch p.Type {
	case TypeJoin:
		if p.IssuerName == "" {
			return &MalformedPayloadError{Field: "issuerName", Reason: "is missing"}
		}

		if p.IssuedAt == nil {
			return &MalformedPayloadError{Field: "issuedAt", Reason: "is missing"}
		}
	case TypeUpdate:
		if p.HolderDID == "" {
			return &MalformedPayloadError{Field: "holderDID", Reason: "is missing"}
		}

		if p.IssuerName == "" {
			return &MalformedPayloadError{Field: "issuerName", Reason: "is missing"}
		}

		if p.Points == nil {
			return &MalformedPayloadError{Field: "points", Reason: "is missing"}
		}

		if *p.Points < 0 {
			return &MalformedPayloadError{Field: "points", Reason: "must not be negative"}
		}

		if p.Tier == "" {
			return &MalformedPayloadError{Field: "tier", Reason: "is missing"}
		}

		if p.Signature == "" {
			return &MalformedPayloadError{Field: "signature", Reason: "is missing"}
		}

		if p.Timestamp == nil {
			return &MalformedPayloadError{Field: "timestamp", Reason: "is missing"}
		}
	case TypeOffer:
		if p.OfferID == "" {
			return &MalformedPayloadError{Field: "offerID", Reason: "is missing"}
		}

		if p.OfferTitle == "" {
			return &MalformedPayloadError{Field: "offerTitle", Reason: "is missing"}
		}
	case TypeOfferRedemption:
		if p.OfferID == "" {
			return &MalformedPayloadError{Field: "offerID", Reason: "is missing"}
		}

		if p.HolderDID == "" {
			return &MalformedPayloadError{Field: "holderDID", Reason: "is missing"}
		}
	}

	return nil
}
