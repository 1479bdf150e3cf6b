/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package operation provides shop-side REST features.
package operation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/trustbloc/edge-core/pkg/log"
	"github.com/trustbloc/edge-core/pkg/storage"

	"github.com/loyaltybloc/loyalty-adapter/pkg/crypto"
	"github.com/loyaltybloc/loyalty-adapter/pkg/db/ledger"
	"github.com/loyaltybloc/loyalty-adapter/pkg/identity"
	"github.com/loyaltybloc/loyalty-adapter/internal/common/support"
	shopprofile "github.com/loyaltybloc/loyalty-adapter/pkg/profile/shop"
	"github.com/loyaltybloc/loyalty-adapter/pkg/restapi"
	commhttp "github.com/loyaltybloc/loyalty-adapter/pkg/restapi/internal/common/http"
	"github.com/loyaltybloc/loyalty-adapter/pkg/transport"
)

var logger = log.New("loyalty-adapter/shop-ops")

// constants for endpoints of the shop controller.
const (
	operationID        = "/shop"
	ProfilePath        = operationID + "/profile"
	ProfileByIDPath    = operationID + "/profile/{id}"
	JoinQRPath         = operationID + "/{id}/join-qr"
	PurchasePath       = operationID + "/{id}/purchases"
	CustomerPath       = operationID + "/{id}/customers/{did}"
	CustomerEventsPath = operationID + "/{id}/customers/{did}/events"
	CustomerResetPath  = operationID + "/{id}/customers/{did}/reset"
	OfferQRPath        = operationID + "/{id}/offer-qr"
	RedemptionPath     = operationID + "/{id}/redemptions"

	invalidRequestErrMsg = "invalid request"
)

// Config defines configuration for shop operations.
type Config struct {
	LedgerStore  *ledger.Store
	ProfileStore *shopprofile.Profile
}

// Operation is the REST controller for shop features.
type Operation struct {
	ledgerStore *ledger.Store
	profiles    *shopprofile.Profile
}

// New returns new shop REST controller instance.
func New(config *Config) (*Operation, error) {
	if config.LedgerStore == nil {
		return nil, errors.New("ledger store mandatory")
	}

	if config.ProfileStore == nil {
		return nil, errors.New("profile store mandatory")
	}

	return &Operation{
		ledgerStore: config.LedgerStore,
		profiles:    config.ProfileStore,
	}, nil
}

// GetRESTHandlers get all controller API handler available for this service.
func (o *Operation) GetRESTHandlers() []restapi.Handler {
	return []restapi.Handler{
		support.NewHTTPHandler(ProfilePath, http.MethodPost, o.createProfileHandler),
		support.NewHTTPHandler(ProfileByIDPath, http.MethodGet, o.getProfileHandler),
		support.NewHTTPHandler(JoinQRPath, http.MethodGet, o.joinQRHandler),
		support.NewHTTPHandler(PurchasePath, http.MethodPost, o.purchaseHandler),
		support.NewHTTPHandler(CustomerPath, http.MethodGet, o.customerHandler),
		support.NewHTTPHandler(CustomerEventsPath, http.MethodGet, o.customerEventsHandler),
		support.NewHTTPHandler(CustomerResetPath, http.MethodPost, o.customerResetHandler),
		support.NewHTTPHandler(OfferQRPath, http.MethodPost, o.offerQRHandler),
		support.NewHTTPHandler(RedemptionPath, http.MethodPost, o.redemptionHandler),
	}
}

func (o *Operation) createProfileHandler(rw http.ResponseWriter, req *http.Request) {
	request := &CreateProfileRequest{}

	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusBadRequest,
			fmt.Sprintf(invalidRequestErrMsg+": %s", err))

		return
	}

	shopIdentity, err := identity.Generate()
	if err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to generate shop identity: %s", err))

		return
	}

	now := time.Now().UTC()

	data := &shopprofile.ProfileData{
		ID:         request.ID,
		Name:       request.Name,
		URL:        request.URL,
		DID:        shopIdentity.ID,
		PublicKey:  shopIdentity.PublicKey,
		SigningKey: shopIdentity.PrivateKeyMaterial,
		CreatedAt:  &now,
	}

	if err := o.profiles.SaveProfile(data); err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusBadRequest, err.Error())

		return
	}

	logger.Infof("created shop profile %s with did %s", data.ID, data.DID)

	commhttp.WriteResponseWithStatus(rw, http.StatusCreated, publicView(data))
}

func (o *Operation) getProfileHandler(rw http.ResponseWriter, req *http.Request) {
	data, ok := o.loadProfile(rw, mux.Vars(req)["id"])
	if !ok {
		return
	}

	commhttp.WriteResponse(rw, publicView(data))
}

// joinQRHandler returns the JOIN payload holders scan to enter the shop's program. The
// shop's public key rides along so wallets can pin it for later update verification.
func (o *Operation) joinQRHandler(rw http.ResponseWriter, req *http.Request) {
	data, ok := o.loadProfile(rw, mux.Vars(req)["id"])
	if !ok {
		return
	}

	issuedAt := time.Now().UTC()

	wire, err := transport.Encode(&transport.Payload{
		Type:            transport.TypeJoin,
		IssuerRef:       data.DID,
		IssuerName:      data.Name,
		IssuerPublicKey: data.PublicKey,
		IssuedAt:        &issuedAt,
	})
	if err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to encode join payload: %s", err))

		return
	}

	commhttp.WriteResponse(rw, &QRResponse{Payload: wire})
}

// nolint:funlen // sequential purchase flow
func (o *Operation) purchaseHandler(rw http.ResponseWriter, req *http.Request) {
	data, ok := o.loadProfile(rw, mux.Vars(req)["id"])
	if !ok {
		return
	}

	request := &PurchaseRequest{}

	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusBadRequest,
			fmt.Sprintf(invalidRequestErrMsg+": %s", err))

		return
	}

	if request.CustomerDID == "" {
		commhttp.WriteErrorResponse(rw, http.StatusBadRequest, "customer DID mandatory")

		return
	}

	// first purchase enrolls the customer with a zero balance
	_, err := o.ledgerStore.GetSnapshot(request.CustomerDID)
	if err != nil {
		if !errors.Is(err, storage.ErrValueNotFound) {
			commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
				fmt.Sprintf("failed to read ledger: %s", err))

			return
		}

		err = o.ledgerStore.RecordIssuance(&ledger.Entry{
			CustomerDID: request.CustomerDID,
			CustomerRef: request.CustomerRef,
		})
		if err != nil {
			commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
				fmt.Sprintf("failed to enroll customer: %s", err))

			return
		}
	}

	entry, delta, err := o.ledgerStore.RecordUpdate(request.CustomerDID, request.Amount)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientAmount) {
			commhttp.WriteErrorResponse(rw, http.StatusBadRequest, err.Error())

			return
		}

		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to record purchase: %s", err))

		return
	}

	wire, err := o.signedUpdatePayload(data, entry)
	if err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError, err.Error())

		return
	}

	commhttp.WriteResponse(rw, &PurchaseResponse{
		Payload:     wire,
		PointsAdded: delta,
		Entry:       entry,
	})
}

func (o *Operation) customerHandler(rw http.ResponseWriter, req *http.Request) {
	did := mux.Vars(req)["did"]

	entry, err := o.ledgerStore.GetSnapshot(did)
	if err != nil {
		if errors.Is(err, storage.ErrValueNotFound) {
			commhttp.WriteErrorResponse(rw, http.StatusNotFound,
				fmt.Sprintf("no ledger entry for customer %s", did))

			return
		}

		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to read ledger: %s", err))

		return
	}

	commhttp.WriteResponse(rw, entry)
}

func (o *Operation) customerEventsHandler(rw http.ResponseWriter, req *http.Request) {
	events, err := o.ledgerStore.Events(mux.Vars(req)["did"])
	if err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to read events: %s", err))

		return
	}

	commhttp.WriteResponse(rw, &EventsResponse{Events: events})
}

// customerResetHandler zeroes the customer's balance and returns a signed update
// payload. The payload's fresh timestamp is what lets the wallet accept a lower total.
func (o *Operation) customerResetHandler(rw http.ResponseWriter, req *http.Request) {
	data, ok := o.loadProfile(rw, mux.Vars(req)["id"])
	if !ok {
		return
	}

	did := mux.Vars(req)["did"]

	entry, err := o.ledgerStore.RecordReset(did)
	if err != nil {
		if errors.Is(err, storage.ErrValueNotFound) {
			commhttp.WriteErrorResponse(rw, http.StatusNotFound,
				fmt.Sprintf("no ledger entry for customer %s", did))

			return
		}

		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to reset customer: %s", err))

		return
	}

	wire, err := o.signedUpdatePayload(data, entry)
	if err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError, err.Error())

		return
	}

	commhttp.WriteResponse(rw, &PurchaseResponse{Payload: wire, Entry: entry})
}

func (o *Operation) offerQRHandler(rw http.ResponseWriter, req *http.Request) {
	data, ok := o.loadProfile(rw, mux.Vars(req)["id"])
	if !ok {
		return
	}

	request := &OfferRequest{}

	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusBadRequest,
			fmt.Sprintf(invalidRequestErrMsg+": %s", err))

		return
	}

	if request.OfferID == "" {
		request.OfferID = uuid.New().String()
	}

	wire, err := transport.Encode(&transport.Payload{
		Type:       transport.TypeOffer,
		IssuerRef:  data.DID,
		OfferID:    request.OfferID,
		OfferTitle: request.Title,
		ExpiresAt:  request.ExpiresAt,
	})
	if err != nil {
		var malformed *transport.MalformedPayloadError
		if errors.As(err, &malformed) {
			commhttp.WriteErrorResponse(rw, http.StatusBadRequest, err.Error())

			return
		}

		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to encode offer payload: %s", err))

		return
	}

	commhttp.WriteResponse(rw, &QRResponse{Payload: wire})
}

func (o *Operation) redemptionHandler(rw http.ResponseWriter, req *http.Request) {
	request := &RedemptionRequest{}

	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusBadRequest,
			fmt.Sprintf(invalidRequestErrMsg+": %s", err))

		return
	}

	payload, err := transport.Decode(request.Payload)
	if err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusBadRequest, err.Error())

		return
	}

	if payload.Type != transport.TypeOfferRedemption {
		commhttp.WriteErrorResponse(rw, http.StatusBadRequest,
			fmt.Sprintf("expected %s payload, got %s", transport.TypeOfferRedemption, payload.Type))

		return
	}

	err = o.ledgerStore.RecordRedemption(payload.HolderDID, payload.OfferID)
	if err != nil {
		if errors.Is(err, storage.ErrValueNotFound) {
			commhttp.WriteErrorResponse(rw, http.StatusNotFound,
				fmt.Sprintf("no ledger entry for customer %s", payload.HolderDID))

			return
		}

		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to record redemption: %s", err))

		return
	}

	count, err := o.ledgerStore.RedemptionCount(payload.HolderDID, payload.OfferID)
	if err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to count redemptions: %s", err))

		return
	}

	commhttp.WriteResponse(rw, &RedemptionResponse{
		CustomerDID: payload.HolderDID,
		OfferID:     payload.OfferID,
		Redemptions: count,
	})
}

// signedUpdatePayload builds the UPDATE wire string for the entry, signed with the
// shop's key so wallets that pinned the shop's public key can verify it.
func (o *Operation) signedUpdatePayload(data *shopprofile.ProfileData, entry *ledger.Entry) (string, error) {
	signer, err := crypto.NewJWSSigner(data.SigningKey)
	if err != nil {
		return "", fmt.Errorf("failed to load shop signing key: %w", err)
	}

	points := entry.Points
	timestamp := entry.UpdatedAt

	payload := &transport.Payload{
		Type:            transport.TypeUpdate,
		HolderDID:       entry.CustomerDID,
		IssuerRef:       data.DID,
		IssuerName:      data.Name,
		IssuerPublicKey: data.PublicKey,
		Points:          &points,
		Tier:            string(entry.Tier),
		Timestamp:       &timestamp,
	}

	signature, err := signer.Sign(transport.SigningBytes(payload))
	if err != nil {
		return "", fmt.Errorf("failed to sign update payload: %w", err)
	}

	payload.Signature = signature

	wire, err := transport.Encode(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode update payload: %w", err)
	}

	return wire, nil
}

func (o *Operation) loadProfile(rw http.ResponseWriter, id string) (*shopprofile.ProfileData, bool) {
	data, err := o.profiles.GetProfile(id)
	if err != nil {
		if errors.Is(err, storage.ErrValueNotFound) {
			commhttp.WriteErrorResponse(rw, http.StatusNotFound,
				fmt.Sprintf("profile %s not found", id))

			return nil, false
		}

		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to read profile: %s", err))

		return nil, false
	}

	return data, true
}

// publicView strips the signing key before a profile leaves the service.
func publicView(data *shopprofile.ProfileData) *shopprofile.ProfileData {
	view := *data
	view.SigningKey = ""

	return &view
}
