/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package operation provides holder wallet REST features.
package operation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/trustbloc/edge-core/pkg/log"
	"github.com/trustbloc/edge-core/pkg/storage"

	"github.com/loyaltybloc/loyalty-adapter/pkg/crypto"
	"github.com/loyaltybloc/loyalty-adapter/pkg/db/wallet"
	"github.com/loyaltybloc/loyalty-adapter/pkg/identity"
	"github.com/loyaltybloc/loyalty-adapter/internal/common/support"
	"github.com/loyaltybloc/loyalty-adapter/pkg/reconcile"
	"github.com/loyaltybloc/loyalty-adapter/pkg/remote"
	"github.com/loyaltybloc/loyalty-adapter/pkg/restapi"
	commhttp "github.com/loyaltybloc/loyalty-adapter/pkg/restapi/internal/common/http"
	"github.com/loyaltybloc/loyalty-adapter/pkg/tier"
	"github.com/loyaltybloc/loyalty-adapter/pkg/transport"
)

var logger = log.New("loyalty-adapter/holder-ops")

// constants for endpoints of the holder wallet controller.
const (
	operationID            = "/wallet"
	IdentityPath           = operationID + "/identity"
	RestoreIdentityPath    = operationID + "/identity/restore"
	ScanPath               = operationID + "/scan"
	CredentialsPath        = operationID + "/credentials"
	CredentialByIssuerPath = operationID + "/credentials/{issuerRef}"
	ExportPath             = operationID + "/export"
	ImportPath             = operationID + "/import"

	invalidRequestErrMsg = "invalid request"
)

type remoteLedger interface {
	Programs(did string) ([]*remote.Program, error)
}

type intentQueue interface {
	Enqueue(kind string, program *remote.Program) error
}

// Config defines configuration for holder wallet operations.
type Config struct {
	WalletStore  *wallet.Store
	Verifier     crypto.Verifier
	Queue        intentQueue
	RemoteLedger remoteLedger
}

// Operation is the REST controller for the holder wallet.
type Operation struct {
	store        *wallet.Store
	engine       *reconcile.Engine
	queue        intentQueue
	remoteLedger remoteLedger
}

// New returns new holder wallet REST controller instance.
func New(config *Config) (*Operation, error) {
	if config.WalletStore == nil {
		return nil, errors.New("wallet store mandatory")
	}

	verifier := config.Verifier
	if verifier == nil {
		verifier = crypto.JWSVerifier{}
	}

	return &Operation{
		store:        config.WalletStore,
		engine:       reconcile.New(config.WalletStore, verifier),
		queue:        config.Queue,
		remoteLedger: config.RemoteLedger,
	}, nil
}

// GetRESTHandlers get all controller API handler available for this service.
func (o *Operation) GetRESTHandlers() []restapi.Handler {
	return []restapi.Handler{
		support.NewHTTPHandler(IdentityPath, http.MethodPost, o.createIdentityHandler),
		support.NewHTTPHandler(IdentityPath, http.MethodGet, o.getIdentityHandler),
		support.NewHTTPHandler(RestoreIdentityPath, http.MethodPost, o.restoreIdentityHandler),
		support.NewHTTPHandler(ScanPath, http.MethodPost, o.scanHandler),
		support.NewHTTPHandler(CredentialsPath, http.MethodGet, o.credentialsHandler),
		support.NewHTTPHandler(CredentialByIssuerPath, http.MethodGet, o.credentialByIssuerHandler),
		support.NewHTTPHandler(CredentialByIssuerPath, http.MethodDelete, o.deleteCredentialHandler),
		support.NewHTTPHandler(ExportPath, http.MethodGet, o.exportHandler),
		support.NewHTTPHandler(ImportPath, http.MethodPost, o.importHandler),
	}
}

func (o *Operation) createIdentityHandler(rw http.ResponseWriter, _ *http.Request) {
	existing, err := o.store.Identity()
	if err != nil && !errors.Is(err, storage.ErrValueNotFound) {
		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to read identity: %s", err))

		return
	}

	if existing != nil {
		commhttp.WriteErrorResponse(rw, http.StatusConflict, "identity already exists")

		return
	}

	id, err := identity.Generate()
	if err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to generate identity: %s", err))

		return
	}

	if err := o.store.SaveIdentity(id); err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to save identity: %s", err))

		return
	}

	commhttp.WriteResponseWithStatus(rw, http.StatusCreated, &IdentityResponse{
		DID:            id.ID,
		RecoveryPhrase: id.RecoveryPhrase,
		CreatedAt:      id.CreatedAt,
		WeakEntropy:    id.WeakEntropy,
	})
}

func (o *Operation) getIdentityHandler(rw http.ResponseWriter, _ *http.Request) {
	id, err := o.store.Identity()
	if err != nil {
		if errors.Is(err, storage.ErrValueNotFound) {
			commhttp.WriteErrorResponse(rw, http.StatusNotFound, "identity not found")

			return
		}

		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to read identity: %s", err))

		return
	}

	// secrets never leave the wallet through this endpoint
	commhttp.WriteResponse(rw, &IdentityResponse{
		DID:         id.ID,
		CreatedAt:   id.CreatedAt,
		WeakEntropy: id.WeakEntropy,
	})
}

func (o *Operation) restoreIdentityHandler(rw http.ResponseWriter, req *http.Request) {
	request := &RestoreIdentityRequest{}

	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusBadRequest,
			fmt.Sprintf(invalidRequestErrMsg+": %s", err))

		return
	}

	id, err := identity.DeriveFromRecoveryPhrase(strings.Fields(request.RecoveryPhrase))
	if err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusBadRequest, err.Error())

		return
	}

	if err := o.store.SaveIdentity(id); err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to save identity: %s", err))

		return
	}

	commhttp.WriteResponse(rw, &IdentityResponse{
		DID:                 id.ID,
		CreatedAt:           id.CreatedAt,
		RestoredCredentials: o.restoreCredentials(id.ID),
	})
}

// restoreCredentials rebuilds wallet credentials from the remote ledger. Best effort:
// the restore succeeds locally even when the backend is unreachable.
func (o *Operation) restoreCredentials(holderDID string) int {
	if o.remoteLedger == nil {
		return 0
	}

	programs, err := o.remoteLedger.Programs(holderDID)
	if err != nil {
		logger.Warnf("failed to fetch remote programs for restore: %s", err)

		return 0
	}

	restored := 0

	for _, program := range programs {
		credential := &wallet.Credential{
			CustomerRef:   uuid.New().String(),
			HolderDID:     holderDID,
			IssuerRef:     program.ShopDID,
			IssuerName:    program.ShopName,
			Points:        program.Points,
			Tier:          tier.FromPoints(program.Points),
			IssuedAt:      program.IssuedDate,
			LastUpdatedAt: time.Now().UTC(),
			Signature:     program.Signature,
		}

		if err := o.store.Upsert(credential); err != nil {
			logger.Warnf("failed to restore credential for issuer %s: %s", program.ShopDID, err)

			continue
		}

		restored++
	}

	return restored
}

// nolint:funlen // flat per-type dispatch
func (o *Operation) scanHandler(rw http.ResponseWriter, req *http.Request) {
	request := &ScanRequest{}

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

	id, err := o.store.Identity()
	if err != nil {
		if errors.Is(err, storage.ErrValueNotFound) {
			commhttp.WriteErrorResponse(rw, http.StatusBadRequest, "wallet identity not initialized")

			return
		}

		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to read identity: %s", err))

		return
	}

	switch payload.Type {
	case transport.TypeJoin:
		credential, err := o.engine.Join(payload, id.ID)
		if err != nil {
			commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
				fmt.Sprintf("failed to join: %s", err))

			return
		}

		o.enqueue(remote.IntentJoin, id.ID, credential)
		commhttp.WriteResponse(rw, &ScanResult{Applied: true, Credential: credential})
	case transport.TypeUpdate:
		delta, err := o.engine.ApplyUpdate(payload)
		if err != nil {
			o.writeUpdateOutcome(rw, err)

			return
		}

		credential, err := o.store.GetByIssuer(payload.IssuerRef)
		if err != nil {
			commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
				fmt.Sprintf("failed to read merged credential: %s", err))

			return
		}

		o.enqueue(remote.IntentUpdate, id.ID, credential)
		commhttp.WriteResponse(rw, &ScanResult{Applied: true, Delta: delta, Credential: credential})
	case transport.TypeOffer:
		receipt, err := o.engine.ApplyOffer(payload)
		if err != nil {
			o.writeUpdateOutcome(rw, err)

			return
		}

		commhttp.WriteResponse(rw, &ScanResult{Applied: true, Offer: receipt})
	default:
		commhttp.WriteErrorResponse(rw, http.StatusBadRequest,
			fmt.Sprintf("unsupported payload type %s for wallet scan", payload.Type))
	}
}

// writeUpdateOutcome maps a reconciliation failure onto the response: rejections are
// inert 200 outcomes, anything else is a server failure.
func (o *Operation) writeUpdateOutcome(rw http.ResponseWriter, err error) {
	if rejection, ok := reconcile.AsRejection(err); ok {
		commhttp.WriteResponse(rw, &ScanResult{Applied: false, Reason: rejection.Reason})

		return
	}

	commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
		fmt.Sprintf("failed to apply payload: %s", err))
}

func (o *Operation) enqueue(kind, holderDID string, credential *wallet.Credential) {
	if o.queue == nil {
		return
	}

	err := o.queue.Enqueue(kind, &remote.Program{
		DID:        holderDID,
		ShopDID:    credential.IssuerRef,
		ShopName:   credential.IssuerName,
		Points:     credential.Points,
		Tier:       string(credential.Tier),
		IssuedDate: credential.IssuedAt,
		Signature:  credential.Signature,
	})
	if err != nil {
		logger.Warnf("failed to enqueue %s intent for issuer %s: %s", kind, credential.IssuerRef, err)
	}
}

func (o *Operation) credentialsHandler(rw http.ResponseWriter, _ *http.Request) {
	credentials, err := o.store.GetAll()
	if err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to list credentials: %s", err))

		return
	}

	commhttp.WriteResponse(rw, &CredentialsResponse{Credentials: credentials})
}

func (o *Operation) credentialByIssuerHandler(rw http.ResponseWriter, req *http.Request) {
	issuerRef := mux.Vars(req)["issuerRef"]

	credential, err := o.store.GetByIssuer(issuerRef)
	if err != nil {
		if errors.Is(err, storage.ErrValueNotFound) {
			commhttp.WriteErrorResponse(rw, http.StatusNotFound,
				fmt.Sprintf("no credential for issuer %s", issuerRef))

			return
		}

		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to read credential: %s", err))

		return
	}

	commhttp.WriteResponse(rw, credential)
}

func (o *Operation) deleteCredentialHandler(rw http.ResponseWriter, req *http.Request) {
	issuerRef := mux.Vars(req)["issuerRef"]

	if err := o.store.Delete(issuerRef); err != nil {
		if errors.Is(err, storage.ErrValueNotFound) {
			commhttp.WriteErrorResponse(rw, http.StatusNotFound,
				fmt.Sprintf("no credential for issuer %s", issuerRef))

			return
		}

		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to delete credential: %s", err))

		return
	}

	rw.WriteHeader(http.StatusOK)
}

func (o *Operation) exportHandler(rw http.ResponseWriter, _ *http.Request) {
	snapshot, err := o.store.ExportAll()
	if err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to export wallet: %s", err))

		return
	}

	commhttp.WriteResponse(rw, snapshot)
}

func (o *Operation) importHandler(rw http.ResponseWriter, req *http.Request) {
	snapshot := &wallet.Snapshot{}

	if err := json.NewDecoder(req.Body).Decode(snapshot); err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusBadRequest,
			fmt.Sprintf(invalidRequestErrMsg+": %s", err))

		return
	}

	if err := o.store.ImportAll(snapshot); err != nil {
		commhttp.WriteErrorResponse(rw, http.StatusInternalServerError,
			fmt.Sprintf("failed to import wallet: %s", err))

		return
	}

	rw.WriteHeader(http.StatusOK)
}
