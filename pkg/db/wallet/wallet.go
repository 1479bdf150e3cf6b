/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package wallet is the holder-side credential store.
package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/trustbloc/edge-core/pkg/log"
	"github.com/trustbloc/edge-core/pkg/storage"

	walletcrypto "github.com/loyaltybloc/loyalty-adapter/pkg/crypto"
	"github.com/loyaltybloc/loyalty-adapter/pkg/identity"
	"github.com/loyaltybloc/loyalty-adapter/pkg/tier"
)

var logger = log.New("loyalty-adapter/wallet")

const (
	storeName = "wallet"

	identityKey        = "identity"
	settingsKey        = "settings"
	credentialKeyFmt   = "credential_%s"
	credentialIndexKey = "credential_index"
	offerKeyFmt        = "offer_%s"
	offerIndexKey      = "offer_index"
)

// Store is the holder's local, durable credential store.
type Store struct {
	store            storage.Store
	passphrase       string
	defaultProtected bool

	mu sync.Mutex // guards index read-modify-write
}

// New returns the wallet store. Secrets are sealed under a key derived from pin; with
// an empty pin the fixed default passphrase is used and DefaultProtected reports true.
func New(p storage.Provider, pin string) (*Store, error) {
	err := p.CreateStore(storeName)
	if err != nil && !errors.Is(err, storage.ErrDuplicateStore) {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	store, err := p.OpenStore(storeName)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	passphrase := pin
	defaultProtected := false

	if passphrase == "" {
		passphrase = walletcrypto.DefaultPassphrase
		defaultProtected = true
	}

	return &Store{store: store, passphrase: passphrase, defaultProtected: defaultProtected}, nil
}

// DefaultProtected reports whether wallet secrets are sealed under the default
// passphrase because no PIN is set. The holder must be able to observe this state.
func (s *Store) DefaultProtected() bool {
	return s.defaultProtected
}

// SaveIdentity seals the identity's secret fields and persists the record.
func (s *Store) SaveIdentity(id *identity.Identity) error {
	sealed, err := s.sealIdentity(id)
	if err != nil {
		return err
	}

	if err := s.store.Put(identityKey, sealed); err != nil {
		return fmt.Errorf("failed to save identity: %w", err)
	}

	return nil
}

// Identity fetches the stored identity with its secret fields opened.
func (s *Store) Identity() (*identity.Identity, error) {
	bits, err := s.store.Get(identityKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch identity: %w", err)
	}

	return s.openIdentity(bits)
}

// Upsert stores the credential, replacing any prior record for the same issuer. The
// tier is always re-derived from points so it can never diverge from the tier engine.
func (s *Store) Upsert(c *Credential) error {
	if err := validateCredential(c); err != nil {
		return err
	}

	c.Tier = tier.FromPoints(c.Points)

	bits, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Put(credentialKey(c.IssuerRef), bits); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return s.addToIndex(credentialIndexKey, c.IssuerRef)
}

// GetByIssuer fetches the credential for the given issuer.
func (s *Store) GetByIssuer(issuerRef string) (*Credential, error) {
	bits, err := s.store.Get(credentialKey(issuerRef))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credential for issuer %s: %w", issuerRef, err)
	}

	result := &Credential{}

	if err := json.Unmarshal(bits, result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	return result, nil
}

// GetAll returns all credentials, ordered by issuer ref.
func (s *Store) GetAll() ([]*Credential, error) {
	refs, err := s.readIndex(credentialIndexKey)
	if err != nil {
		return nil, err
	}

	credentials := make([]*Credential, 0, len(refs))

	for _, ref := range refs {
		c, err := s.GetByIssuer(ref)
		if err != nil {
			return nil, err
		}

		credentials = append(credentials, c)
	}

	return credentials, nil
}

// Delete removes the credential for the given issuer (holder revocation).
func (s *Store) Delete(issuerRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(credentialKey(issuerRef)); err != nil {
		return fmt.Errorf("failed to delete credential for issuer %s: %w", issuerRef, err)
	}

	return s.removeFromIndex(credentialIndexKey, issuerRef)
}

// SaveSettings persists wallet settings.
func (s *Store) SaveSettings(settings *Settings) error {
	bits, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := s.store.Put(settingsKey, bits); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}

// Settings fetches wallet settings, defaulting to the zero value when none are stored.
func (s *Store) Settings() (*Settings, error) {
	bits, err := s.store.Get(settingsKey)
	if err != nil {
		if errors.Is(err, storage.ErrValueNotFound) {
			return &Settings{PINSet: !s.defaultProtected}, nil
		}

		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}

	result := &Settings{}

	if err := json.Unmarshal(bits, result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	return result, nil
}

// SaveOfferReceipt records a broadcast offer. Saving the same offer twice is a no-op.
func (s *Store) SaveOfferReceipt(r *OfferReceipt) error {
	if r.OfferID == "" {
		return errors.New("offer id mandatory")
	}

	bits, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal offer receipt: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Put(offerKey(r.OfferID), bits); err != nil {
		return fmt.Errorf("failed to save offer receipt: %w", err)
	}

	return s.addToIndex(offerIndexKey, r.OfferID)
}

// OfferReceipts returns all stored offer receipts.
func (s *Store) OfferReceipts() ([]*OfferReceipt, error) {
	ids, err := s.readIndex(offerIndexKey)
	if err != nil {
		return nil, err
	}

	receipts := make([]*OfferReceipt, 0, len(ids))

	for _, id := range ids {
		bits, err := s.store.Get(offerKey(id))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch offer receipt %s: %w", id, err)
		}

		r := &OfferReceipt{}

		if err := json.Unmarshal(bits, r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal offer receipt: %w", err)
		}

		receipts = append(receipts, r)
	}

	return receipts, nil
}

// ExportAll snapshots the identity, credential and settings partitions.
func (s *Store) ExportAll() (*Snapshot, error) {
	id, err := s.Identity()
	if err != nil && !errors.Is(err, storage.ErrValueNotFound) {
		return nil, err
	}

	credentials, err := s.GetAll()
	if err != nil {
		return nil, err
	}

	settings, err := s.Settings()
	if err != nil {
		return nil, err
	}

	return &Snapshot{Identity: id, Credentials: credentials, Settings: settings}, nil
}

// ImportAll replaces the identity, credential and settings partitions with the
// snapshot's contents. Credentials not present in the snapshot are removed. The
// replacement is atomic: the snapshot is fully validated and serialized up front, and
// if any write fails the previously written keys are restored.
func (s *Store) ImportAll(snapshot *Snapshot) error {
	puts, err := s.stageImport(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deletes, err := s.stageImportDeletes(puts)
	if err != nil {
		return err
	}

	applied := make(map[string][]byte, len(puts)+len(deletes))

	for key, value := range puts {
		prior, err := s.store.Get(key)
		if err != nil && !errors.Is(err, storage.ErrValueNotFound) {
			s.rollback(applied)

			return fmt.Errorf("failed to stage import of %s: %w", key, err)
		}

		if err := s.store.Put(key, value); err != nil {
			s.rollback(applied)

			return fmt.Errorf("failed to import %s: %w", key, err)
		}

		applied[key] = prior
	}

	for key, prior := range deletes {
		if err := s.store.Delete(key); err != nil {
			s.rollback(applied)

			return fmt.Errorf("failed to remove %s during import: %w", key, err)
		}

		applied[key] = prior
	}

	return nil
}

// stageImportDeletes lists the credential records whose issuer refs are absent from the
// staged snapshot, keyed with their current values for rollback. Must be called with
// s.mu held.
func (s *Store) stageImportDeletes(puts map[string][]byte) (map[string][]byte, error) {
	refs, err := s.readIndex(credentialIndexKey)
	if err != nil {
		return nil, err
	}

	deletes := make(map[string][]byte)

	for _, ref := range refs {
		key := credentialKey(ref)

		if _, kept := puts[key]; kept {
			continue
		}

		prior, err := s.store.Get(key)
		if err != nil {
			if errors.Is(err, storage.ErrValueNotFound) {
				continue
			}

			return nil, fmt.Errorf("failed to stage removal of %s: %w", key, err)
		}

		deletes[key] = prior
	}

	return deletes, nil
}

func (s *Store) stageImport(snapshot *Snapshot) (map[string][]byte, error) {
	if snapshot == nil || snapshot.Identity == nil || snapshot.Settings == nil {
		return nil, errors.New("snapshot must contain identity, credentials and settings")
	}

	puts := make(map[string][]byte)

	sealed, err := s.sealIdentity(snapshot.Identity)
	if err != nil {
		return nil, err
	}

	puts[identityKey] = sealed

	refs := make([]string, 0, len(snapshot.Credentials))

	for _, c := range snapshot.Credentials {
		if err := validateCredential(c); err != nil {
			return nil, err
		}

		c.Tier = tier.FromPoints(c.Points)

		bits, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal credential: %w", err)
		}

		puts[credentialKey(c.IssuerRef)] = bits
		refs = append(refs, c.IssuerRef)
	}

	sort.Strings(refs)

	indexBits, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credential index: %w", err)
	}

	puts[credentialIndexKey] = indexBits

	settingsBits, err := json.Marshal(snapshot.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}

	puts[settingsKey] = settingsBits

	return puts, nil
}

func (s *Store) rollback(applied map[string][]byte) {
	for key, prior := range applied {
		if prior == nil {
			if err := s.store.Delete(key); err != nil {
				logger.Errorf("rollback failed to delete %s: %s", key, err)
			}

			continue
		}

		if err := s.store.Put(key, prior); err != nil {
			logger.Errorf("rollback failed to restore %s: %s", key, err)
		}
	}
}

func (s *Store) sealIdentity(id *identity.Identity) ([]byte, error) {
	if id.ID == "" {
		return nil, errors.New("identity id mandatory")
	}

	record := *id

	var err error

	record.PrivateKeyMaterial, err = walletcrypto.Protect([]byte(id.PrivateKeyMaterial), s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to seal private key material: %w", err)
	}

	record.RecoveryPhrase, err = walletcrypto.Protect([]byte(id.RecoveryPhrase), s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to seal recovery phrase: %w", err)
	}

	bits, err := json.Marshal(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal identity: %w", err)
	}

	return bits, nil
}

func (s *Store) openIdentity(bits []byte) (*identity.Identity, error) {
	record := &identity.Identity{}

	if err := json.Unmarshal(bits, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity: %w", err)
	}

	keyMaterial, err := walletcrypto.Unprotect(record.PrivateKeyMaterial, s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to open private key material: %w", err)
	}

	phrase, err := walletcrypto.Unprotect(record.RecoveryPhrase, s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to open recovery phrase: %w", err)
	}

	record.PrivateKeyMaterial = string(keyMaterial)
	record.RecoveryPhrase = string(phrase)

	return record, nil
}

// addToIndex and removeFromIndex must be called with s.mu held.
func (s *Store) addToIndex(indexKey, member string) error {
	members, err := s.readIndex(indexKey)
	if err != nil {
		return err
	}

	for _, m := range members {
		if m == member {
			return nil
		}
	}

	members = append(members, member)
	sort.Strings(members)

	return s.writeIndex(indexKey, members)
}

func (s *Store) removeFromIndex(indexKey, member string) error {
	members, err := s.readIndex(indexKey)
	if err != nil {
		return err
	}

	filtered := members[:0]

	for _, m := range members {
		if m != member {
			filtered = append(filtered, m)
		}
	}

	return s.writeIndex(indexKey, filtered)
}

func (s *Store) readIndex(indexKey string) ([]string, error) {
	bits, err := s.store.Get(indexKey)
	if err != nil {
		if errors.Is(err, storage.ErrValueNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch index %s: %w", indexKey, err)
	}

	var members []string

	if err := json.Unmarshal(bits, &members); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index %s: %w", indexKey, err)
	}

	return members, nil
}

func (s *Store) writeIndex(indexKey string, members []string) error {
	bits, err := json.Marshal(members)
	if err != nil {
		return fmt.Errorf("failed to marshal index %s: %w", indexKey, err)
	}

	if err := s.store.Put(indexKey, bits); err != nil {
		return fmt.Errorf("failed to save index %s: %w", indexKey, err)
	}

	return nil
}

func validateCredential(c *Credential) error {
	if c == nil {
		return errors.New("credential mandatory")
	}

	if c.HolderDID == "" {
		return errors.New("credential holder DID mandatory")
	}

	if c.IssuerRef == "" {
		return errors.New("credential issuer ref mandatory")
	}

	if c.Points < 0 {
		return errors.New("credential points must not be negative")
	}

	return nil
}

func credentialKey(issuerRef string) string {
	return fmt.Sprintf(credentialKeyFmt, issuerRef)
}

func offerKey(offerID string) string {
	return fmt.Sprintf(offerKeyFmt, offerID)
}
