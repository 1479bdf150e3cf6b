/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package shop manages shop-side profiles. A profile carries the shop's public
// identity and the signing key its issued updates are verified against.
package shop

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trustbloc/edge-core/pkg/storage"

	"github.com/loyaltybloc/loyalty-adapter/pkg/identity"
	"github.com/loyaltybloc/loyalty-adapter/internal/common/adapterutil"
)

const (
	keyPattern       = "%s_%s"
	profileKeyPrefix = "profile"

	storeName = "shop"
)

// Profile db operation.
type Profile struct {
	store storage.Store
}

// ProfileData struct for shop profile.
// PublicKey is published in join payloads so holders can pin it; SigningKey stays
// server-side and signs points updates.
type ProfileData struct {
	ID         string     `json:"id,omitempty"`
	Name       string     `json:"name"`
	URL        string     `json:"url"`
	DID        string     `json:"did"`
	PublicKey  string     `json:"publicKey"`
	SigningKey string     `json:"signingKey,omitempty"`
	CreatedAt  *time.Time `json:"createdAt"`
}

// New returns new shop profile instance.
func New(provider storage.Provider) (*Profile, error) {
	err := provider.CreateStore(storeName)
	if err != nil && !errors.Is(err, storage.ErrDuplicateStore) {
		return nil, fmt.Errorf("failed to create store %s: %w", storeName, err)
	}

	store, err := provider.OpenStore(storeName)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", storeName, err)
	}

	return &Profile{store: store}, nil
}

// SaveProfile saves the profile data.
func (c *Profile) SaveProfile(data *ProfileData) error {
	// validate the profile
	if err := validateProfileRequest(data); err != nil {
		return fmt.Errorf("profile request is invalid: %w", err)
	}

	// verify profile exists
	profile, err := c.GetProfile(data.ID)
	if err != nil && !errors.Is(err, storage.ErrValueNotFound) {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	if profile != nil {
		return fmt.Errorf("profile %s already exists", profile.ID)
	}

	// save the profile
	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("shop profile save - marshalling error: %w", err)
	}

	return c.store.Put(getDBKey(data.ID), bytes)
}

// GetProfile retrieves the profile data based on id.
func (c *Profile) GetProfile(id string) (*ProfileData, error) {
	bytes, err := c.store.Get(getDBKey(id))
	if err != nil {
		return nil, fmt.Errorf("get profile : %w", err)
	}

	response := &ProfileData{}

	err = json.Unmarshal(bytes, response)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile data: %w", err)
	}

	return response, nil
}

func validateProfileRequest(pr *ProfileData) error {
	if pr.ID == "" {
		return fmt.Errorf("profile id mandatory")
	}

	if pr.Name == "" {
		return fmt.Errorf("profile name mandatory")
	}

	if !strings.HasPrefix(pr.DID, identity.DIDPrefix) {
		return fmt.Errorf("profile did is invalid")
	}

	if !adapterutil.ValidHTTPURL(pr.URL) {
		return fmt.Errorf("shop url is invalid")
	}

	return nil
}

func getDBKey(id string) string {
	return fmt.Sprintf(keyPattern, profileKeyPrefix, id)
}
