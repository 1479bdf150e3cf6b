/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package remote is the best-effort bridge between local stores and the remote ledger
// service. The local store is always the fast path of record; the remote ledger is
// eventually consistent and serves cross-device access.
package remote

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/trustbloc/edge-core/pkg/log"
)

var logger = log.New("loyalty-adapter/remote")

const (
	joinPath      = "/loyalty-programs/join-by-did"
	updatePath    = "/loyalty-programs/update-points-by-did"
	byDIDPathFmt  = "%s/loyalty-programs/by-did/%s"
	clientTimeout = 10 * time.Second
)

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Program is the remote ledger's record of one holder-shop relationship.
type Program struct {
	DID        string    `json:"did"`
	ShopDID    string    `json:"shopDID"`
	ShopName   string    `json:"shopName"`
	Points     int       `json:"points"`
	Tier       string    `json:"tier"`
	IssuedDate time.Time `json:"issuedDate"`
	Signature  string    `json:"signature,omitempty"`
}

type updateRequest struct {
	DID     string `json:"did"`
	ShopDID string `json:"shopDID"`
	Points  int    `json:"points"`
	Tier    string `json:"tier"`
}

// Client calls the remote ledger REST API.
type Client struct {
	baseURL    string
	httpClient httpClient
}

// NewClient returns a remote ledger client with a bounded request timeout.
func NewClient(baseURL string, tlsConfig *tls.Config) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   clientTimeout,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
	}
}

// PushJoin informs the remote ledger of a new holder-shop relationship.
func (c *Client) PushJoin(p *Program) error {
	return c.post(c.baseURL+joinPath, p)
}

// PushPointsUpdate informs the remote ledger of a points/tier change.
func (c *Client) PushPointsUpdate(p *Program) error {
	return c.post(c.baseURL+updatePath, &updateRequest{
		DID:     p.DID,
		ShopDID: p.ShopDID,
		Points:  p.Points,
		Tier:    p.Tier,
	})
}

// Programs fetches all program records for the holder DID, used to rebuild a wallet on
// a new device.
func (c *Client) Programs(did string) ([]*Program, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf(byDIDPathFmt, c.baseURL, did), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	data, err := sendHTTPRequest(req, c.httpClient, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var programs []*Program

	if err := json.Unmarshal(data, &programs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal programs: %w", err)
	}

	return programs, nil
}

func (c *Client) post(endpointURL string, body interface{}) error {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, endpointURL, bytes.NewBuffer(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	_, err = sendHTTPRequest(req, c.httpClient, http.StatusOK)

	return err
}

func sendHTTPRequest(req *http.Request, client httpClient, status int) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}

	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			logger.Warnf("failed to close response body")
		}
	}()

	if resp.StatusCode != status {
		body, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			logger.Warnf("failed to read response body for status: %d", resp.StatusCode)
		}

		return nil, fmt.Errorf("http request: %d %s", resp.StatusCode, string(body))
	}

	return ioutil.ReadAll(resp.Body)
}
