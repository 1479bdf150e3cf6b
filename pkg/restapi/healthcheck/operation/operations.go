/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/loyaltybloc/loyalty-adapter/internal/common/support"
	"github.com/loyaltybloc/loyalty-adapter/pkg/restapi"
)

var logger = log.New("loyalty-adapter/healthcheck")

const healthCheckEndpoint = "/healthcheck"

// Operation defines handlers for the health check.
type Operation struct{}

// New returns a new health check operation instance.
func New() *Operation {
	return &Operation{}
}

// GetRESTHandlers get all controller API handler available for this service.
func (c *Operation) GetRESTHandlers() []restapi.Handler {
	return []restapi.Handler{
		support.NewHTTPHandler(healthCheckEndpoint, http.MethodGet, c.healthCheckHandler),
	}
}

type healthCheckResp struct {
	Status      string    `json:"status"`
	CurrentTime time.Time `json:"currentTime"`
}

func (c *Operation) healthCheckHandler(rw http.ResponseWriter, _ *http.Request) {
	rw.WriteHeader(http.StatusOK)

	err := json.NewEncoder(rw).Encode(&healthCheckResp{
		Status:      "success",
		CurrentTime: time.Now(),
	})
	if err != nil {
		logger.Errorf("healthcheck response failure, %s", err)
	}
}
