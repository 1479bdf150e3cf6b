/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package support

import "net/http"

// HTTPHandler contains REST API handling details which can be used to build routers
// for http requests.
type HTTPHandler struct {
	path   string
	method string
	handle http.HandlerFunc
}

// NewHTTPHandler returns an instance of HTTPHandler that can be used to handle http requests.
func NewHTTPHandler(path, method string, handle http.HandlerFunc) *HTTPHandler {
	return &HTTPHandler{path: path, method: method, handle: handle}
}

// Path returns the http request path.
func (h *HTTPHandler) Path() string {
	return h.path
}

// Method returns the http request method type.
func (h *HTTPHandler) Method() string {
	return h.method
}

// Handle returns the http request handle func.
func (h *HTTPHandler) Handle() http.HandlerFunc {
	return h.handle
}
