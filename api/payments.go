/*
Copyright 2025 Tradielink Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/tradielink/tradielink/api/model"
	"github.com/tradielink/tradielink/internal/apierror"
)

// SignatureHeader carries the HMAC a redirect provider computes over the
// raw notification body.
const SignatureHeader = "X-Provider-Signature"

func (a Api) ProcessPayment(c *gin.Context) {
	id, _ := c.Params.Get("id")
	var req model2.ProcessPayment
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateProcessPayment(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.tradielink.ProcessPayment(c.Request.Context(), id, req.PayerID, req.Provider, req.Amount)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) ConfirmPayment(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.tradielink.ConfirmPayment(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleProviderEvent receives a provider's asynchronous notification. The
// raw body is read before any parsing because the signature covers the
// bytes on the wire.
func (a Api) HandleProviderEvent(c *gin.Context) {
	providerName, passed := c.Params.Get("provider")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider is required. pass it in the route /:provider"})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read notification body"})
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if err := a.tradielink.HandleProviderEvent(c.Request.Context(), providerName, payload, signature); err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
