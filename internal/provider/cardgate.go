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

package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/tradielink/tradielink/config"
	"github.com/tradielink/tradielink/internal/request"
)

// CardGate is the intent-based card provider. The backend creates a payment
// intent, the client confirms it with the returned secret, and the backend
// reads the intent's final status before settling.
type CardGate struct {
	conf config.CardGateConfig
}

func NewCardGate(conf config.CardGateConfig) *CardGate {
	return &CardGate{conf: conf}
}

func (c *CardGate) Name() string { return "cardgate" }
func (c *CardGate) Mode() Mode   { return ModeIntent }

func (c *CardGate) timeout() time.Duration {
	if c.conf.TimeoutSec > 0 {
		return time.Duration(c.conf.TimeoutSec) * time.Second
	}
	return request.DefaultTimeout
}

type cardGateIntent struct {
	ID           string          `json:"id"`
	ClientSecret string          `json:"client_secret"`
	Status       string          `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Error        *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *CardGate) CreatePayment(ctx context.Context, createReq CreateRequest) (*CreateResponse, error) {
	payload, err := request.ToJsonReq(map[string]interface{}{
		"amount":        createReq.Amount,
		"currency":      createReq.Currency,
		"description":   createReq.Description,
		"receipt_email": createReq.PayerEmail,
		"metadata": map[string]string{
			"payment_id": createReq.PaymentID,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "cardgate: failed to encode intent request")
	}

	var intent cardGateIntent
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			fmt.Sprintf("%s/v1/payment_intents", c.conf.BaseURL), payload)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Basic "+request.BasicAuth(c.conf.SecretKey, ""))

		resp, err := request.CallWithTimeout(req, &intent, c.timeout())
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("cardgate returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			msg := "intent rejected"
			if intent.Error != nil {
				msg = intent.Error.Message
			}
			return backoff.Permanent(fmt.Errorf("cardgate: %s", msg))
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(retryPolicy(), ctx)); err != nil {
		return nil, errors.Wrap(err, "cardgate: failed to create payment intent")
	}

	return &CreateResponse{
		ProviderRef:  intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (c *CardGate) GetPaymentStatus(ctx context.Context, providerRef string) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/payment_intents/%s", c.conf.BaseURL, providerRef), nil)
	if err != nil {
		return nil, errors.Wrap(err, "cardgate: failed to build status request")
	}
	req.Header.Set("Authorization", "Basic "+request.BasicAuth(c.conf.SecretKey, ""))

	var intent cardGateIntent
	resp, err := request.CallWithTimeout(req, &intent, c.timeout())
	if err != nil {
		return nil, errors.Wrap(err, "cardgate: status request failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cardgate: status request returned %d", resp.StatusCode)
	}

	return &StatusResponse{
		ProviderRef: intent.ID,
		State:       cardGateState(intent.Status),
		Amount:      intent.Amount,
		Currency:    intent.Currency,
	}, nil
}

// VerifyEvent is unsupported: confirmation is pulled over the status
// endpoint rather than pushed.
func (c *CardGate) VerifyEvent(_ []byte, _ string) (*Event, error) {
	return nil, errors.New("cardgate: does not send asynchronous events")
}

func cardGateState(status string) PaymentState {
	switch status {
	case "succeeded":
		return StateSucceeded
	case "canceled", "failed":
		return StateFailed
	default:
		return StatePending
	}
}

func retryPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 2 * time.Minute
	return policy
}
