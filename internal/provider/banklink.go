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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/tradielink/tradielink/config"
	"github.com/tradielink/tradielink/internal/request"
)

// BankLink is the redirect-based bank transfer provider. The backend
// registers the transaction, the payer completes it on the provider's hosted
// page, and the provider reports the outcome on a signed notification
// endpoint.
type BankLink struct {
	conf config.BankLinkConfig
}

func NewBankLink(conf config.BankLinkConfig) *BankLink {
	return &BankLink{conf: conf}
}

func (b *BankLink) Name() string { return "banklink" }
func (b *BankLink) Mode() Mode   { return ModeRedirect }

func (b *BankLink) timeout() time.Duration {
	if b.conf.TimeoutSec > 0 {
		return time.Duration(b.conf.TimeoutSec) * time.Second
	}
	return request.DefaultTimeout
}

type bankLinkTransaction struct {
	TransactionRef string          `json:"transaction_ref"`
	PaymentURL     string          `json:"payment_url"`
	Status         string          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Message        string          `json:"message,omitempty"`
}

func (b *BankLink) CreatePayment(ctx context.Context, createReq CreateRequest) (*CreateResponse, error) {
	payload, err := request.ToJsonReq(map[string]interface{}{
		"merchant_code": b.conf.MerchantCode,
		"auth_code":     b.conf.AuthCode,
		"amount":        createReq.Amount,
		"currency":      createReq.Currency,
		"reference":     createReq.PaymentID,
		"description":   createReq.Description,
		"success_url":   b.conf.SuccessURL,
		"failure_url":   b.conf.FailureURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "banklink: failed to encode transaction request")
	}

	var txn bankLinkTransaction
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			fmt.Sprintf("%s/api/transactions", b.conf.BaseURL), payload)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := request.CallWithTimeout(req, &txn, b.timeout())
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("banklink returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return backoff.Permanent(fmt.Errorf("banklink: %s", txn.Message))
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(retryPolicy(), ctx)); err != nil {
		return nil, errors.Wrap(err, "banklink: failed to register transaction")
	}

	return &CreateResponse{
		ProviderRef: txn.TransactionRef,
		RedirectURL: txn.PaymentURL,
	}, nil
}

func (b *BankLink) GetPaymentStatus(ctx context.Context, providerRef string) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/transactions/%s?merchant_code=%s", b.conf.BaseURL, providerRef, b.conf.MerchantCode), nil)
	if err != nil {
		return nil, errors.Wrap(err, "banklink: failed to build status request")
	}

	var txn bankLinkTransaction
	resp, err := request.CallWithTimeout(req, &txn, b.timeout())
	if err != nil {
		return nil, errors.Wrap(err, "banklink: status request failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("banklink: status request returned %d", resp.StatusCode)
	}

	return &StatusResponse{
		ProviderRef: txn.TransactionRef,
		State:       bankLinkState(txn.Status),
		Amount:      txn.Amount,
		Currency:    txn.Currency,
	}, nil
}

type bankLinkNotification struct {
	TransactionRef string          `json:"transaction_ref"`
	Status         string          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

// VerifyEvent authenticates a notification with an HMAC-SHA256 of the raw
// body under the shared notification secret. The comparison is constant
// time.
func (b *BankLink) VerifyEvent(payload []byte, signature string) (*Event, error) {
	mac := hmac.New(sha256.New, []byte(b.conf.NotificationSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return nil, errors.New("banklink: malformed notification signature")
	}
	expectedRaw, _ := hex.DecodeString(expected)
	if !hmac.Equal(provided, expectedRaw) {
		return nil, errors.New("banklink: notification signature mismatch")
	}

	var notif bankLinkNotification
	if err := json.Unmarshal(payload, &notif); err != nil {
		return nil, errors.Wrap(err, "banklink: failed to parse notification")
	}

	return &Event{
		ProviderRef: notif.TransactionRef,
		State:       bankLinkState(notif.Status),
		Amount:      notif.Amount,
		Currency:    notif.Currency,
	}, nil
}

func bankLinkState(status string) PaymentState {
	switch status {
	case "completed", "success":
		return StateSucceeded
	case "failed", "expired", "cancelled":
		return StateFailed
	default:
		return StatePending
	}
}
