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

package tradielink

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tradielink/tradielink/config"
	"github.com/tradielink/tradielink/internal/apierror"
	"github.com/tradielink/tradielink/internal/provider"
	"github.com/tradielink/tradielink/model"
)

// PaymentAttempt is what the client needs to finish collecting the money:
// the pending payment record plus either the intent secret or the redirect
// URL, depending on the provider's mode.
type PaymentAttempt struct {
	Payment      model.Payment `json:"payment"`
	Mode         provider.Mode `json:"mode"`
	ClientSecret string        `json:"client_secret,omitempty"`
	RedirectURL  string        `json:"redirect_url,omitempty"`
}

// ProcessPayment opens a payment attempt against an agreed project. The
// amount must match the agreed price within a cent; anything else fails
// closed before the provider is contacted.
func (t *Tradielink) ProcessPayment(ctx context.Context, projectID, payerID, providerName string, amount decimal.Decimal) (*PaymentAttempt, error) {
	ctx, span := tracer.Start(ctx, "Processing payment")
	defer span.End()

	project, err := t.datasource.GetProject(ctx, projectID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if project.OwnerID != payerID {
		err := apierror.NewAPIError(apierror.ErrForbidden,
			fmt.Sprintf("User '%s' does not own project '%s'", payerID, projectID), nil)
		span.RecordError(err)
		return nil, err
	}
	if project.Status != model.StatusAgreed {
		err := apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Project '%s' is not awaiting payment (status %s)", projectID, project.Status), nil)
		span.RecordError(err)
		return nil, err
	}
	if !model.AmountsEqual(amount, project.AgreedPrice) {
		err := apierror.NewAPIError(apierror.ErrBadRequest,
			fmt.Sprintf("Payment amount %s does not match agreed price %s", amount.String(), project.AgreedPrice.String()), nil)
		span.RecordError(err)
		return nil, err
	}

	p, err := t.providers.Get(providerName)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, err.Error(), err)
	}

	payment := model.Payment{
		ProjectID: projectID,
		QuoteID:   project.AgreedQuoteID,
		PayerID:   payerID,
		TradieID:  project.AgreedTradieID,
		Amount:    amount,
		Currency:  mustCurrency(),
		Provider:  p.Name(),
		Hash:      model.HashReference(projectID, project.AgreedQuoteID, amount),
	}
	payment, err = t.datasource.RecordPayment(ctx, payment)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	owner, err := t.datasource.GetUser(ctx, payerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	created, err := p.CreatePayment(ctx, provider.CreateRequest{
		PaymentID:   payment.PaymentID,
		Amount:      amount,
		Currency:    payment.Currency,
		Description: project.Title,
		PayerEmail:  owner.EmailAddress,
	})
	if err != nil {
		span.RecordError(err)
		if markErr := t.datasource.MarkPaymentFailed(ctx, payment.PaymentID); markErr != nil {
			logrus.Errorf("failed to mark payment %s failed: %v", payment.PaymentID, markErr)
		}
		return nil, apierror.NewAPIError(apierror.ErrProvider, "Payment provider rejected the attempt", err)
	}

	if err := t.datasource.UpdatePaymentProviderRef(ctx, payment.PaymentID, created.ProviderRef); err != nil {
		span.RecordError(err)
		return nil, err
	}
	payment.ProviderRef = created.ProviderRef

	return &PaymentAttempt{
		Payment:      payment,
		Mode:         p.Mode(),
		ClientSecret: created.ClientSecret,
		RedirectURL:  created.RedirectURL,
	}, nil
}

// ConfirmPayment is the intent-variant convergence point: the backend reads
// the provider's final word on the intent and settles on success. Safe to
// call repeatedly; a second confirmation of a settled payment is a
// conflict, not a double credit.
func (t *Tradielink) ConfirmPayment(ctx context.Context, paymentID string) (*model.EscrowAccount, error) {
	ctx, span := tracer.Start(ctx, "Confirming payment")
	defer span.End()

	payment, err := t.datasource.GetPayment(ctx, paymentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if payment.Status != model.PaymentPending {
		err := apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Payment '%s' is already %s", paymentID, payment.Status), nil)
		span.RecordError(err)
		return nil, err
	}

	p, err := t.providers.Get(payment.Provider)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, err.Error(), err)
	}

	status, err := p.GetPaymentStatus(ctx, payment.ProviderRef)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrProvider, "Failed to read payment status from provider", err)
	}

	switch status.State {
	case provider.StateSucceeded:
		if !status.Amount.IsZero() && !model.AmountsEqual(status.Amount, payment.Amount) {
			err := apierror.NewAPIError(apierror.ErrBadRequest,
				fmt.Sprintf("Provider captured %s but payment expects %s", status.Amount.String(), payment.Amount.String()), nil)
			span.RecordError(err)
			return nil, err
		}
		return t.settlePayment(ctx, payment)
	case provider.StateFailed:
		if err := t.datasource.MarkPaymentFailed(ctx, paymentID); err != nil {
			span.RecordError(err)
			return nil, err
		}
		return nil, apierror.NewAPIError(apierror.ErrProvider,
			fmt.Sprintf("Payment '%s' failed at the provider", paymentID), nil)
	default:
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Payment '%s' is still pending at the provider", paymentID), nil)
	}
}

// HandleProviderEvent is the redirect-variant convergence point: a signed
// asynchronous notification is verified, matched to its payment, and
// settled. Replayed deliveries of the same event settle nothing twice and
// return cleanly.
func (t *Tradielink) HandleProviderEvent(ctx context.Context, providerName string, payload []byte, signature string) error {
	ctx, span := tracer.Start(ctx, "Handling provider event")
	defer span.End()

	p, err := t.providers.Get(providerName)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrBadRequest, err.Error(), err)
	}

	event, err := p.VerifyEvent(payload, signature)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrForbidden, "Provider event rejected", err)
	}

	payment, err := t.datasource.GetPaymentByProviderRef(ctx, p.Name(), event.ProviderRef)
	if err != nil {
		span.RecordError(err)
		return err
	}

	switch event.State {
	case provider.StateSucceeded:
		if payment.Status == model.PaymentCompleted {
			// Duplicate delivery.
			return nil
		}
		if !event.Amount.IsZero() && !model.AmountsEqual(event.Amount, payment.Amount) {
			err := apierror.NewAPIError(apierror.ErrBadRequest,
				fmt.Sprintf("Provider reported %s but payment expects %s", event.Amount.String(), payment.Amount.String()), nil)
			span.RecordError(err)
			return err
		}
		_, err := t.settlePayment(ctx, payment)
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrConflict {
			// Lost the settlement race to a concurrent delivery.
			return nil
		}
		return err
	case provider.StateFailed:
		if payment.Status != model.PaymentPending {
			return nil
		}
		return t.datasource.MarkPaymentFailed(ctx, payment.PaymentID)
	default:
		return nil
	}
}

// settlePayment is the single settlement path both provider variants
// converge on. Fees are computed from the captured gross, and the payment
// completion, escrow opening, and project move to escrowed commit as one
// transaction.
func (t *Tradielink) settlePayment(ctx context.Context, payment *model.Payment) (*model.EscrowAccount, error) {
	ctx, span := tracer.Start(ctx, "Settling payment")
	defer span.End()

	tradie, err := t.datasource.GetUser(ctx, payment.TradieID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	fees, err := model.ComputeFees(payment.Amount, tradie.ParentTradieID != "")
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Fee computation failed", err)
	}

	now := time.Now()
	esc := model.EscrowAccount{
		ProjectID:           payment.ProjectID,
		TradieID:            payment.TradieID,
		ParentTradieID:      tradie.ParentTradieID,
		GrossAmount:         fees.Gross,
		PlatformFee:         fees.PlatformFee,
		AffiliateFee:        fees.AffiliateFee,
		TaxAmount:           fees.TaxAmount,
		NetAmount:           fees.Net,
		Currency:            payment.Currency,
		ProtectionStartDate: now,
		ProtectionEndDate:   now.Add(model.ProtectionPeriod),
	}

	settled, err := t.datasource.SettlePayment(ctx, payment.PaymentID, esc)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	notify(EventPaymentConfirmed, payment.TradieID, map[string]string{
		"project_id": payment.ProjectID,
		"payment_id": payment.PaymentID,
		"net_amount": settled.NetAmount.String(),
	})
	return settled, nil
}

func mustCurrency() string {
	conf, err := config.Fetch()
	if err != nil {
		return "AUD"
	}
	return conf.Currency
}
