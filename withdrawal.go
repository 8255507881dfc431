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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradielink/tradielink/internal/apierror"
	"github.com/tradielink/tradielink/model"
)

// WithdrawableBalance reports how much a tradie can currently cash out.
func (t *Tradielink) WithdrawableBalance(ctx context.Context, tradieID string) (decimal.Decimal, error) {
	tradie, err := t.datasource.GetUser(ctx, tradieID)
	if err != nil {
		return decimal.Zero, err
	}
	if tradie.Role != model.RoleTradie {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrForbidden,
			fmt.Sprintf("User '%s' has no withdrawable balance", tradieID), nil)
	}

	return t.datasource.GetWithdrawableBalance(ctx, tradieID)
}

// RequestWithdrawal opens a pending cash-out against the tradie's released
// balance. The amount check happens in-store so a burst of requests cannot
// overdraw.
func (t *Tradielink) RequestWithdrawal(ctx context.Context, tradieID string, amount decimal.Decimal, bankDetails string) (model.Withdrawal, error) {
	ctx, span := tracer.Start(ctx, "Requesting withdrawal")
	defer span.End()

	if !amount.IsPositive() {
		err := apierror.NewAPIError(apierror.ErrInvalidInput, "Withdrawal amount must be positive", nil)
		span.RecordError(err)
		return model.Withdrawal{}, err
	}

	tradie, err := t.datasource.GetUser(ctx, tradieID)
	if err != nil {
		span.RecordError(err)
		return model.Withdrawal{}, err
	}
	if tradie.Role != model.RoleTradie {
		err := apierror.NewAPIError(apierror.ErrForbidden,
			fmt.Sprintf("User '%s' cannot withdraw", tradieID), nil)
		span.RecordError(err)
		return model.Withdrawal{}, err
	}

	// Processing is currently free; the fee stays in the ledger so a rate
	// can be introduced without a schema change.
	fee := decimal.Zero
	withdrawal := model.Withdrawal{
		TradieID:        tradieID,
		RequestedAmount: amount,
		ProcessingFee:   fee,
		FinalAmount:     amount.Sub(fee),
		ReferenceNumber: fmt.Sprintf("WD-%d-%s", time.Now().Unix(), uuid.New().String()[:8]),
		BankDetails:     bankDetails,
	}

	created, err := t.datasource.RecordWithdrawal(ctx, withdrawal)
	if err != nil {
		span.RecordError(err)
		return model.Withdrawal{}, err
	}

	return created, nil
}

func (t *Tradielink) GetWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error) {
	return t.datasource.GetWithdrawal(ctx, id)
}

func (t *Tradielink) GetWithdrawalsByTradie(ctx context.Context, tradieID string, limit, offset int) ([]model.Withdrawal, error) {
	return t.datasource.GetWithdrawalsByTradie(ctx, tradieID, limit, offset)
}

// CompleteWithdrawal marks a pending withdrawal as paid out. Back office
// only.
func (t *Tradielink) CompleteWithdrawal(ctx context.Context, withdrawalID, notes string) (*model.Withdrawal, error) {
	ctx, span := tracer.Start(ctx, "Completing withdrawal")
	defer span.End()

	if err := t.datasource.CompleteWithdrawal(ctx, withdrawalID, notes); err != nil {
		span.RecordError(err)
		return nil, err
	}

	withdrawal, err := t.datasource.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	notify(EventWithdrawal, withdrawal.TradieID, map[string]string{
		"withdrawal_id": withdrawalID,
		"status":        string(withdrawal.Status),
		"final_amount":  withdrawal.FinalAmount.String(),
	})
	return withdrawal, nil
}

// RejectWithdrawal bounces a pending withdrawal; the funds become
// withdrawable again.
func (t *Tradielink) RejectWithdrawal(ctx context.Context, withdrawalID, notes string) (*model.Withdrawal, error) {
	ctx, span := tracer.Start(ctx, "Rejecting withdrawal")
	defer span.End()

	if err := t.datasource.RejectWithdrawal(ctx, withdrawalID, notes); err != nil {
		span.RecordError(err)
		return nil, err
	}

	withdrawal, err := t.datasource.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	notify(EventWithdrawal, withdrawal.TradieID, map[string]string{
		"withdrawal_id": withdrawalID,
		"status":        string(withdrawal.Status),
	})
	return withdrawal, nil
}
