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
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradielink/tradielink/internal/apierror"
	"github.com/tradielink/tradielink/model"
)

func withdrawalRow(withdrawalID, tradieID string, amount decimal.Decimal, status model.WithdrawalStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "withdrawal_id", "tradie_id", "requested_amount", "processing_fee", "final_amount",
		"status", "reference_number", "bank_details", "notes", "created_at", "processed_at",
	}).AddRow(1, withdrawalID, tradieID, amount.String(), "0", amount.String(),
		string(status), "WD-1-abc", "BSB 062-000 Acc 1234", nil, time.Now(), nil)
}

func TestWithdrawableBalance(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM users WHERE user_id =").
		WillReturnRows(userRow("usr_tradie", model.RoleTradie, nil, decimal.NewFromInt(500)))
	mock.ExpectQuery("COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("500"))

	balance, err := svc.WithdrawableBalance(context.Background(), "usr_tradie")

	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(500)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawableBalanceOwnerForbidden(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM users WHERE user_id =").
		WillReturnRows(userRow("usr_owner", model.RoleOwner, nil, decimal.Zero))

	_, err := svc.WithdrawableBalance(context.Background(), "usr_owner")

	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrForbidden, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestWithdrawal(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM users WHERE user_id =").
		WillReturnRows(userRow("usr_tradie", model.RoleTradie, nil, decimal.NewFromInt(1000)))

	mock.ExpectBegin()
	mock.ExpectQuery("COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("1000"))
	mock.ExpectExec("INSERT INTO withdrawals").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	withdrawal, err := svc.RequestWithdrawal(context.Background(), "usr_tradie",
		decimal.NewFromInt(400), "BSB 062-000 Acc 1234")

	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalPending, withdrawal.Status)
	assert.True(t, withdrawal.RequestedAmount.Equal(decimal.NewFromInt(400)))
	assert.True(t, withdrawal.FinalAmount.Equal(decimal.NewFromInt(400)))
	assert.True(t, strings.HasPrefix(withdrawal.ReferenceNumber, "WD-"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestWithdrawalExceedsBalance(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM users WHERE user_id =").
		WillReturnRows(userRow("usr_tradie", model.RoleTradie, nil, decimal.NewFromInt(100)))

	// The ceiling check happens inside the transaction; an over-draw rolls
	// back without writing a row.
	mock.ExpectBegin()
	mock.ExpectQuery("COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("100"))
	mock.ExpectRollback()

	_, err := svc.RequestWithdrawal(context.Background(), "usr_tradie",
		decimal.NewFromInt(400), "BSB 062-000 Acc 1234")

	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrBadRequest, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestWithdrawalNonPositiveAmount(t *testing.T) {
	svc, mock := newTestService(t)

	_, err := svc.RequestWithdrawal(context.Background(), "usr_tradie", decimal.Zero, "")

	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteWithdrawal(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE withdrawals SET status = 'completed'").
		WillReturnRows(sqlmock.NewRows([]string{"tradie_id", "requested_amount"}).
			AddRow("usr_tradie", "400"))
	mock.ExpectExec("UPDATE users SET balance").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("FROM withdrawals WHERE withdrawal_id =").
		WillReturnRows(withdrawalRow("wdl_1", "usr_tradie", decimal.NewFromInt(400), model.WithdrawalCompleted))

	withdrawal, err := svc.CompleteWithdrawal(context.Background(), "wdl_1", "paid via bank run")

	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalCompleted, withdrawal.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteWithdrawalNotPending(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE withdrawals SET status = 'completed'").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.CompleteWithdrawal(context.Background(), "wdl_1", "")

	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectWithdrawal(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec("UPDATE withdrawals SET status = 'rejected'").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("FROM withdrawals WHERE withdrawal_id =").
		WillReturnRows(withdrawalRow("wdl_1", "usr_tradie", decimal.NewFromInt(400), model.WithdrawalRejected))

	withdrawal, err := svc.RejectWithdrawal(context.Background(), "wdl_1", "bank details invalid")

	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalRejected, withdrawal.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWithdrawalsByTradie(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM withdrawals WHERE tradie_id =").
		WithArgs("usr_tradie", 20, 0).
		WillReturnRows(withdrawalRow("wd_1", "usr_tradie", decimal.NewFromInt(400), model.WithdrawalCompleted))

	withdrawals, err := svc.GetWithdrawalsByTradie(context.Background(), "usr_tradie", 20, 0)

	require.NoError(t, err)
	require.Len(t, withdrawals, 1)
	assert.Equal(t, "wd_1", withdrawals[0].WithdrawalID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
