package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradielink/tradielink/internal/apierror"
	"github.com/tradielink/tradielink/model"
)

const withdrawableBalanceQuery = `
	SELECT
		COALESCE((SELECT SUM(net_amount) FROM escrow_accounts WHERE tradie_id = $1 AND status = 'released'), 0)
		+ COALESCE((SELECT SUM(amount) FROM affiliate_earnings WHERE parent_tradie_id = $1), 0)
		- COALESCE((SELECT SUM(requested_amount) FROM withdrawals WHERE tradie_id = $1 AND status != 'rejected'), 0)
`

// GetWithdrawableBalance derives the cash-out ceiling from the ledgers
// rather than a stored counter: released escrow plus affiliate earnings,
// less every non-rejected withdrawal.
func (d Datasource) GetWithdrawableBalance(ctx context.Context, tradieID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := d.Conn.QueryRowContext(ctx, withdrawableBalanceQuery, tradieID).Scan(&balance)
	if err != nil {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to compute withdrawable balance", err)
	}

	return balance, nil
}

// RecordWithdrawal opens a pending withdrawal after checking the ledger
// balance inside the same transaction. The check and the insert commit
// together, so two concurrent requests cannot both draw the same funds
// past the ceiling.
func (d Datasource) RecordWithdrawal(ctx context.Context, withdrawal model.Withdrawal) (model.Withdrawal, error) {
	withdrawal.WithdrawalID = GenerateUUIDWithSuffix("wdl")
	withdrawal.Status = model.WithdrawalPending
	withdrawal.CreatedAt = time.Now()

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return model.Withdrawal{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx, withdrawableBalanceQuery, withdrawal.TradieID).Scan(&balance)
	if err != nil {
		return model.Withdrawal{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to compute withdrawable balance", err)
	}

	if withdrawal.RequestedAmount.GreaterThan(balance) {
		return model.Withdrawal{}, apierror.NewAPIError(apierror.ErrBadRequest,
			fmt.Sprintf("Requested amount %s exceeds withdrawable balance %s",
				withdrawal.RequestedAmount.String(), balance.String()), nil)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO withdrawals (withdrawal_id, tradie_id, requested_amount, processing_fee, final_amount,
			status, reference_number, bank_details, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, withdrawal.WithdrawalID, withdrawal.TradieID, withdrawal.RequestedAmount, withdrawal.ProcessingFee,
		withdrawal.FinalAmount, withdrawal.Status, withdrawal.ReferenceNumber, withdrawal.BankDetails,
		withdrawal.Notes, withdrawal.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Withdrawal{}, apierror.NewAPIError(apierror.ErrConflict,
				fmt.Sprintf("Reference number '%s' already used", withdrawal.ReferenceNumber), err)
		}
		return model.Withdrawal{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record withdrawal", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Withdrawal{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return withdrawal, nil
}

func scanWithdrawal(row interface{ Scan(dest ...interface{}) error }) (*model.Withdrawal, error) {
	withdrawal := &model.Withdrawal{}
	var bankDetails, notes sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(&withdrawal.ID, &withdrawal.WithdrawalID, &withdrawal.TradieID,
		&withdrawal.RequestedAmount, &withdrawal.ProcessingFee, &withdrawal.FinalAmount,
		&withdrawal.Status, &withdrawal.ReferenceNumber, &bankDetails, &notes,
		&withdrawal.CreatedAt, &processedAt)
	if err != nil {
		return nil, err
	}

	withdrawal.BankDetails = bankDetails.String
	withdrawal.Notes = notes.String
	withdrawal.ProcessedAt = processedAt.Time

	return withdrawal, nil
}

const withdrawalColumns = `id, withdrawal_id, tradie_id, requested_amount, processing_fee, final_amount,
	status, reference_number, bank_details, notes, created_at, processed_at`

func (d Datasource) GetWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM withdrawals WHERE withdrawal_id = $1
	`, withdrawalColumns), id)

	withdrawal, err := scanWithdrawal(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound,
				fmt.Sprintf("Withdrawal with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve withdrawal", err)
	}

	return withdrawal, nil
}

func (d Datasource) GetWithdrawalsByTradie(ctx context.Context, tradieID string, limit, offset int) ([]model.Withdrawal, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM withdrawals WHERE tradie_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, withdrawalColumns), tradieID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve withdrawals", err)
	}
	defer rows.Close()

	var withdrawals []model.Withdrawal
	for rows.Next() {
		withdrawal, err := scanWithdrawal(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan withdrawal data", err)
		}
		withdrawals = append(withdrawals, *withdrawal)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over withdrawals", err)
	}

	return withdrawals, nil
}

// CompleteWithdrawal finalizes a pending withdrawal and draws down the
// tradie's stored balance.
func (d Datasource) CompleteWithdrawal(ctx context.Context, withdrawalID, notes string) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var tradieID string
	var requestedAmount decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		UPDATE withdrawals SET status = 'completed', notes = $2, processed_at = NOW()
		WHERE withdrawal_id = $1 AND status = 'pending'
		RETURNING tradie_id, requested_amount
	`, withdrawalID, notes).Scan(&tradieID, &requestedAmount)
	if err != nil {
		if err == sql.ErrNoRows {
			return apierror.NewAPIError(apierror.ErrConflict,
				fmt.Sprintf("Withdrawal '%s' is not pending", withdrawalID), nil)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to complete withdrawal", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET balance = balance - $2 WHERE user_id = $1
	`, tradieID, requestedAmount)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to debit tradie balance", err)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return nil
}

// RejectWithdrawal returns a pending withdrawal to the tradie. Rejected
// rows drop out of the ledger sum, so the funds become withdrawable again.
func (d Datasource) RejectWithdrawal(ctx context.Context, withdrawalID, notes string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE withdrawals SET status = 'rejected', notes = $2, processed_at = NOW()
		WHERE withdrawal_id = $1 AND status = 'pending'
	`, withdrawalID, notes)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reject withdrawal", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Withdrawal '%s' is not pending", withdrawalID), nil)
	}

	return nil
}
