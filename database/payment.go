package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tradielink/tradielink/internal/apierror"
	"github.com/tradielink/tradielink/model"
)

func (d Datasource) RecordPayment(ctx context.Context, payment model.Payment) (model.Payment, error) {
	payment.PaymentID = GenerateUUIDWithSuffix("pay")
	payment.Status = model.PaymentPending
	payment.CreatedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO payments (payment_id, project_id, quote_id, payer_id, tradie_id, amount, currency,
			provider, provider_ref, status, hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, payment.PaymentID, payment.ProjectID, payment.QuoteID, payment.PayerID, payment.TradieID,
		payment.Amount, payment.Currency, payment.Provider, payment.ProviderRef, payment.Status,
		payment.Hash, payment.CreatedAt)
	if err != nil {
		return model.Payment{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record payment", err)
	}

	return payment, nil
}

func scanPayment(row interface{ Scan(dest ...interface{}) error }) (*model.Payment, error) {
	payment := &model.Payment{}
	var providerRef sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&payment.PaymentID, &payment.ProjectID, &payment.QuoteID, &payment.PayerID,
		&payment.TradieID, &payment.Amount, &payment.Currency, &payment.Provider, &providerRef,
		&payment.Status, &payment.Hash, &payment.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	payment.ProviderRef = providerRef.String
	payment.CompletedAt = completedAt.Time

	return payment, nil
}

const paymentColumns = `payment_id, project_id, quote_id, payer_id, tradie_id, amount, currency,
	provider, provider_ref, status, hash, created_at, completed_at`

func (d Datasource) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM payments WHERE payment_id = $1
	`, paymentColumns), id)

	payment, err := scanPayment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Payment with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payment", err)
	}

	return payment, nil
}

// GetPaymentByProviderRef looks a payment up by the provider's own
// reference. Async provider notifications carry only that reference.
func (d Datasource) GetPaymentByProviderRef(ctx context.Context, provider, providerRef string) (*model.Payment, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM payments WHERE provider = $1 AND provider_ref = $2
	`, paymentColumns), provider, providerRef)

	payment, err := scanPayment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound,
				fmt.Sprintf("Payment with provider reference '%s' not found", providerRef), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payment", err)
	}

	return payment, nil
}

func (d Datasource) UpdatePaymentProviderRef(ctx context.Context, paymentID, providerRef string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE payments SET provider_ref = $2 WHERE payment_id = $1 AND status = 'pending'
	`, paymentID, providerRef)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update provider reference", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Payment '%s' is not pending", paymentID), nil)
	}

	return nil
}

func (d Datasource) MarkPaymentFailed(ctx context.Context, paymentID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE payments SET status = 'failed' WHERE payment_id = $1 AND status = 'pending'
	`, paymentID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark payment failed", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Payment '%s' is not pending", paymentID), nil)
	}

	return nil
}

// SettlePayment is the single funding path for escrow. In one transaction
// the payment flips pending -> completed, the escrow account is opened with
// its fee breakdown, and the project moves agreed -> escrowed. A second
// settlement of the same payment loses the conditional update and rolls
// back, which keeps provider retries and webhook replays harmless.
func (d Datasource) SettlePayment(ctx context.Context, paymentID string, esc model.EscrowAccount) (*model.EscrowAccount, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = 'completed', completed_at = NOW()
		WHERE payment_id = $1 AND status = 'pending'
	`, paymentID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apierror.NewAPIError(apierror.ErrConflict,
				fmt.Sprintf("Project '%s' already has a completed payment", esc.ProjectID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to complete payment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Payment '%s' has already been settled", paymentID), nil)
	}

	esc.EscrowID = GenerateUUIDWithSuffix("esc")
	esc.PaymentID = paymentID
	esc.Status = model.EscrowHeld
	esc.CreatedAt = time.Now()

	var parentTradieID interface{}
	if esc.ParentTradieID != "" {
		parentTradieID = esc.ParentTradieID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO escrow_accounts (escrow_id, payment_id, project_id, tradie_id, parent_tradie_id,
			gross_amount, platform_fee, affiliate_fee, tax_amount, net_amount, currency, status,
			protection_start_date, protection_end_date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, esc.EscrowID, esc.PaymentID, esc.ProjectID, esc.TradieID, parentTradieID,
		esc.GrossAmount, esc.PlatformFee, esc.AffiliateFee, esc.TaxAmount, esc.NetAmount,
		esc.Currency, esc.Status, esc.ProtectionStartDate, esc.ProtectionEndDate, esc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apierror.NewAPIError(apierror.ErrConflict,
				fmt.Sprintf("Payment '%s' already has an escrow account", paymentID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to open escrow account", err)
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE projects SET status = 'escrowed', escrow_amount = $2, updated_at = NOW()
		WHERE project_id = $1 AND status = 'agreed'
	`, esc.ProjectID, esc.GrossAmount)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update project status", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Project '%s' is not awaiting payment", esc.ProjectID), nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	if d.Cache != nil {
		_ = d.Cache.Delete(ctx, fmt.Sprintf("project:%s", esc.ProjectID))
	}

	return &esc, nil
}
