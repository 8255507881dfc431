package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tradielink/tradielink/internal/apierror"
	"github.com/tradielink/tradielink/model"
)

const escrowColumns = `id, escrow_id, payment_id, project_id, tradie_id, parent_tradie_id, gross_amount,
	platform_fee, affiliate_fee, tax_amount, net_amount, currency, status, protection_start_date,
	protection_end_date, released_at, release_trigger, release_notes, created_at`

func scanEscrow(row interface{ Scan(dest ...interface{}) error }) (*model.EscrowAccount, error) {
	esc := &model.EscrowAccount{}
	var parentTradieID, releaseTrigger, releaseNotes sql.NullString
	var releasedAt sql.NullTime

	err := row.Scan(&esc.ID, &esc.EscrowID, &esc.PaymentID, &esc.ProjectID, &esc.TradieID,
		&parentTradieID, &esc.GrossAmount, &esc.PlatformFee, &esc.AffiliateFee, &esc.TaxAmount,
		&esc.NetAmount, &esc.Currency, &esc.Status, &esc.ProtectionStartDate, &esc.ProtectionEndDate,
		&releasedAt, &releaseTrigger, &releaseNotes, &esc.CreatedAt)
	if err != nil {
		return nil, err
	}

	esc.ParentTradieID = parentTradieID.String
	esc.ReleasedAt = releasedAt.Time
	esc.ReleaseTrigger = model.ReleaseTrigger(releaseTrigger.String)
	esc.ReleaseNotes = releaseNotes.String

	return esc, nil
}

func (d Datasource) GetEscrow(ctx context.Context, id string) (*model.EscrowAccount, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM escrow_accounts WHERE escrow_id = $1
	`, escrowColumns), id)

	esc, err := scanEscrow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Escrow account with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve escrow account", err)
	}

	return esc, nil
}

func (d Datasource) GetEscrowByProject(ctx context.Context, projectID string) (*model.EscrowAccount, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM escrow_accounts WHERE project_id = $1
	`, escrowColumns), projectID)

	esc, err := scanEscrow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound,
				fmt.Sprintf("No escrow account for project '%s'", projectID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve escrow account", err)
	}

	return esc, nil
}

// GetDueEscrows returns held escrow accounts whose protection window has
// elapsed, oldest first. The sweep processes them in batches.
func (d Datasource) GetDueEscrows(ctx context.Context, asOf time.Time, limit int) ([]model.EscrowAccount, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM escrow_accounts
		WHERE status = 'held' AND protection_end_date <= $1
		ORDER BY protection_end_date ASC
		LIMIT $2
	`, escrowColumns), asOf, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve due escrow accounts", err)
	}
	defer rows.Close()

	var escrows []model.EscrowAccount
	for rows.Next() {
		esc, err := scanEscrow(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan escrow data", err)
		}
		escrows = append(escrows, *esc)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over escrow accounts", err)
	}

	return escrows, nil
}

// SyncEscrowProtection moves the protection window forward to the given end.
// The window never shortens: a retried completion with an earlier timestamp
// leaves the later end in place.
func (d Datasource) SyncEscrowProtection(ctx context.Context, projectID string, protectionEnd time.Time) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE escrow_accounts
		SET protection_end_date = GREATEST(protection_end_date, $2)
		WHERE project_id = $1 AND status = 'held'
	`, projectID, protectionEnd)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to sync escrow protection window", err)
	}

	return nil
}

// SetEscrowDisputed freezes or unfreezes a project's held escrow. A frozen
// escrow loses every release compare-and-swap until the dispute resolves.
func (d Datasource) SetEscrowDisputed(ctx context.Context, projectID string, disputed bool) error {
	from, to := "held", "disputed"
	if !disputed {
		from, to = "disputed", "held"
	}

	_, err := d.Conn.ExecContext(ctx, `
		UPDATE escrow_accounts SET status = $3 WHERE project_id = $1 AND status = $2
	`, projectID, from, to)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update escrow dispute state", err)
	}

	return nil
}

// ReleaseEscrow settles one escrow account in a single transaction: the
// held -> released compare-and-swap, the tradie's balance credit, the
// affiliate earning and parent credit when a parent exists, and the
// project's move to released. Losing the compare-and-swap means the escrow
// was already released (or is disputed) and nothing is credited twice.
func (d Datasource) ReleaseEscrow(ctx context.Context, escrowID string, trigger model.ReleaseTrigger, notes string) (*model.EscrowRelease, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	release := &model.EscrowRelease{EscrowID: escrowID, Trigger: trigger}
	var parentTradieID sql.NullString

	err = tx.QueryRowContext(ctx, `
		UPDATE escrow_accounts
		SET status = 'released', released_at = NOW(), release_trigger = $2, release_notes = $3
		WHERE escrow_id = $1 AND status = 'held'
		RETURNING project_id, tradie_id, parent_tradie_id, net_amount, affiliate_fee, released_at
	`, escrowID, trigger, notes).Scan(&release.ProjectID, &release.TradieID, &parentTradieID,
		&release.NetAmount, &release.AffiliateFee, &release.ReleasedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrConflict,
				fmt.Sprintf("Escrow '%s' is not held", escrowID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to release escrow", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET balance = balance + $2 WHERE user_id = $1
	`, release.TradieID, release.NetAmount)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to credit tradie balance", err)
	}

	if parentTradieID.Valid && release.AffiliateFee.IsPositive() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO affiliate_earnings (earning_id, escrow_id, parent_tradie_id, child_tradie_id, amount, created_at)
			VALUES ($1,$2,$3,$4,$5,NOW())
		`, GenerateUUIDWithSuffix("aff"), escrowID, parentTradieID.String, release.TradieID, release.AffiliateFee)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record affiliate earning", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE users SET balance = balance + $2 WHERE user_id = $1
		`, parentTradieID.String, release.AffiliateFee)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to credit parent tradie balance", err)
		}
	}

	// Best effort reconciliation of the project record. A dispute resolved
	// directly against the escrow may leave the project elsewhere; the
	// release itself stays authoritative.
	_, err = tx.ExecContext(ctx, `
		UPDATE projects SET status = 'released', release_date = NOW(), updated_at = NOW()
		WHERE project_id = $1 AND status = 'protection'
	`, release.ProjectID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update project status", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	if d.Cache != nil {
		_ = d.Cache.Delete(ctx, fmt.Sprintf("project:%s", release.ProjectID))
	}

	return release, nil
}
