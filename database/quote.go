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

func (d Datasource) CreateQuote(ctx context.Context, quote model.Quote) (model.Quote, error) {
	quote.QuoteID = GenerateUUIDWithSuffix("qte")
	quote.Status = model.QuotePending
	quote.CreatedAt = time.Now()
	quote.UpdatedAt = quote.CreatedAt

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return model.Quote{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO quotes (quote_id, project_id, tradie_id, price, description, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, quote.QuoteID, quote.ProjectID, quote.TradieID, quote.Price, quote.Description, quote.Status,
		quote.CreatedAt, quote.UpdatedAt)
	if err != nil {
		return model.Quote{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create quote", err)
	}

	// First quote moves the project off the published shelf. Later quotes
	// leave the status alone, so zero rows here is not an error.
	_, err = tx.ExecContext(ctx, `
		UPDATE projects SET status = 'quoted', updated_at = NOW()
		WHERE project_id = $1 AND status = 'published'
	`, quote.ProjectID)
	if err != nil {
		return model.Quote{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update project status", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Quote{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	if d.Cache != nil {
		_ = d.Cache.Delete(ctx, fmt.Sprintf("project:%s", quote.ProjectID))
	}

	return quote, nil
}

func scanQuote(row interface{ Scan(dest ...interface{}) error }) (*model.Quote, error) {
	quote := &model.Quote{}
	var description sql.NullString
	var counterPrice decimal.NullDecimal

	err := row.Scan(&quote.QuoteID, &quote.ProjectID, &quote.TradieID, &quote.Price, &counterPrice,
		&description, &quote.Status, &quote.CreatedAt, &quote.UpdatedAt)
	if err != nil {
		return nil, err
	}

	quote.Description = description.String
	quote.CounterPrice = counterPrice.Decimal

	return quote, nil
}

func (d Datasource) GetQuote(ctx context.Context, id string) (*model.Quote, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT quote_id, project_id, tradie_id, price, counter_price, description, status, created_at, updated_at
		FROM quotes WHERE quote_id = $1
	`, id)

	quote, err := scanQuote(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Quote with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve quote", err)
	}

	return quote, nil
}

func (d Datasource) GetQuotesByProject(ctx context.Context, projectID string) ([]model.Quote, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT quote_id, project_id, tradie_id, price, counter_price, description, status, created_at, updated_at
		FROM quotes WHERE project_id = $1 ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve quotes", err)
	}
	defer rows.Close()

	var quotes []model.Quote
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan quote data", err)
		}
		quotes = append(quotes, *quote)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over quotes", err)
	}

	return quotes, nil
}

// AcceptQuote settles the selection in one transaction: the chosen quote
// flips pending -> accepted, every other pending quote on the project is
// rejected, and the project records the agreed terms. A partial unique
// index on accepted quotes backstops the conditional updates.
func (d Datasource) AcceptQuote(ctx context.Context, projectID, quoteID, tradieID string, price decimal.Decimal) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE quotes SET status = 'accepted', updated_at = NOW()
		WHERE quote_id = $1 AND project_id = $2 AND status = 'pending'
	`, quoteID, projectID)
	if err != nil {
		if isUniqueViolation(err) {
			return apierror.NewAPIError(apierror.ErrConflict,
				fmt.Sprintf("Project '%s' already has an accepted quote", projectID), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to accept quote", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Quote '%s' is not pending on project '%s'", quoteID, projectID), nil)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE quotes SET status = 'rejected', updated_at = NOW()
		WHERE project_id = $1 AND quote_id != $2 AND status = 'pending'
	`, projectID, quoteID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reject other quotes", err)
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE projects
		SET status = 'agreed', agreed_quote_id = $2, agreed_tradie_id = $3, agreed_price = $4, updated_at = NOW()
		WHERE project_id = $1 AND status IN ('quoted', 'negotiating') AND agreed_quote_id IS NULL
	`, projectID, quoteID, tradieID, price)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update project agreement", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Project '%s' is not open for agreement", projectID), nil)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	if d.Cache != nil {
		_ = d.Cache.Delete(ctx, fmt.Sprintf("project:%s", projectID))
	}

	return nil
}

// CounterQuote records the owner's counter offer and moves the project
// into negotiating.
func (d Datasource) CounterQuote(ctx context.Context, projectID, quoteID string, counterPrice decimal.Decimal) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE quotes SET counter_price = $3, updated_at = NOW()
		WHERE quote_id = $1 AND project_id = $2 AND status = 'pending'
	`, quoteID, projectID, counterPrice)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record counter offer", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Quote '%s' is not pending on project '%s'", quoteID, projectID), nil)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE projects SET status = 'negotiating', updated_at = NOW()
		WHERE project_id = $1 AND status IN ('quoted', 'negotiating')
	`, projectID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update project status", err)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	if d.Cache != nil {
		_ = d.Cache.Delete(ctx, fmt.Sprintf("project:%s", projectID))
	}

	return nil
}
