package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/tradielink/tradielink/internal/apierror"
	"github.com/tradielink/tradielink/model"
)

const projectColumns = `project_id, owner_id, title, description, category_id, profession_id, location,
	contact_email, contact_phone, status, agreed_quote_id, agreed_tradie_id, agreed_price, escrow_amount,
	completion_date, protection_end_date, release_date, created_at, updated_at, meta_data`

func (d Datasource) CreateProject(ctx context.Context, project model.Project) (model.Project, error) {
	metaDataJSON, err := json.Marshal(project.MetaData)
	if err != nil {
		return model.Project{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	project.ProjectID = GenerateUUIDWithSuffix("prj")
	project.CreatedAt = time.Now()
	project.UpdatedAt = project.CreatedAt

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO projects (project_id, owner_id, title, description, category_id, profession_id, location,
			contact_email, contact_phone, status, created_at, updated_at, meta_data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, project.ProjectID, project.OwnerID, project.Title, project.Description, project.CategoryID,
		project.ProfessionID, project.Location, project.ContactEmail, project.ContactPhone,
		project.Status, project.CreatedAt, project.UpdatedAt, metaDataJSON)
	if err != nil {
		return model.Project{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create project", err)
	}

	return project, nil
}

func scanProject(row interface{ Scan(dest ...interface{}) error }) (*model.Project, error) {
	project := &model.Project{}
	var (
		description, categoryID, professionID, location sql.NullString
		contactEmail, contactPhone                      sql.NullString
		agreedQuoteID, agreedTradieID                   sql.NullString
		agreedPrice, escrowAmount                       decimal.NullDecimal
		completionDate, protectionEndDate, releaseDate  sql.NullTime
		metaDataJSON                                    []byte
	)

	err := row.Scan(&project.ProjectID, &project.OwnerID, &project.Title, &description, &categoryID,
		&professionID, &location, &contactEmail, &contactPhone, &project.Status, &agreedQuoteID,
		&agreedTradieID, &agreedPrice, &escrowAmount, &completionDate, &protectionEndDate,
		&releaseDate, &project.CreatedAt, &project.UpdatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}

	project.Description = description.String
	project.CategoryID = categoryID.String
	project.ProfessionID = professionID.String
	project.Location = location.String
	project.ContactEmail = contactEmail.String
	project.ContactPhone = contactPhone.String
	project.AgreedQuoteID = agreedQuoteID.String
	project.AgreedTradieID = agreedTradieID.String
	project.AgreedPrice = agreedPrice.Decimal
	project.EscrowAmount = escrowAmount.Decimal
	project.CompletionDate = completionDate.Time
	project.ProtectionEndDate = protectionEndDate.Time
	project.ReleaseDate = releaseDate.Time

	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &project.MetaData); err != nil {
			return nil, err
		}
	}

	return project, nil
}

func (d Datasource) GetProject(ctx context.Context, id string) (*model.Project, error) {
	ctx, span := otel.Tracer("project.database").Start(ctx, "Fetching project from db")
	defer span.End()

	cacheKey := fmt.Sprintf("project:%s", id)
	if d.Cache != nil {
		cached := &model.Project{}
		if err := d.Cache.Get(ctx, cacheKey, cached); err == nil && cached.ProjectID != "" {
			return cached, nil
		}
	}

	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM projects WHERE project_id = $1
	`, projectColumns), id)

	project, err := scanProject(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Project with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve project", err)
	}

	if d.Cache != nil {
		_ = d.Cache.Set(ctx, cacheKey, project, 5*time.Minute)
	}

	return project, nil
}

func (d Datasource) GetAllProjects(ctx context.Context, limit, offset int) ([]model.Project, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM projects ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, projectColumns), limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve projects", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan project data", err)
		}
		projects = append(projects, *project)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over projects", err)
	}

	return projects, nil
}

// TransitionProject applies a guarded status change as a conditional update.
// The row is only written if its current status is one of the expected source
// states, so two racing transitions cannot both succeed.
func (d Datasource) TransitionProject(ctx context.Context, projectID string, from []model.Status, to model.Status) error {
	ctx, span := otel.Tracer("project.database").Start(ctx, "Transitioning project status")
	defer span.End()

	fromStates := make([]string, len(from))
	for i, s := range from {
		fromStates[i] = string(s)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE projects
		SET status = $2, updated_at = NOW(),
			release_date = CASE WHEN $2 = 'released' THEN NOW() ELSE release_date END
		WHERE project_id = $1 AND status = ANY($3)
	`, projectID, to, pq.Array(fromStates))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update project status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Project '%s' is not in a state that allows transition to %s", projectID, to), nil)
	}

	if d.Cache != nil {
		_ = d.Cache.Delete(ctx, fmt.Sprintf("project:%s", projectID))
	}

	return nil
}

// MarkProjectCompleted records work completion and opens the protection
// window: in_progress -> protection with completion_date and
// protection_end_date set in the same write.
func (d Datasource) MarkProjectCompleted(ctx context.Context, projectID string, completedAt, protectionEnd time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE projects
		SET status = 'protection', completion_date = $2, protection_end_date = $3, updated_at = NOW()
		WHERE project_id = $1 AND status = 'in_progress'
	`, projectID, completedAt, protectionEnd)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark project completed", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Project '%s' is not in progress", projectID), nil)
	}

	if d.Cache != nil {
		_ = d.Cache.Delete(ctx, fmt.Sprintf("project:%s", projectID))
	}

	return nil
}

func (d Datasource) CreateReview(ctx context.Context, review model.Review) (model.Review, error) {
	review.ReviewID = GenerateUUIDWithSuffix("rev")
	review.CreatedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO reviews (review_id, project_id, owner_id, tradie_id, rating, comment, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, review.ReviewID, review.ProjectID, review.OwnerID, review.TradieID, review.Rating, review.Comment, review.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Review{}, apierror.NewAPIError(apierror.ErrConflict,
				fmt.Sprintf("Project '%s' has already been reviewed", review.ProjectID), err)
		}
		return model.Review{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create review", err)
	}

	return review, nil
}
