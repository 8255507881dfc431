package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradielink/tradielink/internal/apierror"
	"github.com/tradielink/tradielink/model"
)

func (d Datasource) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	metaDataJSON, err := json.Marshal(user.MetaData)
	if err != nil {
		return model.User{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	user.UserID = GenerateUUIDWithSuffix("usr")
	user.CreatedAt = time.Now()

	var parentTradieID interface{}
	if user.ParentTradieID != "" {
		parentTradieID = user.ParentTradieID
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO users (user_id, role, first_name, last_name, email_address, phone_number,
			parent_tradie_id, balance, created_at, meta_data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8,$9)
	`, user.UserID, user.Role, user.FirstName, user.LastName, user.EmailAddress, user.PhoneNumber,
		parentTradieID, user.CreatedAt, metaDataJSON)
	if err != nil {
		return model.User{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create user", err)
	}

	user.Balance = decimal.Zero
	return user, nil
}

func (d Datasource) GetUser(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var phoneNumber, parentTradieID sql.NullString
	var metaDataJSON []byte

	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, user_id, role, first_name, last_name, email_address, phone_number,
			parent_tradie_id, balance, created_at, meta_data
		FROM users WHERE user_id = $1
	`, id).Scan(&user.ID, &user.UserID, &user.Role, &user.FirstName, &user.LastName,
		&user.EmailAddress, &phoneNumber, &parentTradieID, &user.Balance, &user.CreatedAt, &metaDataJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("User with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve user", err)
	}

	user.PhoneNumber = phoneNumber.String
	user.ParentTradieID = parentTradieID.String

	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &user.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}

	return user, nil
}

func (d Datasource) GetUserBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := d.Conn.QueryRowContext(ctx, `
		SELECT balance FROM users WHERE user_id = $1
	`, userID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, apierror.NewAPIError(apierror.ErrNotFound,
				fmt.Sprintf("User with ID '%s' not found", userID), err)
		}
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve balance", err)
	}

	return balance, nil
}
