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

	"github.com/shopspring/decimal"

	"github.com/tradielink/tradielink/internal/apierror"
	"github.com/tradielink/tradielink/model"
)

// CreateUser registers an owner or tradie account. A tradie naming a parent
// tradie routes the affiliate fee share there on every settled project; the
// parent must exist and be a tradie.
func (t *Tradielink) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	ctx, span := tracer.Start(ctx, "Creating user")
	defer span.End()

	if user.Role != model.RoleOwner && user.Role != model.RoleTradie {
		err := apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("Unknown role '%s'", user.Role), nil)
		span.RecordError(err)
		return model.User{}, err
	}

	if user.ParentTradieID != "" {
		if user.Role != model.RoleTradie {
			err := apierror.NewAPIError(apierror.ErrInvalidInput, "Only tradies may have a parent tradie", nil)
			span.RecordError(err)
			return model.User{}, err
		}
		parent, err := t.datasource.GetUser(ctx, user.ParentTradieID)
		if err != nil {
			span.RecordError(err)
			return model.User{}, err
		}
		if parent.Role != model.RoleTradie {
			err := apierror.NewAPIError(apierror.ErrInvalidInput,
				fmt.Sprintf("Parent '%s' is not a tradie", parent.UserID), nil)
			span.RecordError(err)
			return model.User{}, err
		}
	}

	created, err := t.datasource.CreateUser(ctx, user)
	if err != nil {
		span.RecordError(err)
		return model.User{}, err
	}

	return created, nil
}

func (t *Tradielink) GetUser(ctx context.Context, id string) (*model.User, error) {
	return t.datasource.GetUser(ctx, id)
}

func (t *Tradielink) GetUserBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	return t.datasource.GetUserBalance(ctx, id)
}
