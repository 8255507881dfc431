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

	"github.com/tradielink/tradielink/internal/apierror"
	redlock "github.com/tradielink/tradielink/internal/lock"
	"github.com/tradielink/tradielink/model"
)

// CreateQuote submits a tradie's bid on an open project. The first quote
// moves the project from published to quoted.
func (t *Tradielink) CreateQuote(ctx context.Context, quote model.Quote) (model.Quote, error) {
	ctx, span := tracer.Start(ctx, "Creating quote")
	defer span.End()

	if !quote.Price.IsPositive() {
		err := apierror.NewAPIError(apierror.ErrInvalidInput, "Quote price must be positive", nil)
		span.RecordError(err)
		return model.Quote{}, err
	}

	tradie, err := t.datasource.GetUser(ctx, quote.TradieID)
	if err != nil {
		span.RecordError(err)
		return model.Quote{}, err
	}
	if tradie.Role != model.RoleTradie {
		err := apierror.NewAPIError(apierror.ErrForbidden,
			fmt.Sprintf("User '%s' cannot submit quotes", tradie.UserID), nil)
		span.RecordError(err)
		return model.Quote{}, err
	}

	project, err := t.datasource.GetProject(ctx, quote.ProjectID)
	if err != nil {
		span.RecordError(err)
		return model.Quote{}, err
	}
	switch project.Status {
	case model.StatusPublished, model.StatusQuoted, model.StatusNegotiating:
	default:
		err := apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Project '%s' is not open for quotes (status %s)", project.ProjectID, project.Status), nil)
		span.RecordError(err)
		return model.Quote{}, err
	}

	created, err := t.datasource.CreateQuote(ctx, quote)
	if err != nil {
		span.RecordError(err)
		return model.Quote{}, err
	}

	notify(EventQuoteReceived, project.OwnerID, map[string]string{
		"project_id": project.ProjectID,
		"quote_id":   created.QuoteID,
		"price":      created.Price.String(),
	})
	return created, nil
}

func (t *Tradielink) GetQuote(ctx context.Context, id string) (*model.Quote, error) {
	return t.datasource.GetQuote(ctx, id)
}

func (t *Tradielink) GetQuotesByProject(ctx context.Context, projectID string) ([]model.Quote, error) {
	return t.datasource.GetQuotesByProject(ctx, projectID)
}

// NegotiateQuote records the owner's counter offer against a pending quote
// and moves the project into negotiating.
func (t *Tradielink) NegotiateQuote(ctx context.Context, projectID, quoteID, ownerID string, counterPrice decimal.Decimal) (*model.Quote, error) {
	ctx, span := tracer.Start(ctx, "Negotiating quote")
	defer span.End()

	if !counterPrice.IsPositive() {
		err := apierror.NewAPIError(apierror.ErrInvalidInput, "Counter price must be positive", nil)
		span.RecordError(err)
		return nil, err
	}

	project, err := t.datasource.GetProject(ctx, projectID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if project.OwnerID != ownerID {
		err := apierror.NewAPIError(apierror.ErrForbidden,
			fmt.Sprintf("User '%s' does not own project '%s'", ownerID, projectID), nil)
		span.RecordError(err)
		return nil, err
	}
	if project.Status != model.StatusNegotiating {
		if err := project.Transition(model.StatusNegotiating); err != nil {
			span.RecordError(err)
			return nil, apierror.NewAPIError(apierror.ErrConflict, err.Error(), err)
		}
	}

	if err := t.datasource.CounterQuote(ctx, projectID, quoteID, counterPrice); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return t.datasource.GetQuote(ctx, quoteID)
}

// AcceptQuote locks the project and settles the agreement: the chosen quote
// is accepted, every other pending quote is rejected, and the project moves
// to agreed with its price fixed. Two owners racing on the same project
// cannot both win; the store's conditional updates are the arbiter even if
// the lock is lost.
func (t *Tradielink) AcceptQuote(ctx context.Context, projectID, quoteID, ownerID string) (*model.Project, error) {
	ctx, span := tracer.Start(ctx, "Accepting quote")
	defer span.End()

	locker := redlock.NewLocker(t.redis, projectID, model.GenerateUUIDWithSuffix("loc"))
	if err := locker.Lock(ctx, time.Minute); err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer func(locker *redlock.Locker, ctx context.Context) {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Error("lock error", err)
		}
	}(locker, ctx)

	project, err := t.datasource.GetProject(ctx, projectID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if project.OwnerID != ownerID {
		err := apierror.NewAPIError(apierror.ErrForbidden,
			fmt.Sprintf("User '%s' does not own project '%s'", ownerID, projectID), nil)
		span.RecordError(err)
		return nil, err
	}
	if err := project.Transition(model.StatusAgreed); err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrConflict, err.Error(), err)
	}

	quote, err := t.datasource.GetQuote(ctx, quoteID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if quote.ProjectID != projectID {
		err := apierror.NewAPIError(apierror.ErrBadRequest,
			fmt.Sprintf("Quote '%s' does not belong to project '%s'", quoteID, projectID), nil)
		span.RecordError(err)
		return nil, err
	}
	if quote.Status != model.QuotePending {
		err := apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Quote '%s' is not pending", quoteID), nil)
		span.RecordError(err)
		return nil, err
	}

	// A countered quote settles at the counter price.
	agreedPrice := quote.Price
	if !quote.CounterPrice.IsZero() {
		agreedPrice = quote.CounterPrice
	}

	if err := t.datasource.AcceptQuote(ctx, projectID, quoteID, quote.TradieID, agreedPrice); err != nil {
		span.RecordError(err)
		return nil, err
	}

	project.Status = model.StatusAgreed
	project.AgreedQuoteID = quoteID
	project.AgreedTradieID = quote.TradieID
	project.AgreedPrice = agreedPrice

	notify(EventQuoteAccepted, quote.TradieID, map[string]string{
		"project_id":   projectID,
		"quote_id":     quoteID,
		"agreed_price": agreedPrice.String(),
	})
	return project, nil
}
