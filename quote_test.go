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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradielink/tradielink/internal/apierror"
	"github.com/tradielink/tradielink/model"
)

func TestAcceptQuote(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusQuoted, nil, nil, nil, nil))
	mock.ExpectQuery("FROM quotes WHERE quote_id =").
		WillReturnRows(quoteRow("qte_1", "prj_1", "usr_tradie", decimal.NewFromInt(1000), nil, model.QuotePending))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE quotes SET status = 'accepted'").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE quotes SET status = 'rejected'").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectExec("SET status = 'agreed'").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	project, err := svc.AcceptQuote(context.Background(), "prj_1", "qte_1", "usr_owner")

	require.NoError(t, err)
	assert.Equal(t, model.StatusAgreed, project.Status)
	assert.Equal(t, "qte_1", project.AgreedQuoteID)
	assert.Equal(t, "usr_tradie", project.AgreedTradieID)
	assert.True(t, project.AgreedPrice.Equal(decimal.NewFromInt(1000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptQuoteUsesCounterPrice(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusNegotiating, nil, nil, nil, nil))
	mock.ExpectQuery("FROM quotes WHERE quote_id =").
		WillReturnRows(quoteRow("qte_1", "prj_1", "usr_tradie", decimal.NewFromInt(1000), "900", model.QuotePending))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE quotes SET status = 'accepted'").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE quotes SET status = 'rejected'").
		WillReturnResult(sqlmock.NewResult(1, 0))
	mock.ExpectExec("SET status = 'agreed'").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	project, err := svc.AcceptQuote(context.Background(), "prj_1", "qte_1", "usr_owner")

	require.NoError(t, err)
	assert.True(t, project.AgreedPrice.Equal(decimal.NewFromInt(900)),
		"countered quote should settle at the counter price, got %s", project.AgreedPrice)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptQuoteWrongOwner(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusQuoted, nil, nil, nil, nil))

	_, err := svc.AcceptQuote(context.Background(), "prj_1", "qte_1", "usr_intruder")

	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrForbidden, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptQuoteLosesStoreRace(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusQuoted, nil, nil, nil, nil))
	mock.ExpectQuery("FROM quotes WHERE quote_id =").
		WillReturnRows(quoteRow("qte_1", "prj_1", "usr_tradie", decimal.NewFromInt(1000), nil, model.QuotePending))

	// Another acceptance got there first; the conditional update writes
	// nothing and the transaction rolls back.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE quotes SET status = 'accepted'").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.AcceptQuote(context.Background(), "prj_1", "qte_1", "usr_owner")

	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptQuoteFromOtherProject(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusQuoted, nil, nil, nil, nil))
	mock.ExpectQuery("FROM quotes WHERE quote_id =").
		WillReturnRows(quoteRow("qte_9", "prj_other", "usr_tradie", decimal.NewFromInt(1000), nil, model.QuotePending))

	_, err := svc.AcceptQuote(context.Background(), "prj_1", "qte_9", "usr_owner")

	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrBadRequest, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateQuoteInvalidatesProjectCache(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM users WHERE user_id =").
		WillReturnRows(userRow("usr_tradie", model.RoleTradie, nil, decimal.Zero))
	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusPublished, nil, nil, nil, nil))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO quotes").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("SET status = 'quoted'").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// A read after the quote must come from the database, not the cached
	// published row.
	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusQuoted, nil, nil, nil, nil))

	_, err := svc.CreateQuote(context.Background(), model.Quote{
		ProjectID: "prj_1",
		TradieID:  "usr_tradie",
		Price:     decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	project, err := svc.GetProject(context.Background(), "prj_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusQuoted, project.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNegotiateQuoteInvalidatesProjectCache(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusQuoted, nil, nil, nil, nil))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE quotes SET counter_price").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("SET status = 'negotiating'").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("FROM quotes WHERE quote_id =").
		WillReturnRows(quoteRow("qte_1", "prj_1", "usr_tradie", decimal.NewFromInt(1000), "900", model.QuotePending))

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusNegotiating, nil, nil, nil, nil))

	quote, err := svc.NegotiateQuote(context.Background(), "prj_1", "qte_1", "usr_owner", decimal.NewFromInt(900))
	require.NoError(t, err)
	assert.True(t, quote.CounterPrice.Equal(decimal.NewFromInt(900)))

	project, err := svc.GetProject(context.Background(), "prj_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNegotiating, project.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
