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
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradielink/tradielink/internal/apierror"
	"github.com/tradielink/tradielink/model"
)

func TestCreateProject(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM users WHERE user_id =").
		WillReturnRows(userRow("usr_owner", model.RoleOwner, nil, decimal.Zero))
	mock.ExpectExec("INSERT INTO projects").
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := svc.CreateProject(context.Background(), model.Project{
		OwnerID:     "usr_owner",
		Title:       "Repaint the weatherboards",
		Description: "Front of house only",
		Location:    "Newcastle NSW",
	})

	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, created.Status)
	assert.NotEmpty(t, created.ProjectID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProjectTradieForbidden(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM users WHERE user_id =").
		WillReturnRows(userRow("usr_tradie", model.RoleTradie, nil, decimal.Zero))

	_, err := svc.CreateProject(context.Background(), model.Project{
		OwnerID: "usr_tradie",
		Title:   "Repaint the weatherboards",
	})

	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrForbidden, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartWork(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusEscrowed, "qte_1", "usr_tradie", "1000", nil))
	mock.ExpectExec("UPDATE projects").
		WillReturnResult(sqlmock.NewResult(1, 1))

	project, err := svc.StartWork(context.Background(), "prj_1", "usr_tradie")

	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, project.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartWorkWrongTradie(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusEscrowed, "qte_1", "usr_tradie", "1000", nil))

	_, err := svc.StartWork(context.Background(), "prj_1", "usr_other")

	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrForbidden, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartWorkBeforeFunding(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusAgreed, "qte_1", "usr_tradie", "1000", nil))

	_, err := svc.StartWork(context.Background(), "prj_1", "usr_tradie")

	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCompletedOpensProtectionWindow(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusInProgress, "qte_1", "usr_tradie", "1000", nil))
	mock.ExpectExec("SET status = 'protection'").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("GREATEST").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("FROM escrow_accounts WHERE project_id =").
		WillReturnRows(escrowRow("esc_1", "pay_1", "prj_1", "usr_tradie", nil,
			decimal.NewFromInt(1000), decimal.NewFromInt(100), decimal.Zero, decimal.NewFromInt(900),
			model.EscrowHeld, time.Now().Add(model.ProtectionPeriod)))

	before := time.Now()
	project, err := svc.MarkCompleted(context.Background(), "prj_1", "usr_tradie")

	require.NoError(t, err)
	assert.Equal(t, model.StatusProtection, project.Status)
	assert.WithinDuration(t, before.Add(model.ProtectionPeriod), project.ProtectionEndDate, 5*time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCompletedTwice(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusProtection, "qte_1", "usr_tradie", "1000",
			time.Now().Add(model.ProtectionPeriod)))

	_, err := svc.MarkCompleted(context.Background(), "prj_1", "usr_tradie")

	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisputeProjectFreezesEscrow(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusProtection, "qte_1", "usr_tradie", "1000",
			time.Now().Add(model.ProtectionPeriod)))
	mock.ExpectExec("UPDATE projects").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE escrow_accounts SET status =").
		WillReturnResult(sqlmock.NewResult(1, 1))

	project, err := svc.DisputeProject(context.Background(), "prj_1", "usr_tradie", "owner unreachable")

	require.NoError(t, err)
	assert.Equal(t, model.StatusDisputed, project.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisputeProjectByStranger(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusProtection, "qte_1", "usr_tradie", "1000",
			time.Now().Add(model.ProtectionPeriod)))

	_, err := svc.DisputeProject(context.Background(), "prj_1", "usr_stranger", "")

	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrForbidden, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveDisputeUnfreezesEscrow(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusDisputed, "qte_1", "usr_tradie", "1000", nil))
	mock.ExpectExec("UPDATE projects").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE escrow_accounts SET status =").
		WillReturnResult(sqlmock.NewResult(1, 1))

	project, err := svc.ResolveDispute(context.Background(), "prj_1", model.StatusProtection)

	require.NoError(t, err)
	assert.Equal(t, model.StatusProtection, project.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelProjectBeforeAgreement(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusPublished, nil, nil, nil, nil))
	mock.ExpectExec("UPDATE projects").
		WillReturnResult(sqlmock.NewResult(1, 1))

	project, err := svc.CancelProject(context.Background(), "prj_1", "usr_owner")

	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, project.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelEscrowedProjectRefused(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusEscrowed, "qte_1", "usr_tradie", "1000", nil))

	_, err := svc.CancelProject(context.Background(), "prj_1", "usr_owner")

	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReviewClosesProject(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("FROM projects WHERE project_id =").
		WillReturnRows(projectRow("prj_1", "usr_owner", model.StatusReleased, "qte_1", "usr_tradie", "1000", nil))
	mock.ExpectExec("INSERT INTO reviews").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE projects").
		WillReturnResult(sqlmock.NewResult(1, 1))

	review, err := svc.CreateReview(context.Background(), model.Review{
		ProjectID: "prj_1",
		OwnerID:   "usr_owner",
		Rating:    5,
		Comment:   "Tidy work, on time",
	})

	require.NoError(t, err)
	assert.Equal(t, "usr_tradie", review.TradieID)
	assert.NotEmpty(t, review.ReviewID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
