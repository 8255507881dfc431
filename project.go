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

	"github.com/sirupsen/logrus"

	"github.com/tradielink/tradielink/internal/apierror"
	"github.com/tradielink/tradielink/model"
)

// CreateProject posts a new project in published status. The owner must
// exist and hold the owner role.
func (t *Tradielink) CreateProject(ctx context.Context, project model.Project) (model.Project, error) {
	ctx, span := tracer.Start(ctx, "Creating project")
	defer span.End()

	owner, err := t.datasource.GetUser(ctx, project.OwnerID)
	if err != nil {
		span.RecordError(err)
		return model.Project{}, err
	}
	if owner.Role != model.RoleOwner {
		err := apierror.NewAPIError(apierror.ErrForbidden,
			fmt.Sprintf("User '%s' cannot post projects", owner.UserID), nil)
		span.RecordError(err)
		return model.Project{}, err
	}

	project.Status = model.StatusPublished
	created, err := t.datasource.CreateProject(ctx, project)
	if err != nil {
		span.RecordError(err)
		return model.Project{}, err
	}

	return created, nil
}

func (t *Tradielink) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return t.datasource.GetProject(ctx, id)
}

func (t *Tradielink) GetAllProjects(ctx context.Context, limit, offset int) ([]model.Project, error) {
	return t.datasource.GetAllProjects(ctx, limit, offset)
}

// StartWork moves a funded project into in_progress. Only the agreed tradie
// may start.
func (t *Tradielink) StartWork(ctx context.Context, projectID, tradieID string) (*model.Project, error) {
	ctx, span := tracer.Start(ctx, "Starting work")
	defer span.End()

	project, err := t.datasource.GetProject(ctx, projectID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if project.AgreedTradieID != tradieID {
		err := apierror.NewAPIError(apierror.ErrForbidden,
			fmt.Sprintf("Tradie '%s' is not assigned to project '%s'", tradieID, projectID), nil)
		span.RecordError(err)
		return nil, err
	}
	if err := project.Transition(model.StatusInProgress); err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrConflict, err.Error(), err)
	}

	if err := t.datasource.TransitionProject(ctx, projectID, []model.Status{model.StatusEscrowed}, model.StatusInProgress); err != nil {
		span.RecordError(err)
		return nil, err
	}

	notify(EventWorkStarted, project.OwnerID, map[string]string{"project_id": projectID})
	return project, nil
}

// MarkCompleted records that the tradie finished the work. The project
// passes through completed into its protection window, the escrow's window
// is refreshed forward, and the automatic release is scheduled for the
// window's end. Repeating the call is a conflict; the window never shortens.
func (t *Tradielink) MarkCompleted(ctx context.Context, projectID, tradieID string) (*model.Project, error) {
	ctx, span := tracer.Start(ctx, "Marking project completed")
	defer span.End()

	project, err := t.datasource.GetProject(ctx, projectID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if project.AgreedTradieID != tradieID {
		err := apierror.NewAPIError(apierror.ErrForbidden,
			fmt.Sprintf("Tradie '%s' is not assigned to project '%s'", tradieID, projectID), nil)
		span.RecordError(err)
		return nil, err
	}
	if err := project.Transition(model.StatusCompleted); err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrConflict, err.Error(), err)
	}

	completedAt := time.Now()
	protectionEnd := completedAt.Add(model.ProtectionPeriod)

	if err := t.datasource.MarkProjectCompleted(ctx, projectID, completedAt, protectionEnd); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := t.datasource.SyncEscrowProtection(ctx, projectID, protectionEnd); err != nil {
		span.RecordError(err)
		return nil, err
	}

	project.Status = model.StatusProtection
	project.CompletionDate = completedAt
	project.ProtectionEndDate = protectionEnd

	esc, err := t.datasource.GetEscrowByProject(ctx, projectID)
	if err != nil {
		logrus.Errorf("project %s completed without escrow lookup: %v", projectID, err)
	} else if err := t.queue.QueueProtectionExpiry(esc.EscrowID, esc.ProtectionEndDate); err != nil {
		// The cron sweep picks this escrow up when its window lapses.
		logrus.Errorf("failed to queue protection expiry for %s: %v", esc.EscrowID, err)
	}

	notify(EventWorkCompleted, project.OwnerID, map[string]string{
		"project_id":          projectID,
		"protection_end_date": protectionEnd.Format(time.RFC3339),
	})
	return project, nil
}

// DisputeProject freezes a project. The escrow, if one exists, is frozen
// with it so neither the manual nor the automatic release path can move
// funds while the dispute is open.
func (t *Tradielink) DisputeProject(ctx context.Context, projectID, actorID, reason string) (*model.Project, error) {
	ctx, span := tracer.Start(ctx, "Disputing project")
	defer span.End()

	project, err := t.datasource.GetProject(ctx, projectID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if actorID != project.OwnerID && actorID != project.AgreedTradieID {
		err := apierror.NewAPIError(apierror.ErrForbidden,
			fmt.Sprintf("User '%s' is not a party to project '%s'", actorID, projectID), nil)
		span.RecordError(err)
		return nil, err
	}
	from := project.Status
	if err := project.Transition(model.StatusDisputed); err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrConflict, err.Error(), err)
	}

	if err := t.datasource.TransitionProject(ctx, projectID, []model.Status{from}, model.StatusDisputed); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := t.datasource.SetEscrowDisputed(ctx, projectID, true); err != nil {
		logrus.Errorf("failed to freeze escrow for disputed project %s: %v", projectID, err)
	}

	notify(EventProjectDisputed, project.OwnerID, map[string]string{"project_id": projectID, "reason": reason})
	return project, nil
}

// ResolveDispute moves a disputed project to the resolution the back office
// decided. Any resolution other than cancellation unfreezes the escrow.
// Money movement on a cancelled escrowed project is handled out of band.
func (t *Tradielink) ResolveDispute(ctx context.Context, projectID string, resolution model.Status) (*model.Project, error) {
	ctx, span := tracer.Start(ctx, "Resolving dispute")
	defer span.End()

	project, err := t.datasource.GetProject(ctx, projectID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := project.Transition(resolution); err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrConflict, err.Error(), err)
	}

	if err := t.datasource.TransitionProject(ctx, projectID, []model.Status{model.StatusDisputed}, resolution); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if resolution != model.StatusCancelled {
		if err := t.datasource.SetEscrowDisputed(ctx, projectID, false); err != nil {
			logrus.Errorf("failed to unfreeze escrow for project %s: %v", projectID, err)
		}
	}

	return project, nil
}

// CancelProject shuts a project down. The owner may cancel anywhere the
// guard table allows it.
func (t *Tradielink) CancelProject(ctx context.Context, projectID, ownerID string) (*model.Project, error) {
	ctx, span := tracer.Start(ctx, "Cancelling project")
	defer span.End()

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
	from := project.Status
	if err := project.Transition(model.StatusCancelled); err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrConflict, err.Error(), err)
	}

	if err := t.datasource.TransitionProject(ctx, projectID, []model.Status{from}, model.StatusCancelled); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if project.AgreedTradieID != "" {
		notify(EventProjectCancelled, project.AgreedTradieID, map[string]string{"project_id": projectID})
	}
	return project, nil
}

// CreateReview records the owner's rating after release and closes the
// project into reviewed. One review per project, enforced in-store.
func (t *Tradielink) CreateReview(ctx context.Context, review model.Review) (model.Review, error) {
	ctx, span := tracer.Start(ctx, "Creating review")
	defer span.End()

	project, err := t.datasource.GetProject(ctx, review.ProjectID)
	if err != nil {
		span.RecordError(err)
		return model.Review{}, err
	}
	if project.OwnerID != review.OwnerID {
		err := apierror.NewAPIError(apierror.ErrForbidden,
			fmt.Sprintf("User '%s' does not own project '%s'", review.OwnerID, review.ProjectID), nil)
		span.RecordError(err)
		return model.Review{}, err
	}
	if err := project.Transition(model.StatusReviewed); err != nil {
		span.RecordError(err)
		return model.Review{}, apierror.NewAPIError(apierror.ErrConflict, err.Error(), err)
	}

	review.TradieID = project.AgreedTradieID
	created, err := t.datasource.CreateReview(ctx, review)
	if err != nil {
		span.RecordError(err)
		return model.Review{}, err
	}

	if err := t.datasource.TransitionProject(ctx, review.ProjectID, []model.Status{model.StatusReleased}, model.StatusReviewed); err != nil {
		span.RecordError(err)
		return model.Review{}, err
	}

	return created, nil
}
