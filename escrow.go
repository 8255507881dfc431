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
	redlock "github.com/tradielink/tradielink/internal/lock"
	"github.com/tradielink/tradielink/model"
)

const dueEscrowBatchSize = 100

func (t *Tradielink) GetEscrow(ctx context.Context, id string) (*model.EscrowAccount, error) {
	return t.datasource.GetEscrow(ctx, id)
}

func (t *Tradielink) GetEscrowByProject(ctx context.Context, projectID string) (*model.EscrowAccount, error) {
	return t.datasource.GetEscrowByProject(ctx, projectID)
}

// ConfirmCompletion is the owner's manual release: the project leaves its
// protection window early and the escrow pays out. Only the owner may
// confirm, and only while the project is under protection.
func (t *Tradielink) ConfirmCompletion(ctx context.Context, projectID, ownerID, notes string) (*model.EscrowRelease, error) {
	ctx, span := tracer.Start(ctx, "Confirming completion")
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
	if err := project.Transition(model.StatusReleased); err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrConflict, err.Error(), err)
	}

	esc, err := t.datasource.GetEscrowByProject(ctx, projectID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return t.releaseEscrow(ctx, esc.EscrowID, model.ReleaseManual, notes)
}

// ReleaseEscrowByID releases a single escrow by ID with the given trigger.
// The protection expiry worker calls this when a scheduled task fires.
func (t *Tradielink) ReleaseEscrowByID(ctx context.Context, escrowID string, trigger model.ReleaseTrigger) (*model.EscrowRelease, error) {
	return t.releaseEscrow(ctx, escrowID, trigger, "")
}

// releaseEscrow locks the escrow and applies the one-way held -> released
// settlement. The lock narrows the race window between the manual and
// automatic paths; the store's compare-and-swap is what actually guarantees
// funds move exactly once.
func (t *Tradielink) releaseEscrow(ctx context.Context, escrowID string, trigger model.ReleaseTrigger, notes string) (*model.EscrowRelease, error) {
	ctx, span := tracer.Start(ctx, "Releasing escrow")
	defer span.End()

	locker := redlock.NewLocker(t.redis, escrowID, model.GenerateUUIDWithSuffix("loc"))
	if err := locker.Lock(ctx, time.Minute); err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer func(locker *redlock.Locker, ctx context.Context) {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Error("lock error", err)
		}
	}(locker, ctx)

	release, err := t.datasource.ReleaseEscrow(ctx, escrowID, trigger, notes)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	notify(EventEscrowReleased, release.TradieID, map[string]string{
		"project_id": release.ProjectID,
		"escrow_id":  release.EscrowID,
		"net_amount": release.NetAmount.String(),
		"trigger":    string(release.Trigger),
	})
	return release, nil
}

// DueEscrowReleases is the read-only side of the sweep: held escrows whose
// protection window has lapsed as of now.
func (t *Tradielink) DueEscrowReleases(ctx context.Context) ([]model.EscrowAccount, error) {
	return t.datasource.GetDueEscrows(ctx, time.Now(), dueEscrowBatchSize)
}

// ProcessAutomaticEscrowReleases sweeps every due escrow and releases each
// with the automatic trigger. One bad record does not stop the batch: per
// record failures are logged and skipped, and an escrow released between
// the read and the write simply loses its compare-and-swap. The sweep is
// idempotent; the external cron may fire it as often as it likes.
func (t *Tradielink) ProcessAutomaticEscrowReleases(ctx context.Context) ([]model.EscrowRelease, error) {
	ctx, span := tracer.Start(ctx, "Processing automatic escrow releases")
	defer span.End()

	due, err := t.datasource.GetDueEscrows(ctx, time.Now(), dueEscrowBatchSize)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var releases []model.EscrowRelease
	for _, esc := range due {
		release, err := t.releaseEscrow(ctx, esc.EscrowID, model.ReleaseAutomatic, "")
		if err != nil {
			logrus.Errorf("automatic release of escrow %s failed: %v", esc.EscrowID, err)
			span.RecordError(err)
			continue
		}
		releases = append(releases, *release)
	}

	logrus.Infof("automatic escrow sweep: %d due, %d released", len(due), len(releases))
	return releases, nil
}
