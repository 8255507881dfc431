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

package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradielink/tradielink/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	project
	quote
	payment
	escrow
	user
	withdrawal
}

// project defines methods for handling projects and their lifecycle status.
// All status changes are conditional updates: the write succeeds only if the
// row is still in one of the expected source states.
type project interface {
	CreateProject(ctx context.Context, project model.Project) (model.Project, error)
	GetProject(ctx context.Context, id string) (*model.Project, error)
	GetAllProjects(ctx context.Context, limit, offset int) ([]model.Project, error)
	TransitionProject(ctx context.Context, projectID string, from []model.Status, to model.Status) error
	MarkProjectCompleted(ctx context.Context, projectID string, completedAt, protectionEnd time.Time) error
	CreateReview(ctx context.Context, review model.Review) (model.Review, error)
}

// quote defines methods for handling quotes, including the transactional
// accept path that rejects all competing pending quotes.
type quote interface {
	CreateQuote(ctx context.Context, q model.Quote) (model.Quote, error)
	GetQuote(ctx context.Context, id string) (*model.Quote, error)
	GetQuotesByProject(ctx context.Context, projectID string) ([]model.Quote, error)
	AcceptQuote(ctx context.Context, projectID, quoteID, tradieID string, price decimal.Decimal) error
	CounterQuote(ctx context.Context, projectID, quoteID string, counterPrice decimal.Decimal) error
}

// payment defines methods for payment attempts and the settlement transaction
// that converts a completed payment into a held escrow.
type payment interface {
	RecordPayment(ctx context.Context, p model.Payment) (model.Payment, error)
	GetPayment(ctx context.Context, id string) (*model.Payment, error)
	GetPaymentByProviderRef(ctx context.Context, provider, providerRef string) (*model.Payment, error)
	UpdatePaymentProviderRef(ctx context.Context, paymentID, providerRef string) error
	MarkPaymentFailed(ctx context.Context, paymentID string) error
	SettlePayment(ctx context.Context, paymentID string, esc model.EscrowAccount) (*model.EscrowAccount, error)
}

// escrow defines methods for funds held in trust. ReleaseEscrow performs the
// full release effect (status CAS, balance credits, affiliate earning,
// project reconciliation) in one transaction.
type escrow interface {
	GetEscrow(ctx context.Context, id string) (*model.EscrowAccount, error)
	GetEscrowByProject(ctx context.Context, projectID string) (*model.EscrowAccount, error)
	GetDueEscrows(ctx context.Context, asOf time.Time, limit int) ([]model.EscrowAccount, error)
	SyncEscrowProtection(ctx context.Context, projectID string, protectionEnd time.Time) error
	SetEscrowDisputed(ctx context.Context, projectID string, disputed bool) error
	ReleaseEscrow(ctx context.Context, escrowID string, trigger model.ReleaseTrigger, notes string) (*model.EscrowRelease, error)
}

// user defines methods for marketplace accounts.
type user interface {
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserBalance(ctx context.Context, id string) (decimal.Decimal, error)
}

// withdrawal defines methods for the cash-out ledger draining released escrow.
type withdrawal interface {
	GetWithdrawableBalance(ctx context.Context, tradieID string) (decimal.Decimal, error)
	RecordWithdrawal(ctx context.Context, w model.Withdrawal) (model.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error)
	GetWithdrawalsByTradie(ctx context.Context, tradieID string, limit, offset int) ([]model.Withdrawal, error)
	CompleteWithdrawal(ctx context.Context, withdrawalID, notes string) error
	RejectWithdrawal(ctx context.Context, withdrawalID, notes string) error
}
