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
package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"

	"github.com/tradielink/tradielink/model"
)

// CreateUser is the request body for registering an account.
type CreateUser struct {
	Role           string                 `json:"role"`
	FirstName      string                 `json:"first_name"`
	LastName       string                 `json:"last_name"`
	EmailAddress   string                 `json:"email_address"`
	PhoneNumber    string                 `json:"phone_number"`
	ParentTradieID string                 `json:"parent_tradie_id"`
	MetaData       map[string]interface{} `json:"meta_data"`
}

func (u *CreateUser) ValidateCreateUser() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Role, validation.Required, validation.In("owner", "tradie")),
		validation.Field(&u.FirstName, validation.Required),
		validation.Field(&u.LastName, validation.Required),
		validation.Field(&u.EmailAddress, validation.Required, is.Email),
	)
}

func (u *CreateUser) ToUser() model.User {
	return model.User{
		Role:           model.UserRole(u.Role),
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		EmailAddress:   u.EmailAddress,
		PhoneNumber:    u.PhoneNumber,
		ParentTradieID: u.ParentTradieID,
		MetaData:       u.MetaData,
	}
}

// CreateProject is the request body for posting a project.
type CreateProject struct {
	OwnerID      string                 `json:"owner_id"`
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	CategoryID   string                 `json:"category_id"`
	ProfessionID string                 `json:"profession_id"`
	Location     string                 `json:"location"`
	ContactEmail string                 `json:"contact_email"`
	ContactPhone string                 `json:"contact_phone"`
	MetaData     map[string]interface{} `json:"meta_data"`
}

func (p *CreateProject) ValidateCreateProject() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.OwnerID, validation.Required),
		validation.Field(&p.Title, validation.Required, validation.Length(3, 200)),
		validation.Field(&p.ContactEmail, validation.When(p.ContactEmail != "", is.Email)),
	)
}

func (p *CreateProject) ToProject() model.Project {
	return model.Project{
		OwnerID:      p.OwnerID,
		Title:        p.Title,
		Description:  p.Description,
		CategoryID:   p.CategoryID,
		ProfessionID: p.ProfessionID,
		Location:     p.Location,
		ContactEmail: p.ContactEmail,
		ContactPhone: p.ContactPhone,
		MetaData:     p.MetaData,
	}
}

// CreateQuote is the request body for a tradie's bid.
type CreateQuote struct {
	ProjectID   string          `json:"project_id"`
	TradieID    string          `json:"tradie_id"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
}

func (q *CreateQuote) ValidateCreateQuote() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.ProjectID, validation.Required),
		validation.Field(&q.TradieID, validation.Required),
		validation.Field(&q.Price, validation.Required, validation.By(positiveAmount)),
	)
}

func (q *CreateQuote) ToQuote() model.Quote {
	return model.Quote{
		ProjectID:   q.ProjectID,
		TradieID:    q.TradieID,
		Price:       q.Price,
		Description: q.Description,
	}
}

// NegotiateQuote is the owner's counter offer.
type NegotiateQuote struct {
	OwnerID      string          `json:"owner_id"`
	CounterPrice decimal.Decimal `json:"counter_price"`
}

func (n *NegotiateQuote) ValidateNegotiateQuote() error {
	return validation.ValidateStruct(n,
		validation.Field(&n.OwnerID, validation.Required),
		validation.Field(&n.CounterPrice, validation.Required, validation.By(positiveAmount)),
	)
}

// AcceptQuote identifies the acting owner.
type AcceptQuote struct {
	OwnerID string `json:"owner_id"`
}

func (a *AcceptQuote) ValidateAcceptQuote() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.OwnerID, validation.Required),
	)
}

// ProcessPayment is the request body for funding escrow.
type ProcessPayment struct {
	PayerID  string          `json:"payer_id"`
	Provider string          `json:"provider"`
	Amount   decimal.Decimal `json:"amount"`
}

func (p *ProcessPayment) ValidateProcessPayment() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.PayerID, validation.Required),
		validation.Field(&p.Amount, validation.Required, validation.By(positiveAmount)),
	)
}

// ActorRequest carries the acting user for lifecycle transitions.
type ActorRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
	Notes   string `json:"notes"`
}

func (a *ActorRequest) ValidateActorRequest() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.ActorID, validation.Required),
	)
}

// ResolveDispute carries the back office's resolution target.
type ResolveDispute struct {
	Resolution string `json:"resolution"`
}

func (r *ResolveDispute) ValidateResolveDispute() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Resolution, validation.Required,
			validation.In("negotiating", "in_progress", "completed", "cancelled")),
	)
}

// CreateReview is the owner's post-release rating.
type CreateReview struct {
	OwnerID string `json:"owner_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (r *CreateReview) ValidateCreateReview() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.OwnerID, validation.Required),
		validation.Field(&r.Rating, validation.Required, validation.Min(1), validation.Max(5)),
	)
}

// RequestWithdrawal is a tradie's cash-out request.
type RequestWithdrawal struct {
	TradieID    string          `json:"tradie_id"`
	Amount      decimal.Decimal `json:"amount"`
	BankDetails string          `json:"bank_details"`
}

func (w *RequestWithdrawal) ValidateRequestWithdrawal() error {
	return validation.ValidateStruct(w,
		validation.Field(&w.TradieID, validation.Required),
		validation.Field(&w.Amount, validation.Required, validation.By(positiveAmount)),
	)
}

// ProcessWithdrawal is the back office's decision on a pending withdrawal.
type ProcessWithdrawal struct {
	Notes string `json:"notes"`
}

func positiveAmount(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return validation.NewError("validation_amount", "must be a decimal amount")
	}
	if !amount.IsPositive() {
		return validation.NewError("validation_amount", "must be greater than zero")
	}
	return nil
}
