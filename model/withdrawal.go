package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus is the state of a tradie's cash-out request.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalRejected  WithdrawalStatus = "rejected"
)

// Withdrawal is a tradie's request to cash out released escrow balance. It is
// a separate ledger consuming released escrow, not a project state: the
// withdrawable balance is the sum of released net amounts minus all
// non-rejected withdrawals for the tradie.
type Withdrawal struct {
	ID              int64            `json:"-"`
	WithdrawalID    string           `json:"withdrawal_id"`
	TradieID        string           `json:"tradie_id"`
	RequestedAmount decimal.Decimal  `json:"requested_amount"`
	ProcessingFee   decimal.Decimal  `json:"processing_fee"`
	FinalAmount     decimal.Decimal  `json:"final_amount"`
	Status          WithdrawalStatus `json:"status"`
	ReferenceNumber string           `json:"reference_number"`
	BankDetails     string           `json:"bank_details,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	ProcessedAt     time.Time        `json:"processed_at,omitempty"`
}

func (w *Withdrawal) ToJSON() ([]byte, error) {
	return json.Marshal(w)
}

// Review is an owner's post-release rating of the tradie's work. Exactly one
// review exists per project; the database enforces this with a unique index.
type Review struct {
	ID        int64     `json:"-"`
	ReviewID  string    `json:"review_id"`
	ProjectID string    `json:"project_id"`
	OwnerID   string    `json:"owner_id"`
	TradieID  string    `json:"tradie_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
