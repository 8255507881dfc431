package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks one payer-to-platform money movement attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment records a single attempt to fund a project's escrow. Exactly one
// completed payment exists per project that has reached escrowed or later;
// the database enforces this with a partial unique index.
type Payment struct {
	ID          int64           `json:"-"`
	PaymentID   string          `json:"payment_id"`
	ProjectID   string          `json:"project_id"`
	QuoteID     string          `json:"quote_id"`
	PayerID     string          `json:"payer_id"`
	TradieID    string          `json:"tradie_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Provider    string          `json:"provider"`
	ProviderRef string          `json:"provider_ref"`
	Status      PaymentStatus   `json:"status"`
	Hash        string          `json:"hash"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt time.Time       `json:"completed_at,omitempty"`
}

func (p *Payment) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}
