package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteStatus is the state of a tradie's bid on a project.
type QuoteStatus string

const (
	QuotePending  QuoteStatus = "pending"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRejected QuoteStatus = "rejected"
)

// Quote is a priced bid submitted by a tradie against a posted project.
// At most one quote per project may hold QuoteAccepted at any time; the
// database enforces this with a partial unique index.
type Quote struct {
	ID           int64           `json:"-"`
	QuoteID      string          `json:"quote_id"`
	ProjectID    string          `json:"project_id"`
	TradieID     string          `json:"tradie_id"`
	Price        decimal.Decimal `json:"price"`
	CounterPrice decimal.Decimal `json:"counter_price,omitempty"`
	Description  string          `json:"description"`
	Status       QuoteStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (q *Quote) ToJSON() ([]byte, error) {
	return json.Marshal(q)
}
