package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// EscrowStatus is the state of funds held in trust for a tradie.
type EscrowStatus string

const (
	EscrowHeld     EscrowStatus = "held"
	EscrowReleased EscrowStatus = "released"
	EscrowDisputed EscrowStatus = "disputed"
)

// ReleaseTrigger records what caused an escrow release.
type ReleaseTrigger string

const (
	ReleaseManual    ReleaseTrigger = "manual"
	ReleaseAutomatic ReleaseTrigger = "automatic"
)

// EscrowAccount holds funds in trust for a tradie pending the protection
// period. It is created atomically with payment confirmation (1:1 with the
// payment) and is never deleted. The held-to-released transition is one-way
// and applied as a compare-and-swap at the storage layer.
type EscrowAccount struct {
	ID                  int64           `json:"-"`
	EscrowID            string          `json:"escrow_id"`
	PaymentID           string          `json:"payment_id"`
	ProjectID           string          `json:"project_id"`
	TradieID            string          `json:"tradie_id"`
	ParentTradieID      string          `json:"parent_tradie_id,omitempty"`
	GrossAmount         decimal.Decimal `json:"gross_amount"`
	PlatformFee         decimal.Decimal `json:"platform_fee"`
	AffiliateFee        decimal.Decimal `json:"affiliate_fee"`
	TaxAmount           decimal.Decimal `json:"tax_amount"`
	NetAmount           decimal.Decimal `json:"net_amount"`
	Currency            string          `json:"currency"`
	Status              EscrowStatus    `json:"status"`
	ProtectionStartDate time.Time       `json:"protection_start_date"`
	ProtectionEndDate   time.Time       `json:"protection_end_date"`
	ReleasedAt          time.Time       `json:"released_at,omitempty"`
	ReleaseTrigger      ReleaseTrigger  `json:"release_trigger,omitempty"`
	ReleaseNotes        string          `json:"release_notes,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

func (e *EscrowAccount) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EscrowRelease summarizes one completed release, returned by the automatic
// sweep for notification and audit.
type EscrowRelease struct {
	EscrowID     string          `json:"escrow_id"`
	ProjectID    string          `json:"project_id"`
	TradieID     string          `json:"tradie_id"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	AffiliateFee decimal.Decimal `json:"affiliate_fee"`
	Trigger      ReleaseTrigger  `json:"trigger"`
	ReleasedAt   time.Time       `json:"released_at"`
}

// AffiliateEarning is the fee share credited to a parent tradie when a child
// tradie's project settles. It mirrors the escrow's release semantics but is
// keyed to the affiliate fee component only.
type AffiliateEarning struct {
	ID             int64           `json:"-"`
	EarningID      string          `json:"earning_id"`
	EscrowID       string          `json:"escrow_id"`
	ParentTradieID string          `json:"parent_tradie_id"`
	ChildTradieID  string          `json:"child_tradie_id"`
	Amount         decimal.Decimal `json:"amount"`
	CreatedAt      time.Time       `json:"created_at"`
}
