package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// UserRole distinguishes homeowners from tradespeople.
type UserRole string

const (
	RoleOwner  UserRole = "owner"
	RoleTradie UserRole = "tradie"
)

// User is a marketplace account. Tradies may carry a parent tradie reference,
// which entitles the parent to the affiliate fee share on the child's settled
// projects. Balance is the running total of released escrow credits, drawn
// down by withdrawals.
type User struct {
	ID             int64                  `json:"-"`
	UserID         string                 `json:"user_id"`
	Role           UserRole               `json:"role"`
	FirstName      string                 `json:"first_name"`
	LastName       string                 `json:"last_name"`
	EmailAddress   string                 `json:"email_address"`
	PhoneNumber    string                 `json:"phone_number,omitempty"`
	ParentTradieID string                 `json:"parent_tradie_id,omitempty"`
	Balance        decimal.Decimal        `json:"balance"`
	CreatedAt      time.Time              `json:"created_at"`
	MetaData       map[string]interface{} `json:"meta_data,omitempty"`
}

func (u *User) ToJSON() ([]byte, error) {
	return json.Marshal(u)
}
