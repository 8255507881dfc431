package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the authoritative lifecycle state of a project.
type Status string

const (
	StatusPublished   Status = "published"
	StatusQuoted      Status = "quoted"
	StatusNegotiating Status = "negotiating"
	StatusAgreed      Status = "agreed"
	StatusEscrowed    Status = "escrowed"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusProtection  Status = "protection"
	StatusReleased    Status = "released"
	StatusReviewed    Status = "reviewed"
	StatusWithdrawn   Status = "withdrawn"
	StatusDisputed    Status = "disputed"
	StatusCancelled   Status = "cancelled"
)

// ProtectionPeriod is the window after work completion during which the owner
// may dispute before funds auto-release. Fixed at 15 days.
const ProtectionPeriod = 15 * 24 * time.Hour

// transitions is the guarded transition table. A project status may only move
// to one of the listed successors; terminal states have no successors.
var transitions = map[Status][]Status{
	StatusPublished:   {StatusQuoted, StatusCancelled},
	StatusQuoted:      {StatusNegotiating, StatusAgreed, StatusCancelled},
	StatusNegotiating: {StatusAgreed, StatusQuoted, StatusCancelled, StatusDisputed},
	StatusAgreed:      {StatusEscrowed, StatusNegotiating, StatusCancelled},
	StatusEscrowed:    {StatusInProgress, StatusDisputed, StatusCancelled},
	StatusInProgress:  {StatusCompleted, StatusDisputed},
	StatusCompleted:   {StatusProtection, StatusDisputed},
	StatusProtection:  {StatusReleased, StatusDisputed},
	StatusReleased:    {StatusReviewed, StatusWithdrawn},
	StatusReviewed:    {StatusWithdrawn},
	StatusDisputed:    {StatusNegotiating, StatusInProgress, StatusCompleted, StatusCancelled},
	StatusWithdrawn:   {},
	StatusCancelled:   {},
}

// IsValid reports whether s is a member of the status enum.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible from s.
func (s Status) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the guard table permits moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionError is returned when a requested status change violates the
// guard table. It carries both states so callers can report the exact reason.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition project from %s to %s", e.From, e.To)
}

// Project is a job posting moving through the lifecycle state machine.
type Project struct {
	ID                int64                  `json:"-"`
	ProjectID         string                 `json:"project_id"`
	OwnerID           string                 `json:"owner_id"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	CategoryID        string                 `json:"category_id,omitempty"`
	ProfessionID      string                 `json:"profession_id,omitempty"`
	Location          string                 `json:"location,omitempty"`
	ContactEmail      string                 `json:"contact_email,omitempty"`
	ContactPhone      string                 `json:"contact_phone,omitempty"`
	Status            Status                 `json:"status"`
	AgreedQuoteID     string                 `json:"agreed_quote_id,omitempty"`
	AgreedTradieID    string                 `json:"agreed_tradie_id,omitempty"`
	AgreedPrice       decimal.Decimal        `json:"agreed_price"`
	EscrowAmount      decimal.Decimal        `json:"escrow_amount"`
	CompletionDate    time.Time              `json:"completion_date,omitempty"`
	ProtectionEndDate time.Time              `json:"protection_end_date,omitempty"`
	ReleaseDate       time.Time              `json:"release_date,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	MetaData          map[string]interface{} `json:"meta_data,omitempty"`
}

// Transition moves the project to the requested status, consulting the guard
// table. Every mutating operation goes through here; there is no generic
// "set status" path.
func (p *Project) Transition(to Status) error {
	if !to.IsValid() {
		return fmt.Errorf("unknown project status %q", to)
	}
	if !p.Status.CanTransitionTo(to) {
		return &TransitionError{From: p.Status, To: to}
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	return nil
}

func (p *Project) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}
