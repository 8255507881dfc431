package model

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStatusGuardTable(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPublished, StatusQuoted, true},
		{StatusPublished, StatusCancelled, true},
		{StatusPublished, StatusEscrowed, false},
		{StatusQuoted, StatusAgreed, true},
		{StatusNegotiating, StatusQuoted, true},
		{StatusNegotiating, StatusDisputed, true},
		{StatusAgreed, StatusEscrowed, true},
		{StatusAgreed, StatusInProgress, false},
		{StatusEscrowed, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusProtection, false},
		{StatusCompleted, StatusProtection, true},
		{StatusProtection, StatusReleased, true},
		{StatusProtection, StatusCancelled, false},
		{StatusReleased, StatusReviewed, true},
		{StatusReleased, StatusWithdrawn, true},
		{StatusReviewed, StatusWithdrawn, true},
		{StatusDisputed, StatusInProgress, true},
		{StatusDisputed, StatusReleased, false},
		{StatusWithdrawn, StatusReleased, false},
		{StatusCancelled, StatusPublished, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.allowed, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusWithdrawn.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusReleased.IsTerminal())
	assert.False(t, StatusDisputed.IsTerminal())
}

func TestProjectTransition(t *testing.T) {
	p := &Project{ProjectID: "prj_test", Status: StatusAgreed}

	err := p.Transition(StatusEscrowed)
	assert.NoError(t, err)
	assert.Equal(t, StatusEscrowed, p.Status)

	err = p.Transition(StatusReleased)
	assert.Error(t, err)
	var te *TransitionError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, StatusEscrowed, te.From)
	assert.Equal(t, StatusReleased, te.To)
	assert.Equal(t, StatusEscrowed, p.Status, "failed transition must not mutate status")
}

func TestProjectTransitionUnknownStatus(t *testing.T) {
	p := &Project{Status: StatusPublished}
	err := p.Transition(Status("archived"))
	assert.Error(t, err)
	assert.Equal(t, StatusPublished, p.Status)
}

func TestAmountsEqual(t *testing.T) {
	price := decimal.RequireFromString("1000.00")
	assert.True(t, AmountsEqual(price, decimal.RequireFromString("1000.00")))
	assert.True(t, AmountsEqual(price, decimal.RequireFromString("1000.01")))
	assert.True(t, AmountsEqual(price, decimal.RequireFromString("999.99")))
	assert.False(t, AmountsEqual(price, decimal.RequireFromString("1000.02")))
	assert.False(t, AmountsEqual(price, decimal.RequireFromString("999.98")))
}
