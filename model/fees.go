package model

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// PlatformFeeRate is applied to every settled project.
	PlatformFeeRate = decimal.NewFromFloat(0.10)
	// AffiliateFeeRate is applied only when the receiving tradie has a
	// registered parent tradie.
	AffiliateFeeRate = decimal.NewFromFloat(0.02)
)

// FeeBreakdown is the split of a gross escrow amount. The components always
// sum to the gross exactly: the net is derived by subtraction after the fee
// components are rounded to the currency's minor unit.
type FeeBreakdown struct {
	Gross        decimal.Decimal `json:"gross_amount"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	AffiliateFee decimal.Decimal `json:"affiliate_fee"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	Net          decimal.Decimal `json:"net_amount"`
}

// ComputeFees splits a gross amount into platform fee, affiliate fee, tax and
// net. Tax is carried at zero for now but kept in the breakdown so settlement
// records stay shape-stable when it is introduced. Fee components use
// banker's rounding at two decimal places.
func ComputeFees(gross decimal.Decimal, hasAffiliateParent bool) (FeeBreakdown, error) {
	if gross.LessThanOrEqual(decimal.Zero) {
		return FeeBreakdown{}, errors.New("gross amount must be positive")
	}

	platformFee := gross.Mul(PlatformFeeRate).RoundBank(2)
	affiliateFee := decimal.Zero
	if hasAffiliateParent {
		affiliateFee = gross.Mul(AffiliateFeeRate).RoundBank(2)
	}
	tax := decimal.Zero

	net := gross.Sub(platformFee).Sub(affiliateFee).Sub(tax)
	if net.LessThanOrEqual(decimal.Zero) {
		return FeeBreakdown{}, errors.New("fees exceed gross amount")
	}

	return FeeBreakdown{
		Gross:        gross,
		PlatformFee:  platformFee,
		AffiliateFee: affiliateFee,
		TaxAmount:    tax,
		Net:          net,
	}, nil
}
