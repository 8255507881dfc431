package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeFeesWithAffiliate(t *testing.T) {
	gross := decimal.RequireFromString("1000.00")

	fees, err := ComputeFees(gross, true)
	assert.NoError(t, err)
	assert.True(t, fees.PlatformFee.Equal(decimal.RequireFromString("100.00")), "platform fee %s", fees.PlatformFee)
	assert.True(t, fees.AffiliateFee.Equal(decimal.RequireFromString("20.00")), "affiliate fee %s", fees.AffiliateFee)
	assert.True(t, fees.TaxAmount.IsZero())
	assert.True(t, fees.Net.Equal(decimal.RequireFromString("880.00")), "net %s", fees.Net)
}

func TestComputeFeesWithoutAffiliate(t *testing.T) {
	gross := decimal.RequireFromString("250.00")

	fees, err := ComputeFees(gross, false)
	assert.NoError(t, err)
	assert.True(t, fees.AffiliateFee.IsZero())
	assert.True(t, fees.PlatformFee.Equal(decimal.RequireFromString("25.00")))
	assert.True(t, fees.Net.Equal(decimal.RequireFromString("225.00")))
}

// The fee law: for any gross amount and affiliate flag, the components sum
// back to the gross exactly. No money leaks through rounding.
func TestComputeFeesNoLeakage(t *testing.T) {
	amounts := []string{"0.01", "0.13", "1.00", "33.33", "99.99", "1000.00", "12345.67", "999999.99"}

	for _, a := range amounts {
		gross := decimal.RequireFromString(a)
		for _, affiliate := range []bool{true, false} {
			fees, err := ComputeFees(gross, affiliate)
			if err != nil {
				// Tiny grosses can be fully consumed by fees; the
				// calculator refuses rather than producing a zero net.
				continue
			}
			sum := fees.PlatformFee.Add(fees.AffiliateFee).Add(fees.TaxAmount).Add(fees.Net)
			assert.True(t, sum.Equal(gross), "gross=%s affiliate=%v: components sum to %s", a, affiliate, sum)
			if !affiliate {
				assert.True(t, fees.AffiliateFee.IsZero())
			}
		}
	}
}

func TestComputeFeesRejectsNonPositive(t *testing.T) {
	_, err := ComputeFees(decimal.Zero, false)
	assert.Error(t, err)

	_, err = ComputeFees(decimal.RequireFromString("-10.00"), true)
	assert.Error(t, err)
}
