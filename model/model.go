package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
// This is useful for creating unique identifiers with context-specific prefixes,
// e.g. "prj_9f8d..." for projects or "esc_11ab..." for escrow accounts.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// AmountsEqual reports whether two monetary amounts match within the
// platform's absolute tolerance of 0.01, which absorbs rounding differences
// between a client-submitted amount and the stored agreed price.
func AmountsEqual(a, b decimal.Decimal) bool {
	tolerance := decimal.New(1, -2)
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// HashReference generates a SHA-256 hash over a payment's identifying fields.
// It pins the payment record to its project, quote and amount so tampering
// with any of them is detectable.
func HashReference(projectID, quoteID string, amount decimal.Decimal) string {
	data := fmt.Sprintf("%s%s%s", projectID, quoteID, amount.StringFixed(2))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
