package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Pebs is an amount of the community's unit of account, stored as
// BIGINT micros (10^-6) to avoid floating point errors. Balances are
// signed and unbounded; exchange amounts are always positive.
type Pebs int64

const pebMicros = 1_000_000

// PebsFromDecimal converts a decimal peb amount to micros, rounding down.
func PebsFromDecimal(d decimal.Decimal) Pebs {
	return Pebs(d.Mul(decimal.NewFromInt(pebMicros)).IntPart())
}

// PebsFromInt converts whole pebs to micros.
func PebsFromInt(n int64) Pebs {
	return Pebs(n * pebMicros)
}

// Decimal converts micros back to a decimal peb amount.
func (p Pebs) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(p)).Div(decimal.NewFromInt(pebMicros))
}

// Micros returns the raw micro-peb value.
func (p Pebs) Micros() int64 {
	return int64(p)
}

func (p Pebs) String() string {
	return fmt.Sprintf("%s pebs", p.Decimal().String())
}

// BalanceStatus buckets a balance for community-support surfacing.
func BalanceStatus(balance Pebs) string {
	switch {
	case balance < PebsFromInt(SupportNeededBelowPebs):
		return "needs-support"
	case balance < PebsFromInt(AttentionBelowPebs):
		return "attention"
	case balance < 0:
		return "negative"
	case balance == 0:
		return "balanced"
	default:
		return "positive"
	}
}

// ValidCategory reports whether category is one of the closed exchange categories.
func ValidCategory(category string) bool {
	_, ok := ExchangeCategories[category]
	return ok
}

// ValidDirection reports whether direction is provided or received.
func ValidDirection(direction string) bool {
	return direction == DirectionProvided || direction == DirectionReceived
}

// ValidPriority reports whether priority is one of low, medium, high.
func ValidPriority(priority string) bool {
	return priority == PriorityLow || priority == PriorityMedium || priority == PriorityHigh
}
