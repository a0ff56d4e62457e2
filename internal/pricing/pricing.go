// Package pricing computes registration quotes. It is pure: the reference
// time for early-bird eligibility is a parameter, never an ambient clock read.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/summit/internal/catalog/domain"
	"github.com/smallbiznis/summit/internal/config"
)

type RegistrationType string

const (
	TypeConsultancy  RegistrationType = "consultancy"
	TypeStudentGuest RegistrationType = "student-guest"
)

type DiscountType string

const (
	DiscountNone       DiscountType = ""
	DiscountStudent    DiscountType = "student_discount"
	DiscountEarlyBird  DiscountType = "early_bird"
	DiscountMultiEvent DiscountType = "multi_event"
)

// Defaults supplies the rates used when an event does not carry its own.
type Defaults struct {
	StudentDiscountPercent    decimal.Decimal
	MultiEventDiscountPercent decimal.Decimal
}

func DefaultsFromConfig(cfg config.PricingConfig) Defaults {
	return Defaults{
		StudentDiscountPercent:    decimal.NewFromFloat(cfg.StudentDiscountPercent),
		MultiEventDiscountPercent: decimal.NewFromFloat(cfg.MultiEventDiscountPercent),
	}
}

// Quote is the outcome of pricing one registration. Amounts are major
// currency units at two decimal places.
type Quote struct {
	OriginalAmount  decimal.Decimal
	DiscountAmount  decimal.Decimal
	FinalAmount     decimal.Decimal
	DiscountType    DiscountType
	DiscountPercent decimal.Decimal
}

type candidate struct {
	typ     DiscountType
	percent decimal.Decimal
	amount  decimal.Decimal
}

var oneHundred = decimal.NewFromInt(100)

// Compute prices a selection of events for one registration.
//
// student-guest registrations always receive the student discount (averaged
// across the selected events). consultancy registrations receive the larger
// by amount of the early-bird and multi-event discounts, never both. The
// early-bird rate is averaged across ALL selected events even though a single
// qualifying event activates eligibility; that asymmetry is intentional.
func Compute(events []catalogdomain.Event, typ RegistrationType, groupSize int, now time.Time, defaults Defaults) Quote {
	if len(events) == 0 {
		return Quote{}
	}
	if groupSize < 1 {
		groupSize = 1
	}

	original := decimal.Zero
	for _, event := range events {
		original = original.Add(event.Price)
	}
	original = original.Mul(decimal.NewFromInt(int64(groupSize)))

	if typ == TypeStudentGuest {
		percent := averagePercent(events, studentPercent, defaults.StudentDiscountPercent)
		discount := discountAmount(original, percent)
		return Quote{
			OriginalAmount:  original,
			DiscountAmount:  discount,
			FinalAmount:     floorZero(original.Sub(discount)),
			DiscountType:    DiscountStudent,
			DiscountPercent: percent,
		}
	}

	// Candidate order matters: on equal amounts the earlier candidate wins,
	// so early-bird takes precedence over multi-event.
	var candidates []candidate

	if earlyBirdEligible(events, now) {
		percent := averagePercent(events, earlyBirdPercent, decimal.Zero)
		candidates = append(candidates, candidate{
			typ:     DiscountEarlyBird,
			percent: percent,
			amount:  discountAmount(original, percent),
		})
	}

	if len(events) >= 2 {
		percent := averagePercent(events, multiEventPercent, defaults.MultiEventDiscountPercent)
		candidates = append(candidates, candidate{
			typ:     DiscountMultiEvent,
			percent: percent,
			amount:  discountAmount(original, percent),
		})
	}

	best := candidate{typ: DiscountNone, percent: decimal.Zero, amount: decimal.Zero}
	for _, c := range candidates {
		if c.amount.GreaterThan(best.amount) {
			best = c
		}
	}

	return Quote{
		OriginalAmount:  original,
		DiscountAmount:  best.amount,
		FinalAmount:     floorZero(original.Sub(best.amount)),
		DiscountType:    best.typ,
		DiscountPercent: best.percent,
	}
}

// earlyBirdEligible is an OR across events: any one still inside its
// early-bird window activates the discount for the whole selection.
func earlyBirdEligible(events []catalogdomain.Event, now time.Time) bool {
	for _, event := range events {
		if event.EarlyBirdDate == nil {
			continue
		}
		if !now.After(*event.EarlyBirdDate) {
			return true
		}
	}
	return false
}

func averagePercent(events []catalogdomain.Event, pick func(catalogdomain.Event) decimal.NullDecimal, def decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, event := range events {
		if value := pick(event); value.Valid {
			sum = sum.Add(value.Decimal)
		} else {
			sum = sum.Add(def)
		}
	}
	return sum.Div(decimal.NewFromInt(int64(len(events))))
}

func discountAmount(original, percent decimal.Decimal) decimal.Decimal {
	return original.Mul(percent).Div(oneHundred).Round(2)
}

func floorZero(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

func studentPercent(e catalogdomain.Event) decimal.NullDecimal    { return e.StudentDiscountPercent }
func earlyBirdPercent(e catalogdomain.Event) decimal.NullDecimal  { return e.EarlyBirdDiscountPercent }
func multiEventPercent(e catalogdomain.Event) decimal.NullDecimal { return e.MultiEventDiscountPercent }
