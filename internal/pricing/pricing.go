// Package pricing computes what an appointment costs after edits and
// promotions, and tracks how a split payment is spread across methods.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/jjatencia/exorawebipad/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Tolerance is the largest gap between total and allocations still treated as settled.
var Tolerance = decimal.New(1, -2)

// FromMinor converts minor currency units (cents) to the amount form.
func FromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

// Selection is what staff picked for an appointment in the payment flow.
type Selection struct {
	Service    *model.Service
	Variants   []model.Variant
	Promotions []model.Promotion
}

// Quote is the breakdown of an amount due.
type Quote struct {
	Base     decimal.Decimal `json:"base"`
	Discount decimal.Decimal `json:"discount"`
	Final    decimal.Decimal `json:"final"`
	Edited   bool            `json:"edited"`
}

// BasePrice is the service price plus every variant's additional price.
func BasePrice(service *model.Service, variants []model.Variant) decimal.Decimal {
	base := decimal.Zero
	if service != nil {
		base = base.Add(FromMinor(service.Price))
	}
	for _, v := range variants {
		base = base.Add(FromMinor(v.Extra()))
	}
	return base
}

// Discount accumulates the reductions of the promotions that target the
// service total. A promotion contributes either its percentage of base or,
// without a percentage, its positive fixed amount; never both.
func Discount(base decimal.Decimal, promotions []model.Promotion) decimal.Decimal {
	total := decimal.Zero
	for _, p := range promotions {
		if !p.DiscountsService() {
			continue
		}
		switch {
		case p.HasPercentage():
			total = total.Add(base.Mul(*p.Percentage).Div(hundred))
		case p.Amount > 0:
			total = total.Add(FromMinor(p.Amount))
		}
	}
	return total
}

// Final clamps base minus discount at zero.
func Final(base, discount decimal.Decimal) decimal.Decimal {
	out := base.Sub(discount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// QuoteStored prices an unedited appointment from its stored amount.
func QuoteStored(stored decimal.Decimal, promotions []model.Promotion) Quote {
	d := Discount(stored, promotions)
	return Quote{Base: stored, Discount: d, Final: Final(stored, d)}
}

// QuoteEdited prices an edited selection from the recomputed base.
func QuoteEdited(sel Selection) Quote {
	base := BasePrice(sel.Service, sel.Variants)
	d := Discount(base, sel.Promotions)
	return Quote{Base: base, Discount: d, Final: Final(base, d), Edited: true}
}

// WalletCovers reports whether a wallet balance can pay amount.
func WalletCovers(balance, amount decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(amount)
}

// Eligible filters the promotions that can be toggled in the edit flow.
func Eligible(promotions []model.Promotion) []model.Promotion {
	out := make([]model.Promotion, 0, len(promotions))
	for _, p := range promotions {
		if p.DiscountsService() {
			out = append(out, p)
		}
	}
	return out
}
