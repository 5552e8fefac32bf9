package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/jjatencia/exorawebipad/internal/model"
)

// Leg is one method's share of a split payment.
type Leg struct {
	Method model.PaymentMethod `json:"method"`
	Amount decimal.Decimal     `json:"amount"`
}

// Allocation spreads a total across payment methods. It lives only for the
// duration of a checkout.
type Allocation struct {
	total   decimal.Decimal
	amounts map[model.PaymentMethod]decimal.Decimal
}

func NewAllocation(total decimal.Decimal) *Allocation {
	return &Allocation{
		total:   total,
		amounts: make(map[model.PaymentMethod]decimal.Decimal),
	}
}

func (a *Allocation) Total() decimal.Decimal { return a.total }

func (a *Allocation) Get(m model.PaymentMethod) decimal.Decimal {
	return a.amounts[m]
}

func (a *Allocation) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range a.amounts {
		sum = sum.Add(v)
	}
	return sum
}

// Remaining is the part of the total not yet allocated.
func (a *Allocation) Remaining() decimal.Decimal {
	return a.total.Sub(a.Sum())
}

// Set allocates amount to method, clamped to [0, remaining + previous
// allocation of method], and returns the amount actually applied.
func (a *Allocation) Set(m model.PaymentMethod, amount decimal.Decimal) decimal.Decimal {
	prev := a.amounts[m]
	ceiling := a.Remaining().Add(prev)
	if ceiling.IsNegative() {
		ceiling = decimal.Zero
	}

	switch {
	case amount.IsNegative():
		amount = decimal.Zero
	case amount.GreaterThan(ceiling):
		amount = ceiling
	}

	if amount.IsZero() {
		delete(a.amounts, m)
	} else {
		a.amounts[m] = amount
	}
	return amount
}

// Balanced reports whether the allocations add up to the total within Tolerance.
func (a *Allocation) Balanced() bool {
	return a.total.Sub(a.Sum()).Abs().LessThan(Tolerance)
}

// Legs returns the positive allocations in settlement order.
func (a *Allocation) Legs() []Leg {
	out := make([]Leg, 0, len(a.amounts))
	for _, m := range model.PaymentMethods {
		if v, ok := a.amounts[m]; ok && v.IsPositive() {
			out = append(out, Leg{Method: m, Amount: v})
		}
	}
	return out
}

// Amounts copies the current allocations.
func (a *Allocation) Amounts() map[model.PaymentMethod]decimal.Decimal {
	out := make(map[model.PaymentMethod]decimal.Decimal, len(a.amounts))
	for k, v := range a.amounts {
		out[k] = v
	}
	return out
}
