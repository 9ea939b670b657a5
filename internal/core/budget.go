package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// BudgetAmount limits a category to a fixed monthly spend.
	BudgetAmount BudgetMode = "amount"
	// BudgetPercent limits a category to a share of the month's total spend.
	BudgetPercent BudgetMode = "percent"
)

// Progress thresholds, in hundredths of a percent.
const (
	budgetWarnAt = 80_00
	budgetOverAt = 100_00
)

const (
	BudgetOK      BudgetStatus = "ok"
	BudgetWarning BudgetStatus = "warning"
	BudgetOver    BudgetStatus = "over"
)

var (
	ErrInvalidBudgetMode = errors.New("invalid budget mode")
	ErrInvalidPercent    = errors.New("percent must be above 0 and at most 100")
)

type (
	BudgetMode   string
	BudgetStatus string

	// Percent is a percentage with two fractional digits.
	Percent struct {
		Hundredths int64
	}

	// BudgetLimit keeps both kinds of limit so switching modes back and
	// forth does not lose what the user entered for the other one.
	BudgetLimit struct {
		Category string  `json:"category"`
		Amount   Money   `json:"amount"`
		Percent  Percent `json:"percent"`
	}

	// Budgets are the user's monthly spending limits.
	Budgets struct {
		Mode BudgetMode `json:"mode"`
		// Total is the overall monthly budget used by BudgetAmount mode.
		Total  Money         `json:"total"`
		Limits []BudgetLimit `json:"limits"`
	}

	// BudgetSummary reports how much of the total budget the limits allocate,
	// in currency units or percent depending on the mode.
	BudgetSummary struct {
		Budgets
		Allocated     json.Number `json:"allocated"`
		Remaining     json.Number `json:"remaining"`
		OverAllocated bool        `json:"overAllocated"`
	}

	// BudgetProgress compares one category's confirmed spend of a month
	// against its limit. In BudgetPercent mode Share is the category's part of
	// the month's total spend and Target its limit; Used relates the two.
	BudgetProgress struct {
		Category string       `json:"category"`
		Mode     BudgetMode   `json:"mode"`
		Spent    Money        `json:"spent"`
		Limit    Money        `json:"limit"`
		Share    Percent      `json:"share"`
		Target   Percent      `json:"target"`
		Used     Percent      `json:"used"`
		Status   BudgetStatus `json:"status"`
	}
)

func (m BudgetMode) Valid() bool {
	return m == BudgetAmount || m == BudgetPercent
}

// EffectiveMode treats an unset mode as BudgetAmount.
func (b Budgets) EffectiveMode() BudgetMode {
	if b.Mode == "" {
		return BudgetAmount
	}
	return b.Mode
}

// Limit returns the limit set for category, if any.
func (b Budgets) Limit(category string) (BudgetLimit, bool) {
	for _, l := range b.Limits {
		if strings.EqualFold(l.Category, category) {
			return l, true
		}
	}
	return BudgetLimit{}, false
}

// Active reports whether l has a positive limit in mode.
func (l BudgetLimit) Active(mode BudgetMode) bool {
	if mode == BudgetPercent {
		return l.Percent.Hundredths > 0
	}
	return l.Amount.Cents > 0
}

// Summary totals the limits of the current mode against the available
// budget: Total in BudgetAmount mode, 100% in BudgetPercent mode.
func (b Budgets) Summary() BudgetSummary {
	s := BudgetSummary{Budgets: b}
	s.Mode = b.EffectiveMode()
	if s.Limits == nil {
		s.Limits = []BudgetLimit{}
	}

	var allocated, total int64
	for _, l := range b.Limits {
		if s.Mode == BudgetPercent {
			allocated += l.Percent.Hundredths
		} else {
			allocated += l.Amount.Cents
		}
	}
	if s.Mode == BudgetPercent {
		total = budgetOverAt
	} else {
		total = b.Total.Cents
	}

	s.Allocated = json.Number(decimal.New(allocated, -2).StringFixed(2))
	s.Remaining = json.Number(decimal.New(max(0, total-allocated), -2).StringFixed(2))
	s.OverAllocated = allocated > total
	return s
}

// StatusFor classifies a progress ratio.
func StatusFor(used Percent) BudgetStatus {
	switch {
	case used.Hundredths >= budgetOverAt:
		return BudgetOver
	case used.Hundredths >= budgetWarnAt:
		return BudgetWarning
	default:
		return BudgetOK
	}
}

// ParsePercent parses a percentage such as "12.5" or "12,5" in (0, 100].
func ParsePercent(s string) (Percent, error) {
	h, err := ParseDecimalToCents(s)
	if err != nil || h > budgetOverAt {
		return Percent{}, ErrInvalidPercent
	}
	return Percent{Hundredths: h}, nil
}

// PercentOf returns part/whole as a percentage rounded half-up to two
// digits. A non-positive whole yields zero.
func PercentOf(part, whole int64) Percent {
	if whole <= 0 {
		return Percent{}
	}
	p := decimal.NewFromInt(part).Shift(4).Div(decimal.NewFromInt(whole)).Round(0)
	return Percent{Hundredths: p.IntPart()}
}

func (p Percent) Decimal() decimal.Decimal {
	return decimal.New(p.Hundredths, -2)
}

func (p Percent) String() string {
	return p.Decimal().StringFixed(2)
}

func (p Percent) IsZero() bool {
	return p.Hundredths == 0
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalJSON accepts a JSON number or string, unbounded so stored
// progress figures above 100 read back.
func (p *Percent) UnmarshalJSON(b []byte) error {
	d, err := decimal.NewFromString(string(bytes.Trim(b, `"`)))
	if err != nil || d.IsNegative() {
		return ErrInvalidPercent
	}
	p.Hundredths = d.Shift(2).Round(0).IntPart()
	return nil
}
