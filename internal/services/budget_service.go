package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// habitualMonths is how many months in a row before the current one a
// category must have gone over budget to count as habitually over.
const habitualMonths = 2

// BudgetReport is the budget view of one month.
type BudgetReport struct {
	Year     int                   `json:"year"`
	Month    int                   `json:"month"`
	Mode     core.BudgetMode       `json:"mode"`
	Progress []core.BudgetProgress `json:"progress"`
	// HabituallyOver lists categories back within budget this month after
	// going over it in each of the previous months.
	HabituallyOver []string `json:"habituallyOver"`
}

// BudgetService manages category budgets and measures spending against them.
type BudgetService struct {
	ledger *Ledger
}

func NewBudgetService(ledger *Ledger) *BudgetService {
	return &BudgetService{ledger: ledger}
}

// Summary returns the budgets with their allocation totals.
func (s *BudgetService) Summary(ctx context.Context) (core.BudgetSummary, error) {
	state, err := s.ledger.Read(ctx)
	if err != nil {
		return core.BudgetSummary{}, err
	}
	return state.Budgets.Summary(), nil
}

// Configure switches the budget mode and sets the overall monthly total.
// An empty mode or a nil total leaves that setting as it is.
func (s *BudgetService) Configure(ctx context.Context, mode core.BudgetMode, total *core.Money) (core.BudgetSummary, error) {
	if mode != "" && !mode.Valid() {
		return core.BudgetSummary{}, &core.ValidationError{Field: "mode", Err: core.ErrInvalidBudgetMode}
	}
	if total != nil && total.Cents < 0 {
		return core.BudgetSummary{}, &core.ValidationError{Field: "total", Err: core.ErrInvalidAmount}
	}

	var budgets core.Budgets
	err := s.ledger.Update(ctx, func(state core.State) (core.State, bool, error) {
		if mode != "" {
			state.Budgets.Mode = mode
		}
		if total != nil {
			state.Budgets.Total = *total
		}
		budgets = state.Budgets
		return state, true, nil
	})
	if err != nil {
		return core.BudgetSummary{}, err
	}

	slog.InfoContext(ctx, "Budget settings updated",
		applog.FieldOperation, applog.OpBudget,
		"mode", budgets.EffectiveMode(),
		"total_cents", budgets.Total.Cents)
	return budgets.Summary(), nil
}

// SetLimit sets category's limit for the current mode from a decimal string:
// an amount in BudgetAmount mode, a percentage in BudgetPercent mode. The
// limit kept for the other mode is left alone.
func (s *BudgetService) SetLimit(ctx context.Context, category, value string) (core.BudgetLimit, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return core.BudgetLimit{}, &core.ValidationError{Field: "category", Err: core.ErrEmptyCategory}
	}

	var (
		limit core.BudgetLimit
		mode  core.BudgetMode
	)
	err := s.ledger.Update(ctx, func(state core.State) (core.State, bool, error) {
		mode = state.Budgets.EffectiveMode()
		limits := append([]core.BudgetLimit(nil), state.Budgets.Limits...)

		i := -1
		for j, l := range limits {
			if strings.EqualFold(l.Category, category) {
				i = j
				break
			}
		}
		if i < 0 {
			limits = append(limits, core.BudgetLimit{Category: category})
			i = len(limits) - 1
		}

		if mode == core.BudgetPercent {
			p, err := core.ParsePercent(value)
			if err != nil {
				return state, false, &core.ValidationError{Field: "value", Err: err}
			}
			limits[i].Percent = p
		} else {
			cents, err := core.ParseDecimalToCents(value)
			if err != nil {
				return state, false, &core.ValidationError{Field: "value", Err: err}
			}
			limits[i].Amount = core.Money{Cents: cents}
		}

		state.Budgets.Limits = limits
		limit = limits[i]
		return state, true, nil
	})
	if err != nil {
		return core.BudgetLimit{}, err
	}

	slog.InfoContext(ctx, "Budget limit set",
		applog.FieldOperation, applog.OpBudget,
		"category", limit.Category,
		"mode", mode)
	return limit, nil
}

// RemoveLimit drops every limit of category.
func (s *BudgetService) RemoveLimit(ctx context.Context, category string) error {
	category = strings.TrimSpace(category)
	err := s.ledger.Update(ctx, func(state core.State) (core.State, bool, error) {
		limits := make([]core.BudgetLimit, 0, len(state.Budgets.Limits))
		for _, l := range state.Budgets.Limits {
			if !strings.EqualFold(l.Category, category) {
				limits = append(limits, l)
			}
		}
		if len(limits) == len(state.Budgets.Limits) {
			return state, false, &core.NotFoundError{Kind: "budget", ID: category}
		}
		state.Budgets.Limits = limits
		return state, true, nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Budget limit removed",
		applog.FieldOperation, applog.OpDelete,
		"category", category)
	return nil
}

// Report measures the confirmed spending of year/month against the budgets.
func (s *BudgetService) Report(ctx context.Context, year, month int) (BudgetReport, error) {
	if month < 1 || month > 12 {
		return BudgetReport{}, &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
	}
	state, err := s.ledger.Read(ctx)
	if err != nil {
		return BudgetReport{}, err
	}
	return BudgetReport{
		Year:           year,
		Month:          month,
		Mode:           state.Budgets.EffectiveMode(),
		Progress:       BuildBudgetProgress(state.Transactions, state.Budgets, year, month),
		HabituallyOver: HabituallyOver(state.Transactions, state.Budgets, year, month),
	}, nil
}

// BuildBudgetProgress compares each active limit with the confirmed spend of
// year/month, in the order the limits were set.
func BuildBudgetProgress(txs []core.Transaction, budgets core.Budgets, year, month int) []core.BudgetProgress {
	mode := budgets.EffectiveMode()
	spent, total := monthSpend(txs, year, month)

	out := []core.BudgetProgress{}
	for _, l := range budgets.Limits {
		if !l.Active(mode) {
			continue
		}
		p := core.BudgetProgress{
			Category: l.Category,
			Mode:     mode,
			Spent:    core.Money{Cents: spent[strings.ToLower(l.Category)]},
		}
		if mode == core.BudgetPercent {
			p.Target = l.Percent
			p.Share = core.PercentOf(p.Spent.Cents, total)
			p.Used = core.PercentOf(p.Share.Hundredths, p.Target.Hundredths)
		} else {
			p.Limit = l.Amount
			p.Used = core.PercentOf(p.Spent.Cents, p.Limit.Cents)
		}
		p.Status = core.StatusFor(p.Used)
		out = append(out, p)
	}
	return out
}

// HabituallyOver returns the categories that are within budget in
// year/month but went over it in each of the habitualMonths months before.
func HabituallyOver(txs []core.Transaction, budgets core.Budgets, year, month int) []string {
	mode := budgets.EffectiveMode()
	out := []string{}
	for _, l := range budgets.Limits {
		if !l.Active(mode) || overBudget(txs, l, mode, year, month) {
			continue
		}
		habitual := true
		for back := 1; back <= habitualMonths; back++ {
			prev := time.Date(year, time.Month(month-back), 1, 0, 0, 0, 0, time.UTC)
			if !overBudget(txs, l, mode, prev.Year(), int(prev.Month())) {
				habitual = false
				break
			}
		}
		if habitual {
			out = append(out, l.Category)
		}
	}
	return out
}

// overBudget reports whether the category of l spent strictly more than
// its limit in year/month.
func overBudget(txs []core.Transaction, l core.BudgetLimit, mode core.BudgetMode, year, month int) bool {
	spent, total := monthSpend(txs, year, month)
	cat := spent[strings.ToLower(l.Category)]
	if mode == core.BudgetPercent {
		return core.PercentOf(cat, total).Hundredths > l.Percent.Hundredths
	}
	return cat > l.Amount.Cents
}

// monthSpend sums the confirmed expenses of year/month per lower-cased
// category, and in total.
func monthSpend(txs []core.Transaction, year, month int) (map[string]int64, int64) {
	byCategory := map[string]int64{}
	var total int64
	for _, tx := range txs {
		if tx.IsPending() || tx.Amount.Cents >= 0 || tx.Date.Year() != year || tx.Date.Month() != month {
			continue
		}
		spent := -tx.Amount.Cents
		byCategory[strings.ToLower(tx.Category)] += spent
		total += spent
	}
	return byCategory, total
}
