package services

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"fintrack/internal/cache"
	"fintrack/internal/core"
)

// BuildOverview aggregates the confirmed transactions of year/month. Pending
// instances only show up in PendingCount.
func BuildOverview(transactions []core.Transaction, year, month int) core.MonthOverview {
	ov := core.MonthOverview{
		Year:       year,
		Month:      month,
		ByCategory: []core.CategoryAmount{},
	}

	var (
		expenses   int
		byCategory = map[string]*core.CategoryAmount{}
	)
	for i, tx := range transactions {
		if tx.Date.Year() != year {
			continue
		}
		if tx.IsPending() {
			if tx.Date.Month() == month {
				ov.PendingCount++
			}
			continue
		}
		if tx.Amount.Cents < 0 {
			ov.TotalYearSpending.Cents += -tx.Amount.Cents
		}
		if tx.Date.Month() != month {
			continue
		}

		ov.TransactionCount++
		if tx.Amount.Cents > 0 {
			ov.TotalIncome.Cents += tx.Amount.Cents
			continue
		}
		if tx.Amount.Cents == 0 {
			continue
		}

		spent := -tx.Amount.Cents
		expenses++
		ov.TotalSpent.Cents += spent
		if ov.LargestExpense == nil || spent > -ov.LargestExpense.Amount.Cents {
			ov.LargestExpense = &transactions[i]
		}

		ca, ok := byCategory[tx.Category]
		if !ok {
			ca = &core.CategoryAmount{Name: tx.Category}
			byCategory[tx.Category] = ca
		}
		ca.Amount.Cents += spent
		ca.Count++
	}

	ov.NetBalance = core.Money{Cents: ov.TotalIncome.Cents - ov.TotalSpent.Cents}
	if expenses > 0 {
		avg := decimal.NewFromInt(ov.TotalSpent.Cents).Div(decimal.NewFromInt(int64(expenses))).Round(0)
		ov.AverageExpense = core.Money{Cents: avg.IntPart()}
	}
	if ov.LargestExpense != nil {
		largest := *ov.LargestExpense
		ov.LargestExpense = &largest
	}

	for _, ca := range byCategory {
		ov.ByCategory = append(ov.ByCategory, *ca)
	}
	// highest spending first, name breaks ties
	sort.Slice(ov.ByCategory, func(i, j int) bool {
		a, b := ov.ByCategory[i], ov.ByCategory[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		return a.Name < b.Name
	})
	if len(ov.ByCategory) > 0 {
		ov.HighestSpendingCategory = ov.ByCategory[0].Name
		best := ov.ByCategory[0]
		for _, ca := range ov.ByCategory[1:] {
			if ca.Count > best.Count || (ca.Count == best.Count && ca.Name < best.Name) {
				best = ca
			}
		}
		ov.MostCommonCategory = best.Name
	}
	return ov
}

// OverviewService serves month overviews from a cache that writers
// invalidate.
type OverviewService struct {
	ledger *Ledger
	cache  cache.Cache[core.MonthOverview]
	// generation counts invalidations; an overview built from state read
	// before the latest one is not cached
	generation atomic.Uint64
}

// NewOverviewService serves overviews through c and purges it whenever the
// ledger saves.
func NewOverviewService(ledger *Ledger, c cache.Cache[core.MonthOverview]) *OverviewService {
	s := &OverviewService{ledger: ledger, cache: c}
	ledger.OnChange(s.Invalidate)
	return s
}

// Overview returns the overview for year/month. Callers own the result.
func (s *OverviewService) Overview(ctx context.Context, year, month int) (core.MonthOverview, error) {
	if month < 1 || month > 12 {
		return core.MonthOverview{}, &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
	}
	key := fmt.Sprintf("%04d-%02d", year, month)
	if ov, ok := s.cache.Get(key); ok {
		return copyOverview(ov), nil
	}

	gen := s.generation.Load()
	state, err := s.ledger.Read(ctx)
	if err != nil {
		return core.MonthOverview{}, err
	}
	ov := BuildOverview(state.Transactions, year, month)
	if s.generation.Load() == gen {
		s.cache.Set(key, copyOverview(ov))
	}
	return ov, nil
}

// Invalidate drops every cached overview.
func (s *OverviewService) Invalidate() {
	s.generation.Add(1)
	s.cache.Purge()
}

func copyOverview(ov core.MonthOverview) core.MonthOverview {
	if ov.LargestExpense != nil {
		largest := *ov.LargestExpense
		ov.LargestExpense = &largest
	}
	ov.ByCategory = append([]core.CategoryAmount{}, ov.ByCategory...)
	return ov
}
