package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage/memory"
)

func confirmed(id string, cents int64, category string, date core.Date) core.Transaction {
	typ := core.Expense
	if cents > 0 {
		typ = core.Income
	}
	return core.Transaction{
		ID: id, Name: id, Amount: core.Money{Cents: cents}, Type: typ,
		Category: category, Date: date, Status: core.StatusConfirmed,
	}
}

func marchLedger() []core.Transaction {
	pending := confirmed("pending", -700, "food", core.NewDate(2024, 3, 5))
	pending.Status = core.StatusPending
	return []core.Transaction{
		confirmed("lunch", -1000, "food", core.NewDate(2024, 3, 1)),
		confirmed("snack", -500, "food", core.NewDate(2024, 3, 2)),
		confirmed("rent", -30000, "bills", core.NewDate(2024, 3, 3)),
		confirmed("salary", 200000, "income", core.NewDate(2024, 3, 4)),
		pending,
		confirmed("february", -2000, "food", core.NewDate(2024, 2, 10)),
		confirmed("last-year", -9999, "food", core.NewDate(2023, 3, 1)),
	}
}

func TestBuildOverview(t *testing.T) {
	ov := BuildOverview(marchLedger(), 2024, 3)

	assert.Equal(t, 2024, ov.Year)
	assert.Equal(t, 3, ov.Month)
	assert.Equal(t, int64(31500), ov.TotalSpent.Cents)
	assert.Equal(t, int64(200000), ov.TotalIncome.Cents)
	assert.Equal(t, int64(168500), ov.NetBalance.Cents)
	assert.Equal(t, 4, ov.TransactionCount)
	assert.Equal(t, int64(10500), ov.AverageExpense.Cents)
	require.NotNil(t, ov.LargestExpense)
	assert.Equal(t, "rent", ov.LargestExpense.ID)
	assert.Equal(t, int64(33500), ov.TotalYearSpending.Cents)
	assert.Equal(t, 1, ov.PendingCount)

	require.Len(t, ov.ByCategory, 2)
	assert.Equal(t, core.CategoryAmount{Name: "bills", Amount: core.Money{Cents: 30000}, Count: 1}, ov.ByCategory[0])
	assert.Equal(t, core.CategoryAmount{Name: "food", Amount: core.Money{Cents: 1500}, Count: 2}, ov.ByCategory[1])
	assert.Equal(t, "bills", ov.HighestSpendingCategory)
	assert.Equal(t, "food", ov.MostCommonCategory)
}

func TestBuildOverview_Empty(t *testing.T) {
	ov := BuildOverview(nil, 2024, 1)
	assert.Zero(t, ov.TotalSpent.Cents)
	assert.Zero(t, ov.AverageExpense.Cents)
	assert.Nil(t, ov.LargestExpense)
	assert.NotNil(t, ov.ByCategory)
	assert.Empty(t, ov.MostCommonCategory)
}

func TestBuildOverview_Ties(t *testing.T) {
	d := core.NewDate(2024, 5, 1)
	ov := BuildOverview([]core.Transaction{
		confirmed("a", -333, "travel", d),
		confirmed("b", -333, "books", d),
		confirmed("c", -334, "food", d),
	}, 2024, 5)

	names := []string{ov.ByCategory[0].Name, ov.ByCategory[1].Name, ov.ByCategory[2].Name}
	assert.Equal(t, []string{"food", "books", "travel"}, names)
	assert.Equal(t, "books", ov.MostCommonCategory, "equal counts fall back to name order")
	// 1000 / 3 rounds to 333
	assert.Equal(t, int64(333), ov.AverageExpense.Cents)
}

func TestOverviewService_CachesUntilLedgerChanges(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.State{Transactions: marchLedger()})
	ledger := NewLedger(store)
	svc := NewOverviewService(ledger, cache.NewLRUCache[core.MonthOverview](4, time.Minute))

	first, err := svc.Overview(ctx, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(31500), first.TotalSpent.Cents)

	// writes that bypass the ledger are not seen while the entry is cached
	require.NoError(t, store.SaveState(ctx, core.State{}))
	cached, err := svc.Overview(ctx, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(31500), cached.TotalSpent.Cents)

	require.NoError(t, ledger.Update(ctx, func(s core.State) (core.State, bool, error) {
		s.Transactions = append(s.Transactions, confirmed("taxi", -2500, "transport", core.NewDate(2024, 3, 9)))
		return s, true, nil
	}))
	fresh, err := svc.Overview(ctx, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), fresh.TotalSpent.Cents)
	assert.Equal(t, "transport", fresh.HighestSpendingCategory)
}

func TestOverviewService_InvalidMonth(t *testing.T) {
	svc := NewOverviewService(NewLedger(memory.New(core.State{})), cache.NewLRUCache[core.MonthOverview](1, time.Minute))
	_, err := svc.Overview(context.Background(), 2024, 13)
	require.ErrorIs(t, err, core.ErrInvalidMonth)
	assert.True(t, core.IsValidation(err))
}

func TestOverviewService_ResultsAreCopies(t *testing.T) {
	ctx := context.Background()
	svc := NewOverviewService(NewLedger(memory.New(core.State{Transactions: marchLedger()})),
		cache.NewLRUCache[core.MonthOverview](4, time.Minute))

	for i := 0; i < 2; i++ {
		ov, err := svc.Overview(ctx, 2024, 3)
		require.NoError(t, err)
		require.NotNil(t, ov.LargestExpense)
		ov.LargestExpense.Name = "tampered"
		ov.ByCategory[0].Amount.Cents = 1
	}

	ov, err := svc.Overview(ctx, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, "rent", ov.LargestExpense.Name)
	assert.Equal(t, int64(30000), ov.ByCategory[0].Amount.Cents)
}

// hookedStore runs afterLoad once the state has been read.
type hookedStore struct {
	*memory.Store
	afterLoad func()
}

func (s *hookedStore) LoadState(ctx context.Context) (core.State, error) {
	state, err := s.Store.LoadState(ctx)
	if s.afterLoad != nil {
		s.afterLoad()
	}
	return state, err
}

func TestOverviewService_SkipsCachingWhenInvalidatedDuringRead(t *testing.T) {
	ctx := context.Background()
	store := &hookedStore{Store: memory.New(core.State{Transactions: marchLedger()})}
	svc := NewOverviewService(NewLedger(store), cache.NewLRUCache[core.MonthOverview](4, time.Minute))

	// a write lands between reading the state and caching its overview
	store.afterLoad = svc.Invalidate
	stale, err := svc.Overview(ctx, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(31500), stale.TotalSpent.Cents)

	store.afterLoad = nil
	require.NoError(t, store.SaveState(ctx, core.State{}))
	fresh, err := svc.Overview(ctx, 2024, 3)
	require.NoError(t, err)
	assert.Zero(t, fresh.TotalSpent.Cents, "the stale overview was not cached")
}
