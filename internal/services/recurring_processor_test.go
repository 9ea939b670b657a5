package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/services/mocks"
	"fintrack/internal/storage/memory"
)

func monthlySalary() core.RecurrenceDefinition {
	return core.RecurrenceDefinition{
		ID:          "salary",
		Name:        "Salary",
		Amount:      core.Money{Cents: 250000},
		Type:        core.Income,
		Frequency:   core.Monthly,
		AutoConfirm: true,
		NextDueDate: core.NewDate(2024, 3, 1),
	}
}

func TestRecurringProcessor_ProcessDue(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	rent := weeklyRent()
	rent.EndDate = core.NewDate(2024, 1, 5)
	store := memory.New(core.State{Definitions: []core.RecurrenceDefinition{rent, monthlySalary()}})
	p := NewRecurringProcessor(NewLedger(store), testEngine(), notifier)
	ctx := context.Background()
	now := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)

	notifier.EXPECT().NotifyGenerated(ctx, gomock.Len(2)).Return(nil)

	summary, err := p.ProcessDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, summary.Created, 2)
	assert.Equal(t, []string{"rent"}, summary.Expired, "the next weekly rent falls after its end date")
	assert.True(t, summary.Date.Equal(core.NewDate(2024, 3, 5)))

	state, _ := store.LoadState(ctx)
	require.Len(t, state.Definitions, 1)
	assert.True(t, state.Definitions[0].NextDueDate.Equal(core.NewDate(2024, 4, 1)))
	require.Len(t, state.Transactions, 2)

	byRecurring := map[string]core.Transaction{}
	for _, tx := range state.Transactions {
		byRecurring[tx.RecurringID] = tx
	}
	assert.Equal(t, core.StatusPending, byRecurring["rent"].Status)
	assert.Equal(t, core.StatusConfirmed, byRecurring["salary"].Status)
	assert.True(t, byRecurring["salary"].Date.Equal(core.NewDate(2024, 3, 5)), "auto-confirmed instances are dated today")
	assert.Equal(t, "income", byRecurring["salary"].Category)

	// second run on the same day has nothing to do and does not notify
	summary, err = p.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, summary.Created)
}

func TestRecurringProcessor_NotifyErrorIsLogged(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	store := memory.New(core.State{Definitions: []core.RecurrenceDefinition{monthlySalary()}})
	p := NewRecurringProcessor(NewLedger(store), testEngine(), notifier)
	ctx := context.Background()

	notifier.EXPECT().NotifyGenerated(ctx, gomock.Any()).Return(errors.New("broker down"))

	summary, err := p.ProcessDue(ctx, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, summary.Created, 1)

	state, _ := store.LoadState(ctx)
	assert.Len(t, state.Transactions, 1, "state is saved even when notifying fails")
}

func TestRecurringProcessor_Diagnostics(t *testing.T) {
	broken := monthlySalary()
	broken.ID = "broken"
	broken.Frequency = "yearly"
	store := memory.New(core.State{Definitions: []core.RecurrenceDefinition{broken}})
	p := NewRecurringProcessor(NewLedger(store), testEngine(), nil)

	summary, err := p.ProcessDue(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, summary.Created)
	require.Len(t, summary.Diagnostics, 1)
	assert.Equal(t, "broken", summary.Diagnostics[0].DefinitionID)

	state, _ := store.LoadState(context.Background())
	assert.Len(t, state.Definitions, 1, "malformed definitions are left in place")
}

func TestRecurringProcessor_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStateStore(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	ctx := context.Background()

	current := core.State{Definitions: []core.RecurrenceDefinition{monthlySalary()}}
	store.EXPECT().UpdateState(ctx, gomock.Any()).DoAndReturn(applyTo(current, func(s core.State) error {
		assert.Len(t, s.Transactions, 1)
		return errors.New("save state: disk full")
	}))
	// no NotifyGenerated: nothing was persisted

	p := NewRecurringProcessor(NewLedger(store), testEngine(), notifier)
	_, err := p.ProcessDue(ctx, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorContains(t, err, "disk full")
}

func TestRecurringProcessor_ConcurrentRuns(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	store := memory.New(core.State{Definitions: []core.RecurrenceDefinition{weeklyRent()}})
	p := NewRecurringProcessor(NewLedger(store), nil, notifier)
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	notifier.EXPECT().NotifyGenerated(gomock.Any(), gomock.Len(1)).Return(nil).Times(1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.ProcessDue(context.Background(), now)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, _ := store.LoadState(context.Background())
	assert.Len(t, state.Transactions, 1)
}

func TestRecurringProcessor_NotInitialized(t *testing.T) {
	p := NewRecurringProcessor(nil, nil, nil)
	_, err := p.ProcessDueNow(context.Background())
	require.Error(t, err)
}

func TestRecurringProcessor_WithClock(t *testing.T) {
	store := memory.New(core.State{Definitions: []core.RecurrenceDefinition{monthlySalary()}})
	p := NewRecurringProcessor(NewLedger(store), testEngine(), nil).
		WithClock(func() time.Time { return time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC) })

	summary, err := p.ProcessDueNow(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Created, "not due before March 1st")
}
