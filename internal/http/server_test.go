package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

func testNow() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }

func newTestServer(t *testing.T, state core.State) *Server {
	t.Helper()
	ledger := services.NewLedger(memory.New(state))
	engine := services.NewEngine()
	engine.Now = testNow

	srv := NewServer(":0", Services{
		Transactions: services.NewTransactionService(ledger, engine, nil).WithClock(testNow),
		Recurring:    services.NewRecurringProcessor(ledger, engine, nil).WithClock(testNow),
		Overview:     services.NewOverviewService(ledger, cache.NewLRUCache[core.MonthOverview](12, time.Minute)),
		Budgets:      services.NewBudgetService(ledger),
	}, Options{Now: testNow})
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, core.State{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	}

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "ready", body["status"])
}

func TestReady_NoStore(t *testing.T) {
	srv := NewServer(":0", Services{}, Options{Now: testNow})
	defer srv.rateLimiter.stop()

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestCreateTransaction(t *testing.T) {
	srv := newTestServer(t, core.State{})

	rr := do(t, srv, http.MethodPost, "/api/transactions",
		`{"name":" Groceries ","amount":"12,50","type":"Expense","category":"food","date":"2024-03-09"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	tx := decode[map[string]any](t, rr)
	assert.Equal(t, "Groceries", tx["name"])
	assert.Equal(t, -12.5, tx["amount"])
	assert.Equal(t, "expense", tx["type"])
	assert.Equal(t, "confirmed", tx["status"])
	assert.Equal(t, "2024-03-09", tx["date"])

	rr = do(t, srv, http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.Transaction](t, rr), 1)
}

func TestCreateTransaction_DefaultsToToday(t *testing.T) {
	srv := newTestServer(t, core.State{})

	rr := do(t, srv, http.MethodPost, "/api/transactions",
		`{"name":"Salary","amount":2000,"type":"income"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	tx := decode[core.Transaction](t, rr)
	assert.Equal(t, "2024-03-10", tx.Date.String())
	assert.Equal(t, "income", tx.Category)
	assert.Equal(t, int64(200000), tx.Amount.Cents)
}

func TestCreateTransaction_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		code  int
		field string
	}{
		{"empty body", "", http.StatusBadRequest, ""},
		{"unknown field", `{"name":"x","amount":1,"type":"expense","category":"a","bogus":1}`, http.StatusBadRequest, ""},
		{"negative amount", `{"name":"x","amount":"-3","type":"expense","category":"a"}`, http.StatusBadRequest, ""},
		{"trailing data", `{"name":"x","amount":1,"type":"expense","category":"a"} {}`, http.StatusBadRequest, ""},
		{"missing category", `{"name":"x","amount":1,"type":"expense"}`, http.StatusUnprocessableEntity, "category"},
		{"bad type", `{"name":"x","amount":1,"type":"gift","category":"a"}`, http.StatusUnprocessableEntity, "type"},
		{"bad date", `{"name":"x","amount":1,"type":"expense","category":"a","date":"10/03/2024"}`, http.StatusUnprocessableEntity, "date"},
		{"blank name", `{"name":"  ","amount":1,"type":"expense","category":"a"}`, http.StatusUnprocessableEntity, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, core.State{})
			rr := do(t, srv, http.MethodPost, "/api/transactions", tt.body)
			require.Equal(t, tt.code, rr.Code, rr.Body.String())

			resp := decode[map[string]any](t, rr)
			assert.NotEmpty(t, resp["error"])
			if tt.field != "" {
				details, ok := resp["details"].(map[string]any)
				require.True(t, ok, rr.Body.String())
				assert.Equal(t, tt.field, details["field"])
			}
		})
	}
}

func TestRecurringLifecycle(t *testing.T) {
	srv := newTestServer(t, core.State{})

	rr := do(t, srv, http.MethodPost, "/api/recurring",
		`{"name":"Gym","amount":"30","type":"expense","category":"health","frequency":"monthly","startDate":"2024-01-31"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	created := decode[struct {
		Recurring   *core.RecurrenceDefinition `json:"recurring"`
		Transaction core.Transaction           `json:"transaction"`
	}](t, rr)
	require.NotNil(t, created.Recurring)
	assert.Equal(t, "2024-02-29", created.Recurring.NextDueDate.String())
	assert.Equal(t, "2024-01-31", created.Transaction.Date.String())
	assert.Equal(t, core.StatusConfirmed, created.Transaction.Status)

	rr = do(t, srv, http.MethodPost, "/api/recurring/process", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	summary := decode[services.ProcessSummary](t, rr)
	require.Len(t, summary.Created, 1)
	pending := summary.Created[0]
	assert.Equal(t, "2024-02-29", pending.Date.String())
	assert.Equal(t, core.StatusPending, pending.Status)

	rr = do(t, srv, http.MethodGet, "/api/transactions/pending", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[[]core.Transaction](t, rr), 1)

	rr = do(t, srv, http.MethodPost, "/api/transactions/"+pending.ID+"/confirm", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	confirmed := decode[core.Transaction](t, rr)
	assert.Equal(t, core.StatusConfirmed, confirmed.Status)
	assert.Equal(t, "2024-03-10", confirmed.Date.String())

	// confirming twice is a lookup miss
	rr = do(t, srv, http.MethodPost, "/api/transactions/"+pending.ID+"/confirm", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/recurring", "")
	require.Equal(t, http.StatusOK, rr.Code)
	defs := decode[[]core.RecurrenceDefinition](t, rr)
	require.Len(t, defs, 1)
	assert.Equal(t, "2024-03-29", defs[0].NextDueDate.String())

	rr = do(t, srv, http.MethodDelete, "/api/recurring/"+defs[0].ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/api/recurring/"+defs[0].ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateRecurring_EndsImmediately(t *testing.T) {
	srv := newTestServer(t, core.State{})

	rr := do(t, srv, http.MethodPost, "/api/recurring",
		`{"name":"Trip","amount":100,"type":"expense","category":"travel","frequency":"weekly","startDate":"2024-03-01","endDate":"2024-03-05"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	body := decode[map[string]any](t, rr)
	assert.Nil(t, body["recurring"])
	assert.NotNil(t, body["transaction"])
}

func TestCreateRecurring_Rejected(t *testing.T) {
	srv := newTestServer(t, core.State{})

	rr := do(t, srv, http.MethodPost, "/api/recurring",
		`{"name":"Bonus","amount":100,"type":"income","frequency":"custom"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodPost, "/api/recurring",
		`{"name":"Bonus","amount":100,"type":"income","frequency":"custom","customDates":["13-01"]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodPost, "/api/recurring",
		`{"name":"Rent","amount":100,"type":"expense","category":"home","frequency":"monthly","startDate":"2024-03-01","endDate":"2024-02-01"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	details := decode[map[string]any](t, rr)["details"].(map[string]any)
	assert.Equal(t, "endDate", details["field"])
}

func TestDiscardTransaction(t *testing.T) {
	srv := newTestServer(t, core.State{
		Transactions: []core.Transaction{
			{ID: "p1", Name: "Rent", Amount: core.Money{Cents: -50000}, Type: core.Expense, Category: "home",
				Date: core.NewDate(2024, 3, 1), Status: core.StatusPending, RecurringID: "r1"},
			{ID: "c1", Name: "Coffee", Amount: core.Money{Cents: -300}, Type: core.Expense, Category: "food",
				Date: core.NewDate(2024, 3, 2), Status: core.StatusConfirmed},
		},
	})

	rr := do(t, srv, http.MethodPost, "/api/transactions/c1/discard", "")
	assert.Equal(t, http.StatusNotFound, rr.Code, "only pending instances can be discarded")

	rr = do(t, srv, http.MethodPost, "/api/transactions/p1/discard", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/transactions/pending", "")
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestDeleteTransaction(t *testing.T) {
	srv := newTestServer(t, core.State{
		Transactions: []core.Transaction{
			{ID: "p1", Name: "Rent", Amount: core.Money{Cents: -50000}, Type: core.Expense, Category: "home",
				Date: core.NewDate(2024, 3, 1), Status: core.StatusPending, RecurringID: "r1"},
			{ID: "c1", Name: "Coffee", Amount: core.Money{Cents: -300}, Type: core.Expense, Category: "food",
				Date: core.NewDate(2024, 3, 2), Status: core.StatusConfirmed},
		},
	})

	rr := do(t, srv, http.MethodDelete, "/api/transactions/c1", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, srv, http.MethodDelete, "/api/transactions/p1", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, srv, http.MethodDelete, "/api/transactions/c1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/transactions", "")
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestUpdateTransaction(t *testing.T) {
	srv := newTestServer(t, core.State{
		Transactions: []core.Transaction{
			{ID: "c1", Name: "Coffee", Amount: core.Money{Cents: -300}, Type: core.Expense, Category: "food",
				Date: core.NewDate(2024, 3, 2), Status: core.StatusConfirmed},
		},
	})

	rr := do(t, srv, http.MethodPut, "/api/transactions/c1",
		`{"name":"Lunch","amount":"12,50","type":"expense","category":"restaurants","notes":"team"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	tx := decode[core.Transaction](t, rr)
	assert.Equal(t, "c1", tx.ID)
	assert.Equal(t, "Lunch", tx.Name)
	assert.Equal(t, int64(-1250), tx.Amount.Cents)
	assert.Equal(t, "restaurants", tx.Category)
	assert.Equal(t, core.NewDate(2024, 3, 2), tx.Date, "omitted date is kept")
	assert.Equal(t, core.StatusConfirmed, tx.Status)

	rr = do(t, srv, http.MethodGet, "/api/overview", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(1250), decode[core.MonthOverview](t, rr).TotalSpent.Cents)

	rr = do(t, srv, http.MethodPut, "/api/transactions/c1",
		`{"name":"Lunch","amount":5,"type":"expense","category":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodPut, "/api/transactions/missing",
		`{"name":"Lunch","amount":5,"type":"expense","category":"food"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBudgets(t *testing.T) {
	srv := newTestServer(t, core.State{
		Transactions: []core.Transaction{
			{ID: "a", Name: "Groceries", Amount: core.Money{Cents: -18000}, Type: core.Expense, Category: "food",
				Date: core.NewDate(2024, 3, 2), Status: core.StatusConfirmed},
			{ID: "b", Name: "Cinema", Amount: core.Money{Cents: -2000}, Type: core.Expense, Category: "fun",
				Date: core.NewDate(2024, 3, 4), Status: core.StatusConfirmed},
			{ID: "c", Name: "Rent", Amount: core.Money{Cents: -50000}, Type: core.Expense, Category: "food",
				Date: core.NewDate(2024, 3, 1), Status: core.StatusPending, RecurringID: "r1"},
		},
	})

	rr := do(t, srv, http.MethodPut, "/api/budgets", `{"mode":"amount","total":500}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodPut, "/api/budgets/food", `{"value":"200"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = do(t, srv, http.MethodPut, "/api/budgets/fun", `{"value":10}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/api/budgets", "")
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decode[core.BudgetSummary](t, rr)
	assert.Equal(t, "210.00", summary.Allocated.String())
	assert.Equal(t, "290.00", summary.Remaining.String())
	assert.Len(t, summary.Limits, 2)

	rr = do(t, srv, http.MethodGet, "/api/budgets/progress?year=2024&month=3", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	report := decode[services.BudgetReport](t, rr)
	require.Len(t, report.Progress, 2)
	assert.Equal(t, int64(18000), report.Progress[0].Spent.Cents, "pending spend is not counted")
	assert.Equal(t, core.BudgetWarning, report.Progress[0].Status)
	assert.Equal(t, core.BudgetOver, report.Progress[1].Status)
	assert.Empty(t, report.HabituallyOver)

	rr = do(t, srv, http.MethodPut, "/api/budgets", `{"mode":"weekly"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodPut, "/api/budgets", `{"mode":"percent"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, srv, http.MethodPut, "/api/budgets/food", `{"value":"150"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "percent limits stop at 100")

	rr = do(t, srv, http.MethodDelete, "/api/budgets/fun", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, srv, http.MethodDelete, "/api/budgets/fun", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOverview(t *testing.T) {
	srv := newTestServer(t, core.State{
		Transactions: []core.Transaction{
			{ID: "a", Name: "Coffee", Amount: core.Money{Cents: -300}, Type: core.Expense, Category: "food",
				Date: core.NewDate(2024, 3, 2), Status: core.StatusConfirmed},
			{ID: "b", Name: "Salary", Amount: core.Money{Cents: 200000}, Type: core.Income, Category: "income",
				Date: core.NewDate(2024, 2, 27), Status: core.StatusConfirmed},
		},
	})

	rr := do(t, srv, http.MethodGet, "/api/overview", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	ov := decode[core.MonthOverview](t, rr)
	assert.Equal(t, 2024, ov.Year)
	assert.Equal(t, 3, ov.Month)
	assert.Equal(t, int64(300), ov.TotalSpent.Cents)
	assert.Zero(t, ov.TotalIncome.Cents)

	rr = do(t, srv, http.MethodGet, "/api/overview?year=2024&month=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(200000), decode[core.MonthOverview](t, rr).TotalIncome.Cents)

	for _, q := range []string{"?month=13", "?month=abc", "?year=x"} {
		rr = do(t, srv, http.MethodGet, "/api/overview"+q, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, q)
	}
}

func TestOverview_GeneratesDueRecurring(t *testing.T) {
	srv := newTestServer(t, core.State{
		Definitions: []core.RecurrenceDefinition{
			{ID: "rent", Name: "Rent", Amount: core.Money{Cents: 90000}, Type: core.Expense, Category: "home",
				Frequency: core.Monthly, NextDueDate: core.NewDate(2024, 3, 1)},
			{ID: "salary", Name: "Salary", Amount: core.Money{Cents: 250000}, Type: core.Income, Category: "income",
				Frequency: core.Monthly, AutoConfirm: true, NextDueDate: core.NewDate(2024, 3, 5)},
		},
	})

	// the first refresh materializes both instances before aggregating
	for i := 0; i < 2; i++ {
		rr := do(t, srv, http.MethodGet, "/api/overview", "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		ov := decode[core.MonthOverview](t, rr)
		assert.Equal(t, 1, ov.PendingCount, "refresh %d", i)
		assert.Equal(t, int64(250000), ov.TotalIncome.Cents, "refresh %d", i)
		assert.Zero(t, ov.TotalSpent.Cents, "pending rent does not count")
	}

	rr := do(t, srv, http.MethodGet, "/api/transactions/pending", "")
	pending := decode[[]core.Transaction](t, rr)
	require.Len(t, pending, 1)
	assert.Equal(t, "rent", pending[0].RecurringID)
	assert.Equal(t, "2024-03-01", pending[0].Date.String())
}

func TestUnknownRouteAndMethod(t *testing.T) {
	srv := newTestServer(t, core.State{})

	rr := do(t, srv, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodPut, "/api/transactions", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRateLimitWrites(t *testing.T) {
	srv := newTestServer(t, core.State{})

	for i := 0; i < rateLimitRequests; i++ {
		rr := do(t, srv, http.MethodPost, "/api/recurring/process", "")
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i)
	}
	rr := do(t, srv, http.MethodPost, "/api/recurring/process", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Equal(t, int64(1), srv.rateLimiter.Hits())

	// reads are never limited
	rr = do(t, srv, http.MethodGet, "/api/transactions", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := &rateLimiter{clients: make(map[string]*clientInfo), stopCleanup: make(chan struct{})}
	now := testNow()
	rl.now = func() time.Time { return now }

	for i := 0; i < rateLimitRequests; i++ {
		require.True(t, rl.allow("1.2.3.4"))
	}
	assert.False(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("5.6.7.8"), "budgets are per client")

	now = now.Add(2 * rateLimitWindow)
	assert.True(t, rl.allow("1.2.3.4"))

	now = now.Add(20 * time.Minute)
	rl.cleanupStaleEntries()
	assert.Zero(t, rl.ActiveClients())
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, core.State{})

	req := httptest.NewRequest(http.MethodOptions, "/api/transactions", nil)
	req.Header.Set("Origin", "https://budget.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	assert.Less(t, rr.Code, 300)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct peer", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"untrusted peer ignores headers", "203.0.113.7:5000", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy forwards", "10.0.0.2:5000", "198.51.100.1, 10.0.0.1", "", "198.51.100.1"},
		{"trusted proxy real ip", "127.0.0.1:5000", "", "198.51.100.9", "198.51.100.9"},
		{"trusted proxy garbage header", "192.168.1.1:5000", "not-an-ip", "", "192.168.1.1"},
		{"no port", "203.0.113.7", "", "", "203.0.113.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, extractClientIP(req))
		})
	}
}

func TestShutdownTwice(t *testing.T) {
	srv := NewServer(":0", Services{}, Options{})
	ctx, cancel := contextWithTimeout(time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, srv.Shutdown(ctx))
}

func TestDetector(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"plain api call", http.MethodGet, "/api/transactions", "Mozilla/5.0", false},
		{"curl is fine", http.MethodPost, "/api/transactions", "curl/8.5.0", false},
		{"dotfile scan", http.MethodGet, "/.env", "", true},
		{"sql in query", http.MethodGet, "/api/overview?month=1%20union%20select", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.Header.Set("User-Agent", tt.agent)
			d := &detector{}
			assert.Equal(t, tt.want, d.isSuspicious(req))
		})
	}
}

func TestDetector_CountsWithoutBlocking(t *testing.T) {
	srv := newTestServer(t, core.State{})

	rr := do(t, srv, http.MethodGet, "/wp-admin/setup.php", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, int64(1), srv.detector.Suspicious())
}
