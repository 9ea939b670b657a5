package http

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
)

type configureBudgetsRequest struct {
	Mode  core.BudgetMode `json:"mode"`
	Total *core.Money     `json:"total"`
}

// limitValue is a budget limit as entered: a JSON number or a string with
// either decimal separator. Whether it is an amount or a percentage depends
// on the budget mode.
type limitValue string

func (v *limitValue) UnmarshalJSON(b []byte) error {
	*v = limitValue(bytes.Trim(bytes.TrimSpace(b), `"`))
	return nil
}

type setBudgetLimitRequest struct {
	Value limitValue `json:"value"`
}

// GET /api/budgets
func (s *Server) handleBudgetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Budgets.Summary(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// handleConfigureBudgets switches the budget mode and sets the total.
//
// PUT /api/budgets
func (s *Server) handleConfigureBudgets(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[configureBudgetsRequest](w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	mode := core.BudgetMode(strings.ToLower(strings.TrimSpace(string(req.Mode))))
	summary, err := s.svc.Budgets.Configure(r.Context(), mode, req.Total)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// handleSetBudgetLimit sets one category's limit for the current mode.
//
// PUT /api/budgets/{category}
func (s *Server) handleSetBudgetLimit(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[setBudgetLimitRequest](w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	limit, err := s.svc.Budgets.SetLimit(r.Context(), categoryParam(r), string(req.Value))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, limit)
}

// DELETE /api/budgets/{category}
func (s *Server) handleRemoveBudgetLimit(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Budgets.RemoveLimit(r.Context(), categoryParam(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBudgetProgress reports spending against the budgets for one month,
// defaulting to the current one.
//
// GET /api/budgets/progress?year=2025&month=3
func (s *Server) handleBudgetProgress(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	report, err := s.svc.Budgets.Report(r.Context(), params.Year, params.Month)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// categoryParam returns the unescaped {category} path segment.
func categoryParam(r *http.Request) string {
	raw := chi.URLParam(r, "category")
	if c, err := url.PathUnescape(raw); err == nil {
		raw = c
	}
	return sanitizeInput(raw)
}
