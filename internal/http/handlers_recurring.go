package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

type createRecurringRequest struct {
	Name        string               `json:"name"`
	Amount      amountField          `json:"amount"`
	Type        core.TransactionType `json:"type"`
	Category    string               `json:"category"`
	Notes       string               `json:"notes"`
	Frequency   core.Frequency       `json:"frequency"`
	CustomDates []core.MonthDay      `json:"customDates"`
	StartDate   string               `json:"startDate"`
	EndDate     string               `json:"endDate"`
	AutoConfirm bool                 `json:"autoConfirm"`
}

type createRecurringResponse struct {
	// Recurring is null when the schedule ends before its second occurrence.
	Recurring   *core.RecurrenceDefinition `json:"recurring"`
	Transaction core.Transaction           `json:"transaction"`
}

// handleCreateRecurring stores a recurring template and records its first
// occurrence.
//
// POST /api/recurring
func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[createRecurringRequest](w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	start, err := optionalDate("startDate", req.StartDate)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if start.IsEmpty() {
		start = core.DateOf(s.now())
	}
	end, err := optionalDate("endDate", req.EndDate)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	def, tx, err := s.svc.Transactions.CreateRecurring(r.Context(), core.RecurrenceDefinition{
		Name:        sanitizeInput(req.Name),
		Amount:      req.Amount.Money,
		Type:        core.TransactionType(strings.ToLower(string(req.Type))),
		Category:    sanitizeInput(req.Category),
		Notes:       sanitizeInput(req.Notes),
		Frequency:   core.Frequency(strings.ToLower(string(req.Frequency))),
		CustomDates: req.CustomDates,
		EndDate:     end,
		AutoConfirm: req.AutoConfirm,
	}, start)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, createRecurringResponse{Recurring: def, Transaction: tx})
}

// GET /api/recurring
func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	defs, err := s.svc.Transactions.ListRecurring(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(defs))
}

// DELETE /api/recurring/{id}
func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Transactions.DeleteRecurring(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleProcessRecurring runs a generation pass right away, the same one the
// recurring worker runs on its schedule.
//
// POST /api/recurring/process
func (s *Server) handleProcessRecurring(w http.ResponseWriter, r *http.Request) {
	if s.svc.Recurring == nil {
		respondError(w, http.StatusServiceUnavailable, "recurring processor not configured", nil)
		return
	}
	summary, err := s.svc.Recurring.ProcessDue(r.Context(), s.now())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Recurring run triggered via API",
		applog.FieldOperation, applog.OpGenerate,
		"created", len(summary.Created),
		"expired", len(summary.Expired))
	// summary is shared with concurrent callers of the same run
	out := *summary
	out.Created = nonNil(out.Created)
	out.Expired = nonNil(out.Expired)
	respondJSON(w, http.StatusOK, out)
}
