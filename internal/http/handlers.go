package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady checks that the state store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]any{
		"rate_limiter": map[string]any{
			"active_clients": s.rateLimiter.ActiveClients(),
			"rejected":       s.rateLimiter.Hits(),
		},
		"suspicious_requests": s.detector.Suspicious(),
	}
	status, httpStatus := "ready", http.StatusOK
	if s.svc.Transactions == nil {
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if _, err := s.svc.Transactions.ListRecurring(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	respondJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

type createTransactionRequest struct {
	Name     string               `json:"name"`
	Amount   amountField          `json:"amount"`
	Type     core.TransactionType `json:"type"`
	Category string               `json:"category"`
	Date     string               `json:"date"`
	Notes    string               `json:"notes"`
}

// handleCreateTransaction records a manual transaction.
//
// POST /api/transactions
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[createTransactionRequest](w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if date.IsEmpty() {
		date = core.DateOf(s.now())
	}

	tx, err := s.svc.Transactions.CreateTransaction(r.Context(), core.Transaction{
		Name:     sanitizeInput(req.Name),
		Amount:   req.Amount.Money,
		Type:     core.TransactionType(strings.ToLower(string(req.Type))),
		Category: sanitizeInput(req.Category),
		Date:     date,
		Notes:    sanitizeInput(req.Notes),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

// GET /api/transactions
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.Transactions.ListTransactions(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(txs))
}

// GET /api/transactions/pending
func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.Transactions.ListPending(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(txs))
}

// handleConfirmTransaction turns a pending instance into a confirmed one.
//
// POST /api/transactions/{id}/confirm
func (s *Server) handleConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx, err := s.svc.Transactions.Confirm(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction confirmed via API",
		applog.FieldTransactionID, id,
		applog.FieldOperation, applog.OpConfirm)
	respondJSON(w, http.StatusOK, tx)
}

// handleUpdateTransaction edits a transaction in place. An omitted date keeps
// the current one.
//
// PUT /api/transactions/{id}
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[createTransactionRequest](w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	tx, err := s.svc.Transactions.Update(r.Context(), chi.URLParam(r, "id"), core.Transaction{
		Name:     sanitizeInput(req.Name),
		Amount:   req.Amount.Money,
		Type:     core.TransactionType(strings.ToLower(string(req.Type))),
		Category: sanitizeInput(req.Category),
		Date:     date,
		Notes:    sanitizeInput(req.Notes),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

// handleDeleteTransaction removes a transaction whatever its status.
//
// DELETE /api/transactions/{id}
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Transactions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDiscardTransaction deletes a pending instance; anything else answers
// 404.
//
// POST /api/transactions/{id}/discard
func (s *Server) handleDiscardTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.svc.Transactions.DiscardPending(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
