package http

import (
	"net/http"

	applog "fintrack/internal/log"
)

// handleOverview returns the dashboard figures of one month, defaulting to
// the current one. Every refresh first materializes the recurring
// transactions that came due; concurrent refreshes share one run.
//
// GET /api/overview?year=2025&month=3
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if s.svc.Recurring != nil {
		summary, err := s.svc.Recurring.ProcessDue(r.Context(), s.now())
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		if len(summary.Created) > 0 {
			applog.FromContext(r.Context()).InfoContext(r.Context(), "Dashboard refresh generated recurring transactions",
				applog.FieldOperation, applog.OpGenerate,
				"created", len(summary.Created))
		}
	}
	ov, err := s.svc.Overview.Overview(r.Context(), params.Year, params.Month)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ov)
}
