package httptransport

import "net/http"

// handleAnalytics returns the usage/risk report. The payload shape is owned
// by the analytics package; the handler only relays it.
func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.analytics.Report(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
