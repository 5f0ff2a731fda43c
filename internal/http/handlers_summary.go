package http

import (
	"net/http"

	"traffic/internal/core"
)

// monthRequest parses the client id and ?year=&month= shared by the month
// views, writing the error response itself when parsing fails.
func (s *Server) monthRequest(w http.ResponseWriter, r *http.Request) (int64, core.YearMonth, bool) {
	clientID, err := pathID(r, "clientID")
	if err != nil {
		writeError(w, r, err)
		return 0, core.YearMonth{}, false
	}
	ym, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return 0, core.YearMonth{}, false
	}
	return clientID, ym, true
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	clientID, ym, ok := s.monthRequest(w, r)
	if !ok {
		return
	}
	sum, err := s.rollups.MonthlySummary(r.Context(), clientID, ym)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newSummaryView(sum)).Write(w)
}

func (s *Server) handleSummaryByProduct(w http.ResponseWriter, r *http.Request) {
	clientID, ym, ok := s.monthRequest(w, r)
	if !ok {
		return
	}
	rows, err := s.rollups.MonthlySummaryByProduct(r.Context(), clientID, ym)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newProductSummaryViews(rows)).Write(w)
}

func (s *Server) handleDailyProductMetrics(w http.ResponseWriter, r *http.Request) {
	clientID, ym, ok := s.monthRequest(w, r)
	if !ok {
		return
	}
	rows, err := s.rollups.DailyProductMetrics(r.Context(), clientID, ym)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newDailyViews(rows)).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	clientID, ym, ok := s.monthRequest(w, r)
	if !ok {
		return
	}
	d, err := s.rollups.Dashboard(r.Context(), clientID, ym)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newDashboardView(d)).Write(w)
}
