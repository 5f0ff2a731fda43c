package http

import (
	"net/http"

	"traffic/internal/core"
	"traffic/internal/services"
)

type rowRequest struct {
	ProductID  int64      `json:"product_id"`
	Investment core.Money `json:"investment"`
	Leads      int64      `json:"leads"`
	Sales      int64      `json:"sales"`
	Revenue    core.Money `json:"revenue"`
	Clear      bool       `json:"clear"`
}

// saveEntryRequest is the body of PUT /clients/{clientID}/entries/{date}.
// Without products the day is saved as one aggregate investment.
type saveEntryRequest struct {
	Investment core.Money   `json:"investment"`
	Note       string       `json:"note"`
	Products   []rowRequest `json:"products"`
}

func (req saveEntryRequest) toService(clientID int64, date core.Date) services.SaveEntryRequest {
	out := services.SaveEntryRequest{
		ClientID:   clientID,
		Date:       date,
		Investment: req.Investment,
		Note:       sanitizeInput(req.Note),
	}
	for _, row := range req.Products {
		out.Products = append(out.Products, core.RowInput{
			ProductID: row.ProductID,
			Totals: core.Totals{
				Investment: row.Investment,
				Leads:      row.Leads,
				Sales:      row.Sales,
				Revenue:    row.Revenue,
			},
			Clear: row.Clear,
		})
	}
	return out
}

func (s *Server) handleSaveEntry(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "clientID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := pathDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req saveEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.entries.SaveEntry(r.Context(), req.toService(clientID, date))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newSaveView(res)).Write(w)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "clientID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := pathDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.entries.GetEntry(r.Context(), clientID, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newEntryView(v.Entry, v.Rows)).Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "entryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.entries.DeleteEntry(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	clientID, ym, ok := s.monthRequest(w, r)
	if !ok {
		return
	}
	entries, err := s.rollups.ListEntriesForMonth(r.Context(), clientID, ym)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, newEntryView(e.Entry, nil))
	}
	NewResponse().JSON(out).Write(w)
}
