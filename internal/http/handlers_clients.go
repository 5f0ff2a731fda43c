package http

import (
	"net/http"

	"traffic/internal/core"
)

type clientRequest struct {
	Name          string     `json:"name"`
	MonthlyBudget core.Money `json:"monthly_budget"`
}

type productRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.clients.CreateClient(r.Context(), sanitizeInput(req.Name), req.MonthlyBudget)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(newClientView(c)).Write(w)
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := ParseActiveParam(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	clients, err := s.clients.ListClients(r.Context(), activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]clientView, 0, len(clients))
	for _, c := range clients {
		out = append(out, newClientView(c))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "clientID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.clients.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newClientView(c)).Write(w)
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "clientID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.clients.UpdateClient(r.Context(), id, sanitizeInput(req.Name), req.MonthlyBudget)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newClientView(c)).Write(w)
}

func (s *Server) handleDeactivateClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "clientID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.clients.DeactivateClient(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "clientID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.clients.CreateProduct(r.Context(), clientID, sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(newProductView(p)).Write(w)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "clientID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	activeOnly, err := ParseActiveParam(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	products, err := s.clients.ListProducts(r.Context(), clientID, activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, newProductView(p))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleDeactivateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.clients.DeactivateProduct(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
