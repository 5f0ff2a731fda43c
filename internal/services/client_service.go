package services

import (
	"context"
	"log/slog"

	"traffic/internal/core"
	"traffic/internal/ports"
)

// ClientService manages clients and their products.
type ClientService struct {
	store     ports.Store
	listeners []ChangeListener
}

func NewClientService(store ports.Store) *ClientService {
	return &ClientService{store: store}
}

// OnChange registers a listener notified when a client's budget or name changes.
func (s *ClientService) OnChange(l ChangeListener) {
	s.listeners = append(s.listeners, l)
}

func (s *ClientService) CreateClient(ctx context.Context, name string, budget core.Money) (core.Client, error) {
	name, err := core.NormalizeName("name", name)
	if err != nil {
		return core.Client{}, err
	}
	if err := budget.Validate(); err != nil {
		return core.Client{}, &core.ValidationError{Field: "monthly_budget", Reason: err.Error()}
	}
	return s.store.CreateClient(ctx, name, budget)
}

func (s *ClientService) GetClient(ctx context.Context, id int64) (core.Client, error) {
	return s.store.GetClient(ctx, id)
}

func (s *ClientService) ListClients(ctx context.Context, activeOnly bool) ([]core.Client, error) {
	return s.store.ListClients(ctx, activeOnly)
}

func (s *ClientService) UpdateClient(ctx context.Context, id int64, name string, budget core.Money) (core.Client, error) {
	name, err := core.NormalizeName("name", name)
	if err != nil {
		return core.Client{}, err
	}
	if err := budget.Validate(); err != nil {
		return core.Client{}, &core.ValidationError{Field: "monthly_budget", Reason: err.Error()}
	}
	c, err := s.store.UpdateClient(ctx, id, name, budget)
	if err != nil {
		return core.Client{}, err
	}
	s.notify(id)
	return c, nil
}

// DeactivateClient hides the client from active listings; history is kept.
func (s *ClientService) DeactivateClient(ctx context.Context, id int64) error {
	if err := s.store.DeactivateClient(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Client deactivated", "client_id", id)
	s.notify(id)
	return nil
}

func (s *ClientService) CreateProduct(ctx context.Context, clientID int64, name string) (core.Product, error) {
	name, err := core.NormalizeName("name", name)
	if err != nil {
		return core.Product{}, err
	}
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return core.Product{}, err
	}
	p, err := s.store.CreateProduct(ctx, clientID, name)
	if err != nil {
		return core.Product{}, err
	}
	slog.InfoContext(ctx, "Product created", "client_id", clientID, "product_id", p.ID, "name", p.Name)
	return p, nil
}

func (s *ClientService) ListProducts(ctx context.Context, clientID int64, activeOnly bool) ([]core.Product, error) {
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	return s.store.ListProducts(ctx, clientID, activeOnly)
}

// DeactivateProduct stops offering the product on new entries; stored rows stay.
func (s *ClientService) DeactivateProduct(ctx context.Context, id int64) error {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeactivateProduct(ctx, id); err != nil {
		return err
	}
	s.notify(p.ClientID)
	return nil
}

func (s *ClientService) notify(clientID int64) {
	for _, l := range s.listeners {
		l.Invalidate(clientID)
	}
}
