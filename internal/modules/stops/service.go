// README: Stops service validates and persists sites, pickup points, and generated stops.
package stops

import (
	"context"
	"time"

	"tandem/internal/types"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

type CreateSiteCommand struct {
	Code     string
	Name     string
	Address  string
	Position types.Point
}

func (s *Service) CreateSite(ctx context.Context, cmd CreateSiteCommand) (types.ID, error) {
	if cmd.Code == "" || cmd.Name == "" || !validPoint(cmd.Position) {
		return "", ErrBadRequest
	}
	site := &Site{
		ID:        types.NewID(),
		Code:      cmd.Code,
		Name:      cmd.Name,
		Address:   cmd.Address,
		Position:  cmd.Position,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateSite(ctx, site); err != nil {
		return "", err
	}
	return site.ID, nil
}

type CreatePickupPointCommand struct {
	SiteID   types.ID
	Label    string
	Position types.Point
}

func (s *Service) CreatePickupPoint(ctx context.Context, cmd CreatePickupPointCommand) (types.ID, error) {
	if cmd.SiteID == "" || !validPoint(cmd.Position) {
		return "", ErrBadRequest
	}
	if _, err := s.store.GetSite(ctx, cmd.SiteID); err != nil {
		return "", err
	}
	p := &PickupPoint{
		ID:        types.NewID(),
		SiteID:    cmd.SiteID,
		Label:     cmd.Label,
		Position:  cmd.Position,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreatePickupPoint(ctx, p); err != nil {
		return "", err
	}
	return p.ID, nil
}

func (s *Service) SetPickupPointActive(ctx context.Context, id types.ID, active bool) error {
	if id == "" {
		return ErrBadRequest
	}
	return s.store.SetPickupPointActive(ctx, id, active)
}

type SaveGeneratedStopCommand struct {
	RiderID  types.ID
	Label    string
	Position types.Point
}

// SaveGeneratedStop persists a client-proposed stop for later matching reuse.
func (s *Service) SaveGeneratedStop(ctx context.Context, cmd SaveGeneratedStopCommand) (types.ID, error) {
	if cmd.RiderID == "" || !validPoint(cmd.Position) {
		return "", ErrBadRequest
	}
	g := &GeneratedStop{
		ID:        types.NewID(),
		RiderID:   cmd.RiderID,
		Label:     cmd.Label,
		Position:  cmd.Position,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateGeneratedStop(ctx, g); err != nil {
		return "", err
	}
	return g.ID, nil
}

func validPoint(p types.Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
