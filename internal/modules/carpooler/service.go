// README: Carpooler service: profile/route-template creation and availability scheduling.
package carpooler

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

type CreateProfileCommand struct {
	UserID       types.ID
	VehicleMake  string
	VehicleModel string
	VehiclePlate string
	DefaultSeats int
}

func (s *Service) CreateProfile(ctx context.Context, cmd CreateProfileCommand) (types.ID, error) {
	if cmd.UserID == "" || cmd.DefaultSeats < 1 {
		return "", ErrBadRequest
	}
	p := &Profile{
		ID:           types.NewID(),
		UserID:       cmd.UserID,
		VehicleMake:  cmd.VehicleMake,
		VehicleModel: cmd.VehicleModel,
		VehiclePlate: cmd.VehiclePlate,
		DefaultSeats: cmd.DefaultSeats,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		return "", err
	}
	return p.ID, nil
}

func (s *Service) GetProfileByUser(ctx context.Context, userID types.ID) (*Profile, error) {
	return s.store.GetProfileByUser(ctx, userID)
}

// DefaultSeatsFor returns the user's profile default seat count. Trip
// creation uses it when a trip is published without an explicit count.
func (s *Service) DefaultSeatsFor(ctx context.Context, userID types.ID) (int, error) {
	p, err := s.store.GetProfileByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return p.DefaultSeats, nil
}

type CreateRouteTemplateCommand struct {
	CarpoolerID types.ID
	FromLabel   string
	From        types.Point
	ToLabel     string
	To          types.Point
	FromSiteID  *types.ID
	ToSiteID    *types.ID
}

func (s *Service) CreateRouteTemplate(ctx context.Context, cmd CreateRouteTemplateCommand) (types.ID, error) {
	if cmd.CarpoolerID == "" || cmd.FromLabel == "" || cmd.ToLabel == "" {
		return "", ErrBadRequest
	}
	if !validPoint(cmd.From) || !validPoint(cmd.To) {
		return "", ErrBadRequest
	}
	r := &RouteTemplate{
		ID:          types.NewID(),
		CarpoolerID: cmd.CarpoolerID,
		FromLabel:   cmd.FromLabel,
		From:        cmd.From,
		ToLabel:     cmd.ToLabel,
		To:          cmd.To,
		FromSiteID:  cmd.FromSiteID,
		ToSiteID:    cmd.ToSiteID,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateRouteTemplate(ctx, r); err != nil {
		return "", err
	}
	return r.ID, nil
}

type CreateAvailabilityCommand struct {
	CarpoolerID     types.ID
	RouteTemplateID types.ID
	Kind            AvailabilityKind
	StartAt         *time.Time
	EndAt           *time.Time
	WeekdayMask     int
	TimeWindowStart string
	TimeWindowEnd   string
}

// CreateAvailability validates and stores a ONE_OFF or RECURRING offer.
func (s *Service) CreateAvailability(ctx context.Context, cmd CreateAvailabilityCommand) (types.ID, error) {
	if cmd.CarpoolerID == "" || cmd.RouteTemplateID == "" {
		return "", ErrBadRequest
	}
	if err := ValidateAvailability(cmd.Kind, cmd.StartAt, cmd.EndAt, cmd.WeekdayMask, cmd.TimeWindowStart, cmd.TimeWindowEnd); err != nil {
		return "", err
	}
	if _, err := s.store.GetRouteTemplate(ctx, cmd.RouteTemplateID); err != nil {
		return "", err
	}
	a := &Availability{
		ID:              types.NewID(),
		CarpoolerID:     cmd.CarpoolerID,
		RouteTemplateID: cmd.RouteTemplateID,
		Kind:            cmd.Kind,
		StartAt:         cmd.StartAt,
		EndAt:           cmd.EndAt,
		WeekdayMask:     cmd.WeekdayMask,
		TimeWindowStart: cmd.TimeWindowStart,
		TimeWindowEnd:   cmd.TimeWindowEnd,
		IsActive:        true,
		CreatedAt:       time.Now(),
	}
	if err := s.store.CreateAvailability(ctx, a); err != nil {
		return "", err
	}
	return a.ID, nil
}

func (s *Service) ToggleAvailability(ctx context.Context, id types.ID) (bool, error) {
	if id == "" {
		return false, ErrBadRequest
	}
	return s.store.ToggleAvailability(ctx, id)
}

func (s *Service) ListAvailabilities(ctx context.Context, carpoolerID types.ID) ([]Availability, error) {
	return s.store.ListAvailabilitiesForCarpooler(ctx, carpoolerID)
}

// HasActiveWindowAt reports whether any active availability for the route
// covers t. Trip creation uses this as an advisory check only.
func (s *Service) HasActiveWindowAt(ctx context.Context, routeTemplateID types.ID, t time.Time) (bool, error) {
	avs, err := s.store.ListActiveAvailabilitiesForRoute(ctx, routeTemplateID)
	if err != nil {
		return false, err
	}
	for i := range avs {
		if avs[i].CoversTime(t) {
			return true, nil
		}
	}
	return false, nil
}

// ValidateAvailability enforces the shape rules: one-off windows need an
// ordered start/end pair; recurring patterns need a weekday mask in [1,127]
// and a well-formed HH:MM window with start before end.
func ValidateAvailability(kind AvailabilityKind, startAt, endAt *time.Time, weekdayMask int, windowStart, windowEnd string) error {
	switch kind {
	case KindOneOff:
		if startAt == nil || endAt == nil || !startAt.Before(*endAt) {
			return ErrBadRequest
		}
	case KindRecurring:
		if weekdayMask < 1 || weekdayMask > 127 {
			return ErrBadRequest
		}
		if !validTimeOfDay(windowStart) || !validTimeOfDay(windowEnd) {
			return ErrBadRequest
		}
		if windowStart >= windowEnd {
			return ErrBadRequest
		}
	default:
		return ErrBadRequest
	}
	return nil
}

func validTimeOfDay(v string) bool {
	if len(v) != 5 {
		return false
	}
	_, err := time.Parse("15:04", v)
	return err == nil
}

func validPoint(p types.Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
