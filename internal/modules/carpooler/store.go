// README: Carpooler store backed by PostgreSQL.
package carpooler

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tandem/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) CreateProfile(ctx context.Context, p *Profile) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO carpooler_profiles (id, user_id, vehicle_make, vehicle_model, vehicle_plate, default_seats, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(p.ID), string(p.UserID), p.VehicleMake, p.VehicleModel,
		p.VehiclePlate, p.DefaultSeats, p.CreatedAt,
	)
	return err
}

func (s *Store) GetProfileByUser(ctx context.Context, userID types.ID) (*Profile, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, user_id, vehicle_make, vehicle_model, vehicle_plate, default_seats, created_at
        FROM carpooler_profiles WHERE user_id = $1`, string(userID),
	)
	var p Profile
	err := row.Scan(&p.ID, &p.UserID, &p.VehicleMake, &p.VehicleModel,
		&p.VehiclePlate, &p.DefaultSeats, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateRouteTemplate(ctx context.Context, r *RouteTemplate) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO route_templates (id, carpooler_id, from_label, from_lat, from_lng, to_label, to_lat, to_lng, from_site_id, to_site_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(r.ID), string(r.CarpoolerID),
		r.FromLabel, r.From.Lat, r.From.Lng,
		r.ToLabel, r.To.Lat, r.To.Lng,
		idPtr(r.FromSiteID), idPtr(r.ToSiteID), r.CreatedAt,
	)
	return err
}

func (s *Store) GetRouteTemplate(ctx context.Context, id types.ID) (*RouteTemplate, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, carpooler_id, from_label, from_lat, from_lng, to_label, to_lat, to_lng, from_site_id, to_site_id, created_at
        FROM route_templates WHERE id = $1`, string(id),
	)
	return scanRouteTemplate(row)
}

// ListRouteTemplates returns every declared route, oldest first. Matching
// iterates this order so identical-score ties stay deterministic.
func (s *Store) ListRouteTemplates(ctx context.Context) ([]RouteTemplate, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, carpooler_id, from_label, from_lat, from_lng, to_label, to_lat, to_lng, from_site_id, to_site_id, created_at
        FROM route_templates
        ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RouteTemplate
	for rows.Next() {
		r, err := scanRouteTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) CreateAvailability(ctx context.Context, a *Availability) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO availabilities (id, carpooler_id, route_template_id, kind, start_at, end_at, weekday_mask, time_window_start, time_window_end, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(a.ID), string(a.CarpoolerID), string(a.RouteTemplateID), string(a.Kind),
		a.StartAt, a.EndAt, a.WeekdayMask, a.TimeWindowStart, a.TimeWindowEnd,
		a.IsActive, a.CreatedAt,
	)
	return err
}

// ToggleAvailability flips is_active atomically and returns the new value.
func (s *Store) ToggleAvailability(ctx context.Context, id types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
        UPDATE availabilities SET is_active = NOT is_active
        WHERE id = $1
        RETURNING is_active`, string(id),
	)
	var active bool
	err := row.Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return active, nil
}

func (s *Store) ListAvailabilitiesForCarpooler(ctx context.Context, carpoolerID types.ID) ([]Availability, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, carpooler_id, route_template_id, kind, start_at, end_at, weekday_mask, time_window_start, time_window_end, is_active, created_at
        FROM availabilities
        WHERE carpooler_id = $1
        ORDER BY created_at, id`, string(carpoolerID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAvailabilities(rows)
}

func (s *Store) ListActiveAvailabilitiesForRoute(ctx context.Context, routeTemplateID types.ID) ([]Availability, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, carpooler_id, route_template_id, kind, start_at, end_at, weekday_mask, time_window_start, time_window_end, is_active, created_at
        FROM availabilities
        WHERE route_template_id = $1 AND is_active
        ORDER BY created_at, id`, string(routeTemplateID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAvailabilities(rows)
}

func collectAvailabilities(rows pgx.Rows) ([]Availability, error) {
	var out []Availability
	for rows.Next() {
		var a Availability
		if err := rows.Scan(&a.ID, &a.CarpoolerID, &a.RouteTemplateID, &a.Kind,
			&a.StartAt, &a.EndAt, &a.WeekdayMask,
			&a.TimeWindowStart, &a.TimeWindowEnd, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanRouteTemplate(row pgx.Row) (*RouteTemplate, error) {
	var r RouteTemplate
	var fromSite, toSite *string
	err := row.Scan(&r.ID, &r.CarpoolerID,
		&r.FromLabel, &r.From.Lat, &r.From.Lng,
		&r.ToLabel, &r.To.Lat, &r.To.Lng,
		&fromSite, &toSite, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if fromSite != nil {
		id := types.ID(*fromSite)
		r.FromSiteID = &id
	}
	if toSite != nil {
		id := types.ID(*toSite)
		r.ToSiteID = &id
	}
	return &r, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
