// README: Stops store backed by PostgreSQL; bounding-box range scans feed the matching engine.
package stops

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tandem/internal/geo"
	"tandem/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) CreateSite(ctx context.Context, site *Site) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO sites (id, code, name, address, lat, lng, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(site.ID), site.Code, site.Name, site.Address,
		site.Position.Lat, site.Position.Lng, site.CreatedAt,
	)
	return err
}

func (s *Store) GetSite(ctx context.Context, id types.ID) (*Site, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, code, name, address, lat, lng, created_at
        FROM sites WHERE id = $1`, string(id),
	)
	var site Site
	err := row.Scan(&site.ID, &site.Code, &site.Name, &site.Address,
		&site.Position.Lat, &site.Position.Lng, &site.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *Store) CreatePickupPoint(ctx context.Context, p *PickupPoint) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO pickup_points (id, site_id, label, lat, lng, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(p.ID), string(p.SiteID), p.Label,
		p.Position.Lat, p.Position.Lng, p.IsActive, p.CreatedAt,
	)
	return err
}

// SetPickupPointActive flips the active flag; inactive points drop out of
// every candidate scan.
func (s *Store) SetPickupPointActive(ctx context.Context, id types.ID, active bool) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE pickup_points SET is_active = $1 WHERE id = $2`,
		active, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PickupPointsInBox returns every active pickup point inside the box,
// with the earliest upcoming OPEN trip serving the point attached when one
// exists. The scan relies on the composite (lat, lng) index; exact distance
// filtering happens in the matching engine.
func (s *Store) PickupPointsInBox(ctx context.Context, box geo.Box) ([]StopCandidate, error) {
	rows, err := s.db.Query(ctx, `
        SELECT p.id, p.site_id, p.label, p.lat, p.lng, p.is_active, p.created_at,
               (SELECT t.id
                  FROM trip_stops ts
                  JOIN trips t ON t.id = ts.trip_id
                 WHERE ts.pickup_point_id = p.id
                   AND t.status = 'open'
                   AND t.departure_at > NOW()
                 ORDER BY t.departure_at
                 LIMIT 1)
        FROM pickup_points p
        WHERE p.is_active
          AND p.lat BETWEEN $1 AND $2
          AND p.lng BETWEEN $3 AND $4
        ORDER BY p.created_at, p.id`,
		box.MinLat, box.MaxLat, box.MinLng, box.MaxLng,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StopCandidate
	for rows.Next() {
		var c StopCandidate
		var tripID *string
		if err := rows.Scan(&c.ID, &c.SiteID, &c.Label,
			&c.Position.Lat, &c.Position.Lng, &c.IsActive, &c.CreatedAt,
			&tripID); err != nil {
			return nil, err
		}
		if tripID != nil {
			id := types.ID(*tripID)
			c.TripID = &id
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateGeneratedStop(ctx context.Context, g *GeneratedStop) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO generated_stops (id, rider_id, label, lat, lng, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		string(g.ID), string(g.RiderID), g.Label,
		g.Position.Lat, g.Position.Lng, g.CreatedAt,
	)
	return err
}

// GeneratedStopsInBox returns previously persisted client-proposed stops
// inside the box, oldest first.
func (s *Store) GeneratedStopsInBox(ctx context.Context, box geo.Box) ([]GeneratedStop, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, rider_id, label, lat, lng, created_at
        FROM generated_stops
        WHERE lat BETWEEN $1 AND $2
          AND lng BETWEEN $3 AND $4
        ORDER BY created_at, id`,
		box.MinLat, box.MaxLat, box.MinLng, box.MaxLng,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GeneratedStop
	for rows.Next() {
		var g GeneratedStop
		if err := rows.Scan(&g.ID, &g.RiderID, &g.Label,
			&g.Position.Lat, &g.Position.Lng, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
