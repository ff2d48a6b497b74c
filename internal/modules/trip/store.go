// README: Trip/booking store backed by PostgreSQL. Seat accounting relies on
// conditional UPDATEs so capacity holds under concurrent writers.
package trip

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tandem/internal/types"
)

const pgUniqueViolation = "23505"

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateTrip(ctx context.Context, t *Trip, stops []TripStop) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        INSERT INTO trips (id, carpooler_id, route_template_id, departure_at, seats_total, seats_taken, status, status_version, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)`,
		string(t.ID), string(t.CarpoolerID), string(t.RouteTemplateID),
		t.DepartureAt, t.SeatsTotal, t.SeatsTaken, string(t.Status), t.CreatedAt,
	)
	if err != nil {
		return err
	}
	for i := range stops {
		st := &stops[i]
		_, err = tx.Exec(ctx, `
            INSERT INTO trip_stops (id, trip_id, seq, label, lat, lng, pickup_point_id)
            VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			string(st.ID), string(st.TripID), st.Seq, st.Label,
			st.Position.Lat, st.Position.Lng, idPtr(st.PickupPointID),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetTrip(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, carpooler_id, route_template_id, departure_at, seats_total, seats_taken, status, status_version, created_at, cancelled_at
        FROM trips WHERE id = $1`, string(id),
	)
	var t Trip
	err := row.Scan(&t.ID, &t.CarpoolerID, &t.RouteTemplateID, &t.DepartureAt,
		&t.SeatsTotal, &t.SeatsTaken, &t.Status, &t.StatusVersion,
		&t.CreatedAt, &t.CancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTripNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) CancelTrip(ctx context.Context, id types.ID, from TripStatus, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE trips
        SET status = 'cancelled', status_version = status_version + 1, cancelled_at = now()
        WHERE id = $1 AND status = $2 AND status_version = $3`,
		string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimSeat performs the check-and-increment in one statement; the WHERE
// clause guarantees seats_taken never exceeds seats_total, and the CASE
// locks the trip when the last seat goes.
func (s *PostgresStore) ClaimSeat(ctx context.Context, id types.ID) (bool, error) {
	return s.claimSeat(ctx, s.db, id)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) claimSeat(ctx context.Context, db execer, id types.ID) (bool, error) {
	tag, err := db.Exec(ctx, `
        UPDATE trips
        SET seats_taken = seats_taken + 1,
            status = CASE WHEN seats_taken + 1 >= seats_total THEN 'locked' ELSE status END,
            status_version = status_version + 1
        WHERE id = $1 AND status = 'open' AND seats_taken < seats_total`,
		string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseSeat frees one seat and forces a locked trip back to open. A
// cancelled trip is terminal and is never touched.
func (s *PostgresStore) ReleaseSeat(ctx context.Context, id types.ID) error {
	_, err := s.db.Exec(ctx, `
        UPDATE trips
        SET seats_taken = seats_taken - 1,
            status = CASE WHEN status = 'locked' THEN 'open' ELSE status END,
            status_version = status_version + 1
        WHERE id = $1 AND seats_taken > 0 AND status <> 'cancelled'`,
		string(id),
	)
	return err
}

// JoinTrip claims a seat and inserts the accepted booking in one transaction.
// When the conditional claim touches no row, the trip is re-read inside the
// transaction to classify the failure: a full trip reports ErrTripFull even
// though filling it also locked it, so the loser of a last-seat race always
// sees fullness; ErrTripNotOpen is reserved for cancelled trips.
func (s *PostgresStore) JoinTrip(ctx context.Context, b *Booking) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	claimed, err := s.claimSeat(ctx, tx, b.TripID)
	if err != nil {
		return err
	}
	if !claimed {
		row := tx.QueryRow(ctx, `SELECT status, seats_taken, seats_total FROM trips WHERE id = $1`, string(b.TripID))
		var status string
		var taken, total int
		if err := row.Scan(&status, &taken, &total); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTripNotFound
			}
			return err
		}
		if TripStatus(status) != TripCancelled && taken >= total {
			return ErrTripFull
		}
		return ErrTripNotOpen
	}

	if err := s.insertBooking(ctx, tx, b); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) CreateBooking(ctx context.Context, b *Booking) error {
	return s.insertBooking(ctx, s.db, b)
}

func (s *PostgresStore) insertBooking(ctx context.Context, db execer, b *Booking) error {
	_, err := db.Exec(ctx, `
        INSERT INTO bookings (id, trip_id, rider_id, pickup_point_id, status, status_version, created_at, decided_at, cancelled_at)
        VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)`,
		string(b.ID), string(b.TripID), string(b.RiderID), idPtr(b.PickupPointID),
		string(b.Status), b.CreatedAt, b.DecidedAt, b.CancelledAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrAlreadyRequested
	}
	return err
}

func (s *PostgresStore) GetBooking(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, trip_id, rider_id, pickup_point_id, status, status_version, created_at, decided_at, cancelled_at
        FROM bookings WHERE id = $1`, string(id),
	)
	return scanBooking(row)
}

func (s *PostgresStore) ActiveBookingForRider(ctx context.Context, tripID, riderID types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, trip_id, rider_id, pickup_point_id, status, status_version, created_at, decided_at, cancelled_at
        FROM bookings
        WHERE trip_id = $1 AND rider_id = $2 AND status IN ('pending', 'accepted')`,
		string(tripID), string(riderID),
	)
	return scanBooking(row)
}

// UpdateBookingStatus is the optimistic transition: the row moves only if
// status and version still match what the caller read.
func (s *PostgresStore) UpdateBookingStatus(ctx context.Context, id types.ID, from, to BookingStatus, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE bookings
        SET status = $1,
            status_version = status_version + 1,
            decided_at = CASE WHEN $1 IN ('accepted', 'rejected') THEN now() ELSE decided_at END,
            cancelled_at = CASE WHEN $1 = 'cancelled_by_rider' THEN now() ELSE cancelled_at END
        WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListBookingsForTrip(ctx context.Context, tripID types.ID) ([]Booking, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, trip_id, rider_id, pickup_point_id, status, status_version, created_at, decided_at, cancelled_at
        FROM bookings
        WHERE trip_id = $1
        ORDER BY created_at, id`, string(tripID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListTripStops(ctx context.Context, tripID types.ID) ([]TripStop, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, trip_id, seq, label, lat, lng, pickup_point_id
        FROM trip_stops
        WHERE trip_id = $1
        ORDER BY seq`, string(tripID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TripStop
	for rows.Next() {
		var st TripStop
		var pickup *string
		if err := rows.Scan(&st.ID, &st.TripID, &st.Seq, &st.Label,
			&st.Position.Lat, &st.Position.Lng, &pickup); err != nil {
			return nil, err
		}
		if pickup != nil {
			id := types.ID(*pickup)
			st.PickupPointID = &id
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO trip_events (trip_id, booking_id, from_status, to_status, actor_type, actor_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.TripID), idPtr(e.BookingID), e.FromStatus, e.ToStatus,
		e.ActorType, idPtr(e.ActorID), e.CreatedAt,
	)
	return err
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var pickup *string
	err := row.Scan(&b.ID, &b.TripID, &b.RiderID, &pickup,
		&b.Status, &b.StatusVersion, &b.CreatedAt, &b.DecidedAt, &b.CancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if pickup != nil {
		id := types.ID(*pickup)
		b.PickupPointID = &id
	}
	return &b, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
