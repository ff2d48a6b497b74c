// README: DB-backed store tests. Skipped unless TANDEM_TEST_DSN is set.
package trip

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tandem/internal/types"
)

func setupTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("TANDEM_TEST_DSN")
	if dsn == "" {
		t.Skip("TANDEM_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}

	if _, err := db.Exec(ctx, "TRUNCATE TABLE trip_events, bookings, trip_stops, trips"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return NewStore(db)
}

func insertTestTrip(t *testing.T, store *PostgresStore, seats int) types.ID {
	t.Helper()
	tr := &Trip{
		ID:              types.NewID(),
		CarpoolerID:     "driver-db",
		RouteTemplateID: "route-db",
		DepartureAt:     time.Now().Add(24 * time.Hour),
		SeatsTotal:      seats,
		Status:          TripOpen,
		CreatedAt:       time.Now(),
	}
	if err := store.CreateTrip(context.Background(), tr, nil); err != nil {
		t.Fatalf("create trip: %v", err)
	}
	return tr.ID
}

func TestStoreClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	tripID := insertTestTrip(t, store, 1)

	claimed, err := store.ClaimSeat(ctx, tripID)
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}
	tr, err := store.GetTrip(ctx, tripID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if tr.Status != TripLocked || tr.SeatsTaken != 1 {
		t.Fatalf("after claim: %s/%d, want locked/1", tr.Status, tr.SeatsTaken)
	}

	claimed, err = store.ClaimSeat(ctx, tripID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("claim on locked trip must not succeed")
	}

	if err := store.ReleaseSeat(ctx, tripID); err != nil {
		t.Fatalf("release: %v", err)
	}
	tr, _ = store.GetTrip(ctx, tripID)
	if tr.Status != TripOpen || tr.SeatsTaken != 0 {
		t.Fatalf("after release: %s/%d, want open/0", tr.Status, tr.SeatsTaken)
	}
}

func TestStoreDuplicateBookingUniqueIndex(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	tripID := insertTestTrip(t, store, 3)

	b := &Booking{
		ID:        types.NewID(),
		TripID:    tripID,
		RiderID:   "rider-dup",
		Status:    BookingPending,
		CreatedAt: time.Now(),
	}
	if err := store.CreateBooking(ctx, b); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	dup := &Booking{
		ID:        types.NewID(),
		TripID:    tripID,
		RiderID:   "rider-dup",
		Status:    BookingPending,
		CreatedAt: time.Now(),
	}
	if err := store.CreateBooking(ctx, dup); err != ErrAlreadyRequested {
		t.Fatalf("duplicate booking: got %v, want ErrAlreadyRequested", err)
	}

	// A terminal booking frees the slot for a new request.
	ok, err := store.UpdateBookingStatus(ctx, b.ID, BookingPending, BookingRejected, 0)
	if err != nil || !ok {
		t.Fatalf("reject booking: ok=%v err=%v", ok, err)
	}
	again := &Booking{
		ID:        types.NewID(),
		TripID:    tripID,
		RiderID:   "rider-dup",
		Status:    BookingPending,
		CreatedAt: time.Now(),
	}
	if err := store.CreateBooking(ctx, again); err != nil {
		t.Fatalf("booking after rejection: %v", err)
	}
}

func TestStoreConcurrentJoinLastSeat(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	tripID := insertTestTrip(t, store, 1)

	const riders = 6
	var wg sync.WaitGroup
	errs := make(chan error, riders)
	start := make(chan struct{})

	for i := 0; i < riders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			b := &Booking{
				ID:        types.NewID(),
				TripID:    tripID,
				RiderID:   types.ID(fmt.Sprintf("rider-%d", i)),
				Status:    BookingAccepted,
				CreatedAt: time.Now(),
			}
			errs <- store.JoinTrip(ctx, b)
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != ErrTripFull {
			t.Fatalf("losing join: got %v, want ErrTripFull", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful join, got %d", success)
	}

	tr, err := store.GetTrip(ctx, tripID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if tr.SeatsTaken != 1 || tr.Status != TripLocked {
		t.Fatalf("trip = %s/%d taken, want locked/1", tr.Status, tr.SeatsTaken)
	}
	bookings, err := store.ListBookingsForTrip(ctx, tripID)
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	if len(bookings) != 1 {
		t.Fatalf("bookings = %d, want 1 (losers must not leave rows)", len(bookings))
	}
}

func TestStoreJoinFailureClassification(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	tripID := insertTestTrip(t, store, 1)

	winner := &Booking{
		ID:        types.NewID(),
		TripID:    tripID,
		RiderID:   "rider-w",
		Status:    BookingAccepted,
		CreatedAt: time.Now(),
	}
	if err := store.JoinTrip(ctx, winner); err != nil {
		t.Fatalf("winning join: %v", err)
	}

	// The trip is now full and therefore locked; the next join still
	// reports fullness.
	loser := &Booking{
		ID:        types.NewID(),
		TripID:    tripID,
		RiderID:   "rider-l",
		Status:    BookingAccepted,
		CreatedAt: time.Now(),
	}
	if err := store.JoinTrip(ctx, loser); err != ErrTripFull {
		t.Fatalf("join on full trip: got %v, want ErrTripFull", err)
	}

	ok, err := store.CancelTrip(ctx, tripID, TripLocked, 1)
	if err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}
	loser.ID = types.NewID()
	if err := store.JoinTrip(ctx, loser); err != ErrTripNotOpen {
		t.Fatalf("join on cancelled trip: got %v, want ErrTripNotOpen", err)
	}
}

func TestStoreCancelTripVersionGuard(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	tripID := insertTestTrip(t, store, 2)

	ok, err := store.CancelTrip(ctx, tripID, TripOpen, 99)
	if err != nil {
		t.Fatalf("cancel with stale version: %v", err)
	}
	if ok {
		t.Fatal("stale version must not cancel")
	}

	ok, err = store.CancelTrip(ctx, tripID, TripOpen, 0)
	if err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}
	tr, _ := store.GetTrip(ctx, tripID)
	if tr.Status != TripCancelled || tr.CancelledAt == nil {
		t.Fatalf("after cancel: %s, cancelled_at=%v", tr.Status, tr.CancelledAt)
	}
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	path := filepath.Join(root, "migrations", "0001_init.sql")
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
