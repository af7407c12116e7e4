package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/seat-booking-backend/internal/auth"
	bookingHttp "github.com/nekogravitycat/seat-booking-backend/internal/booking/http"
	"github.com/nekogravitycat/seat-booking-backend/internal/config"
	"github.com/nekogravitycat/seat-booking-backend/internal/db"
	resourceHttp "github.com/nekogravitycat/seat-booking-backend/internal/resource/http"
	slotHttp "github.com/nekogravitycat/seat-booking-backend/internal/slot/http"
	"github.com/nekogravitycat/seat-booking-backend/internal/user"
)

const testLockTimeout = 500 * time.Millisecond

var (
	testRouter *gin.Engine
	testPool   *pgxpool.Pool
	jwtManager *auth.JWTManager
)

// TestMain wires the full container against TEST_DB_DSN. Without it the
// integration tests skip and only the unit tests of this package run.
func TestMain(m *testing.M) {
	if err := godotenv.Load("../../.env"); err != nil {
		log.Printf("No .env file found or failed to load: %v", err)
	}

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	testPool, err = db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	if err := db.ApplySchema(ctx, testPool); err != nil {
		log.Fatalf("Unable to apply schema: %v\n", err)
	}

	gin.SetMode(gin.TestMode)
	container, err := NewContainer(Config{
		DBPool:     testPool,
		JWTSecret:  "integration-secret",
		JWTTTL:     30 * time.Minute,
		BcryptCost: 4,
		Reservation: config.ReservationConfig{
			LockTimeout:         testLockTimeout,
			ReleaseSeatOnCancel: true,
		},
	})
	if err != nil {
		log.Fatalf("Unable to build container: %v\n", err)
	}
	testRouter = container.Router
	jwtManager = container.JWTManager

	exitCode := m.Run()

	container.Close()
	testPool.Close()
	os.Exit(exitCode)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("TEST_DB_DSN not set")
	}
}

func clearTables(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		"TRUNCATE TABLE public.bookings, public.seats, public.slots, public.resources, public.users CASCADE")
	require.NoError(t, err)
}

func executeRequest(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req, _ := http.NewRequest(method, path, bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	testRouter.ServeHTTP(w, req)
	return w
}

func createTestUser(t *testing.T, email string, isAdmin bool) (*user.User, string) {
	t.Helper()
	u := &user.User{
		Email:         email,
		PasswordHash:  "x",
		IsActive:      true,
		IsSystemAdmin: isAdmin,
	}
	require.NoError(t, user.NewPgxRepository(testPool).Create(context.Background(), u))

	token, err := jwtManager.GenerateAccessToken(u.ID)
	require.NoError(t, err)
	return u, token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// setupSlot creates a resource and one slot starting at start with capacity seats.
func setupSlot(t *testing.T, adminToken string, start time.Time, capacity int) slotHttp.SlotWithSeatsResponse {
	t.Helper()
	w := executeRequest(http.MethodPost, "/v1/resources",
		resourceHttp.CreateRequest{Name: "Room " + start.Format("150405.000"), Type: "room"}, adminToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[resourceHttp.ResourceResponse](t, w)

	w = executeRequest(http.MethodPost, "/v1/resources/"+res.ID+"/slots", slotHttp.CreateSlotRequest{
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Capacity:  capacity,
	}, adminToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[slotHttp.SlotWithSeatsResponse](t, w)
}

func TestReserveAndCancelFlow(t *testing.T) {
	requireDB(t)
	clearTables(t)

	_, adminToken := createTestUser(t, "admin@seats.test", true)
	booker, bookerToken := createTestUser(t, "booker@seats.test", false)
	_, otherToken := createTestUser(t, "other@seats.test", false)

	sl := setupSlot(t, adminToken, time.Now().UTC().Add(24*time.Hour), 3)
	require.Len(t, sl.Seats, 3)
	assert.Equal(t, "S01", sl.Seats[0].SeatNumber)
	seatID := sl.Seats[0].ID

	var bookingID string

	t.Run("Reserve: Success", func(t *testing.T) {
		w := executeRequest(http.MethodPost, "/v1/bookings", bookingHttp.CreateBookingRequest{SeatID: seatID}, bookerToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		resp := decode[bookingHttp.BookingResponse](t, w)
		assert.Equal(t, booker.ID, resp.UserID)
		assert.Equal(t, "confirmed", resp.Status)
		assert.Equal(t, sl.ID, resp.Slot.ID)
		bookingID = resp.ID
	})

	t.Run("Reserve: Seat Taken", func(t *testing.T) {
		w := executeRequest(http.MethodPost, "/v1/bookings", bookingHttp.CreateBookingRequest{SeatID: seatID}, otherToken)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "seat is not available")
	})

	t.Run("Reserve: Duplicate In Slot", func(t *testing.T) {
		w := executeRequest(http.MethodPost, "/v1/bookings", bookingHttp.CreateBookingRequest{SeatID: sl.Seats[1].ID}, bookerToken)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "you already have a booking for this time slot")
	})

	t.Run("Availability Excludes Booked Seat", func(t *testing.T) {
		w := executeRequest(http.MethodGet, "/v1/slots/"+sl.ID+"/seats", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		seats := decode[[]slotHttp.SeatResponse](t, w)
		require.Len(t, seats, 2)
		assert.Equal(t, "S02", seats[0].SeatNumber)
	})

	t.Run("Cancel: Stranger Gets 404", func(t *testing.T) {
		w := executeRequest(http.MethodPost, "/v1/bookings/"+bookingID+"/cancel", nil, otherToken)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Cancel: Success Releases Seat", func(t *testing.T) {
		w := executeRequest(http.MethodPost, "/v1/bookings/"+bookingID+"/cancel", nil, bookerToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "cancelled", decode[bookingHttp.BookingResponse](t, w).Status)

		w = executeRequest(http.MethodGet, "/v1/slots/"+sl.ID+"/seats", nil, "")
		assert.Len(t, decode[[]slotHttp.SeatResponse](t, w), 3)
	})

	t.Run("Cancel: Already Cancelled", func(t *testing.T) {
		w := executeRequest(http.MethodPost, "/v1/bookings/"+bookingID+"/cancel", nil, bookerToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "booking is already cancelled")
	})

	t.Run("Reserve Again After Cancel", func(t *testing.T) {
		w := executeRequest(http.MethodPost, "/v1/bookings", bookingHttp.CreateBookingRequest{SeatID: seatID}, bookerToken)
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})
}

func TestReleaseSeat(t *testing.T) {
	requireDB(t)
	clearTables(t)

	_, adminToken := createTestUser(t, "admin@release.test", true)
	_, bookerToken := createTestUser(t, "booker@release.test", false)
	sl := setupSlot(t, adminToken, time.Now().UTC().Add(24*time.Hour), 1)
	seatID := sl.Seats[0].ID

	w := executeRequest(http.MethodPost, "/v1/seats/"+seatID+"/release", nil, adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "seat is not currently booked")

	w = executeRequest(http.MethodPost, "/v1/bookings", bookingHttp.CreateBookingRequest{SeatID: seatID}, bookerToken)
	require.Equal(t, http.StatusCreated, w.Code)

	w = executeRequest(http.MethodPost, "/v1/seats/"+seatID+"/release", nil, bookerToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = executeRequest(http.MethodPost, "/v1/seats/"+seatID+"/release", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "available", string(decode[slotHttp.SeatResponse](t, w).Status))

	// The booking itself stays confirmed.
	w = executeRequest(http.MethodGet, "/v1/slots/"+sl.ID+"/bookings", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestPastSlotRejected(t *testing.T) {
	requireDB(t)
	clearTables(t)

	_, adminToken := createTestUser(t, "admin@past.test", true)
	_, bookerToken := createTestUser(t, "booker@past.test", false)
	sl := setupSlot(t, adminToken, time.Now().UTC().Add(-time.Hour), 2)

	w := executeRequest(http.MethodPost, "/v1/bookings", bookingHttp.CreateBookingRequest{SeatID: sl.Seats[0].ID}, bookerToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "cannot book seats for past time slots")

	// Started slots never show up as open.
	w = executeRequest(http.MethodGet, "/v1/resources/"+sl.ResourceID+"/slots", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[slotHttp.ResourceWithSlotsResponse](t, w).Slots)
}

func TestConcurrentReserveSameSeat(t *testing.T) {
	requireDB(t)
	clearTables(t)

	_, adminToken := createTestUser(t, "admin@race.test", true)
	sl := setupSlot(t, adminToken, time.Now().UTC().Add(24*time.Hour), 1)
	seatID := sl.Seats[0].ID

	const n = 20
	tokens := make([]string, n)
	for i := range tokens {
		_, tokens[i] = createTestUser(t, fmt.Sprintf("racer%d@race.test", i), false)
	}

	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = executeRequest(http.MethodPost, "/v1/bookings", bookingHttp.CreateBookingRequest{SeatID: seatID}, tokens[i]).Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusCreated {
			created++
			continue
		}
		assert.Equal(t, http.StatusConflict, code)
	}
	assert.Equal(t, 1, created)

	var confirmed int
	require.NoError(t, testPool.QueryRow(context.Background(),
		"SELECT count(*) FROM public.bookings WHERE seat_id = $1 AND status = 'confirmed'", seatID).Scan(&confirmed))
	assert.Equal(t, 1, confirmed)
}

func TestConcurrentReserveDifferentSeats(t *testing.T) {
	requireDB(t)
	clearTables(t)

	_, adminToken := createTestUser(t, "admin@parallel.test", true)
	const n = 10
	sl := setupSlot(t, adminToken, time.Now().UTC().Add(24*time.Hour), n)

	tokens := make([]string, n)
	for i := range tokens {
		_, tokens[i] = createTestUser(t, fmt.Sprintf("p%d@parallel.test", i), false)
	}

	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = executeRequest(http.MethodPost, "/v1/bookings", bookingHttp.CreateBookingRequest{SeatID: sl.Seats[i].ID}, tokens[i]).Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusCreated, code, "seat %d", i)
	}

	w := executeRequest(http.MethodGet, "/v1/slots/"+sl.ID+"/seats", nil, "")
	assert.Empty(t, decode[[]slotHttp.SeatResponse](t, w))
}

// lockSeatRow holds the seat row lock in a separate transaction until the test ends.
func lockSeatRow(t *testing.T, seatID string) pgx.Tx {
	t.Helper()
	ctx := context.Background()
	tx, err := testPool.Begin(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(ctx) })

	_, err = tx.Exec(ctx, "SELECT id FROM public.seats WHERE id = $1 FOR UPDATE", seatID)
	require.NoError(t, err)
	return tx
}

func TestReserveNotBlockedByOtherSeatLock(t *testing.T) {
	requireDB(t)
	clearTables(t)

	_, adminToken := createTestUser(t, "admin@perseat.test", true)
	_, bookerToken := createTestUser(t, "booker@perseat.test", false)
	sl := setupSlot(t, adminToken, time.Now().UTC().Add(24*time.Hour), 2)

	lockSeatRow(t, sl.Seats[0].ID)

	start := time.Now()
	w := executeRequest(http.MethodPost, "/v1/bookings", bookingHttp.CreateBookingRequest{SeatID: sl.Seats[1].ID}, bookerToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Less(t, time.Since(start), testLockTimeout, "reservation waited on another seat's lock")
}

func TestReserveLockTimeoutIsRetryable(t *testing.T) {
	requireDB(t)
	clearTables(t)

	_, adminToken := createTestUser(t, "admin@timeout.test", true)
	_, bookerToken := createTestUser(t, "booker@timeout.test", false)
	sl := setupSlot(t, adminToken, time.Now().UTC().Add(24*time.Hour), 1)
	seatID := sl.Seats[0].ID

	holder := lockSeatRow(t, seatID)

	start := time.Now()
	w := executeRequest(http.MethodPost, "/v1/bookings", bookingHttp.CreateBookingRequest{SeatID: seatID}, bookerToken)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"seat is busy, please retry"}`, w.Body.String())
	assert.GreaterOrEqual(t, time.Since(start), testLockTimeout)

	require.NoError(t, holder.Rollback(context.Background()))

	w = executeRequest(http.MethodGet, "/v1/slots/"+sl.ID+"/seats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	seats := decode[[]slotHttp.SeatResponse](t, w)
	require.Len(t, seats, 1, "timed out reservation must leave the seat available")

	var bookings int
	require.NoError(t, testPool.QueryRow(context.Background(),
		"SELECT count(*) FROM public.bookings WHERE seat_id = $1", seatID).Scan(&bookings))
	assert.Zero(t, bookings)

	// The same request succeeds once the lock is gone.
	w = executeRequest(http.MethodPost, "/v1/bookings", bookingHttp.CreateBookingRequest{SeatID: seatID}, bookerToken)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}
