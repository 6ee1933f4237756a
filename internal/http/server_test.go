package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/ride-booking/internal/account"
	"github.com/example/ride-booking/internal/booking"
	"github.com/example/ride-booking/internal/dispatch"
	"github.com/example/ride-booking/internal/geo"
	"github.com/example/ride-booking/internal/logging"
	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/storage"
)

type testEnv struct {
	srv   *Server
	store *storage.MemoryStore
	geo   *geo.Index
	wsreg *dispatch.WSRegistry
}

type downPinger struct{}

func (downPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

func newTestEnv(t *testing.T, checks map[string]Pinger) *testEnv {
	t.Helper()
	store := storage.NewMemoryStore()
	idx := geo.NewIndex()
	wsreg := dispatch.NewWSRegistry()
	logger := logging.Discard()
	srv := NewServer(Deps{
		Booking:  &booking.Service{Store: store, Locator: idx, Notifier: wsreg, Logger: logger},
		Accounts: &account.Service{Users: store, Logger: logger},
		Geo:      idx,
		WSReg:    wsreg,
		Checks:   checks,
		Logger:   logger,
	})
	return &testEnv{srv: srv, store: store, geo: idx, wsreg: wsreg}
}

func (e *testEnv) addDriver(t *testing.T, class models.VehicleClass) models.Driver {
	t.Helper()
	d := &models.Driver{FullName: "Tunde Bello", Phone: "+2348022222222"}
	v := &models.Vehicle{Make: "Toyota", Model: "Camry", PlateNumber: "LAG-123", Class: class}
	if err := e.store.CreateDriver(context.Background(), d, v); err != nil {
		t.Fatalf("create driver: %v", err)
	}
	return *d
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestBookRideMissingDestination(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(http.MethodPost, "/api/rides/book", `{"user_id":1,"pickup_address":"12 Marina Rd"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["success"] != false || body["message"] != "Required fields missing" {
		t.Fatalf("unexpected body: %v", body)
	}
	if e.store.RideCount() != 0 {
		t.Fatalf("no ride should be written, got %d", e.store.RideCount())
	}
}

func TestBookRideMalformedJSON(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(http.MethodPost, "/api/rides/book", `{"user_id":`)
	if rec.Code != http.StatusBadRequest || decode(t, rec)["message"] != "Required fields missing" {
		t.Fatalf("expected 400 missing fields, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestBookRideWithoutDriver(t *testing.T) {
	e := newTestEnv(t, nil)
	e.addDriver(t, models.VehicleStandard)
	rec := e.do(http.MethodPost, "/api/rides/book",
		`{"user_id":1,"pickup_address":"A","destination_address":"B","vehicle_type":"suv"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["success"] != true || body["message"] != "Ride booked successfully" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["driver"] != nil || body["fare"] != float64(6000) || body["status"] != "requested" {
		t.Fatalf("expected unassigned suv ride: %v", body)
	}
	if _, ok := body["driver"]; !ok {
		t.Fatal("driver key must be present even when null")
	}
}

func TestBookRideAssignsDriver(t *testing.T) {
	e := newTestEnv(t, nil)
	d := e.addDriver(t, models.VehiclePremium)
	rec := e.do(http.MethodPost, "/api/rides/book",
		`{"user_id":1,"pickup_address":"A","destination_address":"B","vehicle_type":"premium","scheduled_time":"2026-05-01 08:00:00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	drv, ok := body["driver"].(map[string]any)
	if !ok || drv["id"] != float64(d.ID) || drv["plate_number"] != "LAG-123" {
		t.Fatalf("expected driver summary, got %v", body["driver"])
	}
	if body["fare"] != float64(4000) || body["status"] != "accepted" {
		t.Fatalf("unexpected body: %v", body)
	}
	got, _ := e.store.Driver(d.ID)
	if got.Available {
		t.Fatal("driver must be marked unavailable")
	}
}

func TestBookRideBadScheduledTime(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(http.MethodPost, "/api/rides/book",
		`{"user_id":1,"pickup_address":"A","destination_address":"B","scheduled_time":"soon"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func seedUser(t *testing.T, e *testEnv) models.User {
	t.Helper()
	h, err := account.HashPassword("pa55word", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{FullName: "Ada Obi", Email: "ada@example.com", Phone: "+2348011111111",
		PasswordHash: h, JobTitle: "Engineer", MemberType: "gold"}
	if err := e.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return *u
}

func TestLoginNeverExposesHash(t *testing.T) {
	e := newTestEnv(t, nil)
	u := seedUser(t, e)
	rec := e.do(http.MethodPost, "/api/auth/login", `{"username":"ada@example.com","password":"pa55word"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), u.PasswordHash) || strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("response leaks password data: %s", rec.Body.String())
	}
	body := decode(t, rec)
	user, _ := body["user"].(map[string]any)
	if body["message"] != "Login successful" || user["member_type"] != "gold" || user["id"] != float64(u.ID) {
		t.Fatalf("unexpected body: %v", body)
	}
	settings, _ := body["security_settings"].(map[string]any)
	if settings["enable_driver_calls"] != false || settings["share_live_location"] != false || settings["private_mode"] != false {
		t.Fatalf("expected default settings, got %v", settings)
	}
}

func TestLoginFailuresAreDistinguishable(t *testing.T) {
	e := newTestEnv(t, nil)
	seedUser(t, e)

	cases := []struct {
		body    string
		status  int
		message string
	}{
		{`{"username":"+2348011111111","password":"nope"}`, http.StatusUnauthorized, "Invalid credentials"},
		{`{"username":"ghost@example.com","password":"pa55word"}`, http.StatusUnauthorized, "User not found"},
		{`{"username":"ada@example.com"}`, http.StatusBadRequest, "Username and password required"},
		{`not json`, http.StatusBadRequest, "Username and password required"},
	}
	for _, tc := range cases {
		rec := e.do(http.MethodPost, "/api/auth/login", tc.body)
		if rec.Code != tc.status || decode(t, rec)["message"] != tc.message {
			t.Fatalf("%s: got %d %s", tc.body, rec.Code, rec.Body.String())
		}
	}
}

func TestUpdateSecurityIsIdempotent(t *testing.T) {
	e := newTestEnv(t, nil)
	payload := `{"user_id":7,"enable_driver_calls":true,"share_live_location":false,"private_mode":true}`
	for i := 0; i < 2; i++ {
		rec := e.do(http.MethodPost, "/api/user/security", payload)
		if rec.Code != http.StatusOK || decode(t, rec)["message"] != "Security settings updated" {
			t.Fatalf("update %d: %d %s", i, rec.Code, rec.Body.String())
		}
	}
	if e.store.SettingsCount() != 1 {
		t.Fatalf("expected one row, got %d", e.store.SettingsCount())
	}
	s, _, _ := e.store.GetSecuritySettings(context.Background(), 7)
	if !s.EnableDriverCalls || s.ShareLiveLocation || !s.PrivateMode {
		t.Fatalf("unexpected settings: %+v", s)
	}

	rec := e.do(http.MethodPost, "/api/user/security", `{"private_mode":true}`)
	if rec.Code != http.StatusBadRequest || decode(t, rec)["message"] != "User ID required" {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestUserIDAcceptsNumberOrNumericString(t *testing.T) {
	cases := []struct {
		id      string
		status  int
		message string
	}{
		{`5`, http.StatusCreated, "Ride booked successfully"},
		{`"5"`, http.StatusCreated, "Ride booked successfully"},
		{`" 5 "`, http.StatusCreated, "Ride booked successfully"},
		{`"abc"`, http.StatusBadRequest, "Required fields missing"},
		{`5.5`, http.StatusBadRequest, "Required fields missing"},
		{`-7`, http.StatusBadRequest, "Required fields missing"},
		{`""`, http.StatusBadRequest, "Required fields missing"},
		{`null`, http.StatusBadRequest, "Required fields missing"},
	}
	for _, tc := range cases {
		e := newTestEnv(t, nil)
		rec := e.do(http.MethodPost, "/api/rides/book",
			`{"user_id":`+tc.id+`,"pickup_address":"A","destination_address":"B"}`)
		if rec.Code != tc.status || decode(t, rec)["message"] != tc.message {
			t.Fatalf("book user_id=%s: got %d %s", tc.id, rec.Code, rec.Body.String())
		}
		if tc.status == http.StatusCreated {
			r, _ := e.store.GetRide(context.Background(), int64(decode(t, rec)["ride_id"].(float64)))
			if r.UserID != 5 {
				t.Fatalf("book user_id=%s stored user %d", tc.id, r.UserID)
			}
		} else if e.store.RideCount() != 0 {
			t.Fatalf("book user_id=%s wrote a ride", tc.id)
		}
	}

	for _, tc := range cases {
		e := newTestEnv(t, nil)
		rec := e.do(http.MethodPost, "/api/user/security", `{"user_id":`+tc.id+`,"private_mode":true}`)
		if tc.status == http.StatusCreated {
			if rec.Code != http.StatusOK {
				t.Fatalf("security user_id=%s: got %d %s", tc.id, rec.Code, rec.Body.String())
			}
			if s, found, _ := e.store.GetSecuritySettings(context.Background(), 5); !found || !s.PrivateMode {
				t.Fatalf("security user_id=%s: settings not stored for user 5", tc.id)
			}
			continue
		}
		if rec.Code != http.StatusBadRequest || decode(t, rec)["message"] != "User ID required" {
			t.Fatalf("security user_id=%s: got %d %s", tc.id, rec.Code, rec.Body.String())
		}
		if e.store.SettingsCount() != 0 {
			t.Fatalf("security user_id=%s wrote a row", tc.id)
		}
	}
}

func TestRideLifecycle(t *testing.T) {
	e := newTestEnv(t, nil)
	d := e.addDriver(t, models.VehicleStandard)
	rec := e.do(http.MethodPost, "/api/rides/book", `{"user_id":1,"pickup_address":"A","destination_address":"B"}`)
	id := strconv.FormatInt(int64(decode(t, rec)["ride_id"].(float64)), 10)

	rec = e.do(http.MethodGet, "/api/rides/"+id, "")
	ride, _ := decode(t, rec)["ride"].(map[string]any)
	if rec.Code != http.StatusOK || ride["status"] != "accepted" || ride["pickup_address"] != "A" {
		t.Fatalf("get ride: %d %s", rec.Code, rec.Body.String())
	}

	if rec = e.do(http.MethodPost, "/api/rides/"+id+"/complete", ""); rec.Code != http.StatusOK {
		t.Fatalf("complete: %d %s", rec.Code, rec.Body.String())
	}
	if got, _ := e.store.Driver(d.ID); !got.Available {
		t.Fatal("driver should be released")
	}
	if rec = e.do(http.MethodPost, "/api/rides/"+id+"/cancel", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 cancelling completed ride, got %d", rec.Code)
	}
	if rec = e.do(http.MethodGet, "/api/rides/999", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDriverLocationUpdatesIndex(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(http.MethodPost, "/api/drivers/4/location", `{"lat":6.45,"lng":3.39}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	pos, _ := e.geo.Positions(context.Background(), []int64{4})
	if p, ok := pos[4]; !ok || p.Lat != 6.45 || p.Lon != 3.39 {
		t.Fatalf("position not stored: %v", pos)
	}
	for _, body := range []string{`{"lat":123,"lng":3}`, `{}`, `{"lat":6.5}`, `{"lng":3.4}`, `{"lat":null,"lng":3}`} {
		if rec = e.do(http.MethodPost, "/api/drivers/5/location", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}
	if pos, _ := e.geo.Positions(context.Background(), []int64{5}); len(pos) != 0 {
		t.Fatalf("rejected updates must not move the driver: %v", pos)
	}
}

func TestDriverReceivesAssignmentOverWebsocket(t *testing.T) {
	e := newTestEnv(t, nil)
	d := e.addDriver(t, models.VehicleStandard)
	ts := httptest.NewServer(e.srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/drivers/" + strconv.FormatInt(d.ID, 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for e.wsreg.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("session was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(ts.URL+"/api/rides/book", "application/json",
		strings.NewReader(`{"user_id":1,"pickup_address":"A","destination_address":"B"}`))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var a models.Assignment
	if err := conn.ReadJSON(&a); err != nil {
		t.Fatalf("read assignment: %v", err)
	}
	if a.Type != "ride.assigned" || a.PickupAddress != "A" || a.Fare != 2500 {
		t.Fatalf("unexpected assignment: %+v", a)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	e := newTestEnv(t, map[string]Pinger{"postgres": downPinger{}})
	if rec := e.do(http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec := e.do(http.MethodGet, "/ready", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	ok := newTestEnv(t, map[string]Pinger{"store": e.store})
	if rec := ok.do(http.MethodGet, "/ready", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rec.Code)
	}
}
