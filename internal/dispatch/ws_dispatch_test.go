package dispatch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/ride-booking/internal/models"
)

func TestNotifyAssignmentWithoutSession(t *testing.T) {
	r := NewWSRegistry()
	if err := r.NotifyAssignment(1, models.Assignment{RideID: 1}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestNotifyAssignmentDelivers(t *testing.T) {
	reg := NewWSRegistry()
	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		reg.Add(5, conn)
		close(registered)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("session was not registered")
	}

	if err := reg.NotifyAssignment(5, models.Assignment{Type: "ride.assigned", RideID: 11, Fare: 4000}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.Assignment
	if err := client.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.RideID != 11 || got.Fare != 4000 {
		t.Fatalf("unexpected assignment %+v", got)
	}
}
