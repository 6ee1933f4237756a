package main

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/storage"
)

func TestSeedUserHashesPassword(t *testing.T) {
	m := storage.NewMemoryStore()
	id, err := seed(context.Background(), m, options{kind: "user", name: "Ada", email: "ada@example.com", password: "pw", cost: bcrypt.MinCost})
	if err != nil || id == 0 {
		t.Fatalf("seed user: id=%d err=%v", id, err)
	}
	u, err := m.FindUserByLogin(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if u.PasswordHash == "pw" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("pw")) != nil {
		t.Fatalf("password not hashed: %q", u.PasswordHash)
	}
}

func TestSeedDriverIsAvailable(t *testing.T) {
	m := storage.NewMemoryStore()
	id, err := seed(context.Background(), m, options{kind: "driver", name: "Tunde", plate: "LAG-1", vehicleType: "SUV"})
	if err != nil {
		t.Fatalf("seed driver: %v", err)
	}
	cands, _ := m.AvailableDrivers(context.Background(), models.VehicleSUV, 5)
	if len(cands) != 1 || cands[0].Driver.ID != id {
		t.Fatalf("expected seeded suv driver, got %+v", cands)
	}
}

func TestSeedRejectsBadInput(t *testing.T) {
	m := storage.NewMemoryStore()
	for _, o := range []options{
		{kind: "user", name: "Ada", password: "pw", cost: bcrypt.MinCost},
		{kind: "user", name: "Ada", email: "a@b.c", cost: bcrypt.MinCost},
		{kind: "driver", name: "Tunde"},
		{kind: "rider", name: "X"},
		{kind: "user"},
	} {
		if _, err := seed(context.Background(), m, o); err == nil {
			t.Fatalf("expected error for %+v", o)
		}
	}
}
