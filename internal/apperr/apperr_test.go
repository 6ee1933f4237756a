package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ValidationError("x"), http.StatusBadRequest},
		{AuthenticationError("x"), http.StatusUnauthorized},
		{PersistenceError("x", errors.New("db")), http.StatusInternalServerError},
		{NotFoundError("x"), http.StatusNotFound},
		{ConflictError("x"), http.StatusConflict},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := StatusCode(c.err); got != c.want {
			t.Fatalf("StatusCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestMessageSurvivesWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("book: %w", PersistenceError("Failed to book ride", cause))
	if got := Message(err); got != "Failed to book ride" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if Message(errors.New("boom")) != "Internal server error" {
		t.Fatalf("plain errors must not leak their text")
	}
}
