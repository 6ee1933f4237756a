package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/example/ride-booking/internal/apperr"
)

const maxRequestBodySize = 1 << 20

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respond writes the {success, message, ...} envelope. Success follows the
// status code.
func respond(w http.ResponseWriter, status int, message string, payload map[string]any) {
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = status < http.StatusBadRequest
	body["message"] = message
	respondJSON(w, status, body)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request_failed", "route", routeTemplate(r), "request_id", requestID(r.Context()), "error", err)
	}
	respond(w, status, apperr.Message(err), nil)
}
