// Package handler contains the HTTP/JSON handlers for the TSF dashboard.
//
// Handlers decode requests, call into the registry, engine, session and
// export services, and write JSON. Errors go through ErrorResponse so every
// failure has the same envelope.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// maxBodyBytes caps request bodies. Every JSON body this API accepts is a
// handful of short strings.
const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a single JSON object from r's body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domain.Errorf(domain.ETOOLARGE, op, "Request body is too large")
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body is required")
		default:
			return domain.Invalid(op, "Request body is not valid JSON")
		}
	}
	return nil
}

// queryFloat parses a required float query parameter.
func queryFloat(r *http.Request, op, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, domain.Invalid(op, "Missing query parameter: "+name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, domain.Invalid(op, "Query parameter must be a number: "+name)
	}
	return v, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, op, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid(op, "Query parameter must be an integer: "+name)
	}
	return v, nil
}
