package server

import (
	"errors"
	"net/http"
)

// Sentinel error kinds mapped to HTTP status codes at the boundary
// (spec §6 "Error codes", §7). Components return plain wrapped errors;
// handlers classify with errors.Is/errors.As against these.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrBadRequest = errors.New("bad request")
)

// statusFor maps a classified error to its HTTP status code, falling
// back to 500 for anything that isn't one of the sentinels above.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeClassified writes err's message classified against the sentinel
// kinds via errors.Is, so call sites don't each inline a status code.
func writeClassified(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
