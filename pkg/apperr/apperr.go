// Package apperr defines the error classes the services return and their
// HTTP status mapping. Handlers wrap these with fmt.Errorf("%w") and map
// them with HTTPStatus; expected failures never panic.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound covers entities that are absent or invisible under the
	// requester's visibility rules.
	ErrNotFound = errors.New("not found")

	// ErrForbidden covers authenticated but unauthorized actions.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation covers malformed or logically invalid input.
	ErrValidation = errors.New("invalid request")

	// ErrConflict covers uniqueness violations surfaced to the caller.
	ErrConflict = errors.New("conflict")

	// ErrRoomNotActive is returned for invite-code lookups of rooms that
	// exist but are not active. Distinct from ErrNotFound so the caller
	// can tell "bad code" from "room not open yet".
	ErrRoomNotActive = errors.New("room is not active")
)

// HTTPStatus maps an error to its HTTP status code. Unknown errors map to
// 500; callers should log those before responding.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrRoomNotActive):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
