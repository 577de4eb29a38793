package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing bar, unknown status value).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrDomainViolation is returned when the referenced entities exist but the
// requested operation is not valid for their current state, such as vacating
// a group that is not being served at the stop.
// Handlers should map this to HTTP 409 Conflict.
var ErrDomainViolation = errors.New("domain violation")

// ErrNoCandidateStop is returned by routing when a group has visited every
// stop of its event. It marks the end of the group's circuit, not a fault.
var ErrNoCandidateStop = errors.New("no candidate stop")
