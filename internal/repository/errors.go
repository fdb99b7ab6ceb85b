// Package repository defines error types that are reused across
// multiple repositories. These sentinel values allow higher layers
// such as handlers to distinguish between failure scenarios: for
// example, ErrCapacityExceeded means the authoritative capacity
// re-check rejected an admission, while ErrResourceGone means the
// occurrence or its owning event was removed concurrently and no
// counter compensation must be credited back for it.
package repository

import "errors"

// ErrCapacityExceeded is returned when inserting a registration would
// push the sum of live attendee units past the occurrence's
// max_attendee ceiling. Handlers should translate this into an HTTP
// 409 response.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrResourceGone is returned when the targeted occurrence, campaign
// or gift has been soft-deleted or never existed. This class is
// terminal for the admission fast path: no counter release is issued
// for it. Handlers should translate this into an HTTP 410 response.
var ErrResourceGone = errors.New("resource gone")

// ErrConflict is returned when an allocation batch violates the
// single-win rule of a campaign, or an operation clashes with
// existing dependent records. The whole batch is rejected before any
// write. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrValidation is returned for malformed input that is detectable
// against stored state, such as a gift identifier that does not
// belong to the targeted campaign or an explicit winner without a
// member reference. Handlers should translate this into an HTTP 400
// response.
var ErrValidation = errors.New("validation failed")
