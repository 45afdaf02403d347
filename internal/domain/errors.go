package domain

import "errors"

// ErrValidation is returned by service functions when caller input fails a
// business rule (e.g. a blank client or driver id).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")
