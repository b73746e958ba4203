package app

import (
	"errors"
	"fmt"
)

// ErrNotFound and related errors describe service-level failures.
var (
	ErrNotFound           = errors.New("not found")
	ErrStorage            = errors.New("storage failure")
	ErrForbidden          = errors.New("forbidden")
	ErrActorRequired      = errors.New("actor required")
	ErrConflict           = errors.New("conflict")
	ErrDepartmentInUse    = fmt.Errorf("%w: department is referenced by users", ErrConflict)
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyProvisioned = errors.New("administrator already provisioned")
)
