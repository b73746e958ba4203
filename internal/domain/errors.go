package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is the parent of every input-validation failure.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidID           = fmt.Errorf("%w: invalid id", ErrValidation)
	ErrInvalidTitle        = fmt.Errorf("%w: title is required", ErrValidation)
	ErrInvalidDescription  = fmt.Errorf("%w: description is required", ErrValidation)
	ErrInvalidPriority     = fmt.Errorf("%w: invalid priority", ErrValidation)
	ErrInvalidStatus       = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrInvalidHours        = fmt.Errorf("%w: invalid hours", ErrValidation)
	ErrInvalidUsername     = fmt.Errorf("%w: invalid username", ErrValidation)
	ErrInvalidPassword     = fmt.Errorf("%w: invalid password", ErrValidation)
	ErrInvalidRole         = fmt.Errorf("%w: invalid role", ErrValidation)
	ErrInvalidUserStatus   = fmt.Errorf("%w: invalid user status", ErrValidation)
	ErrInvalidEmail        = fmt.Errorf("%w: invalid email", ErrValidation)
	ErrInvalidName         = fmt.Errorf("%w: invalid name", ErrValidation)
	ErrInvalidText         = fmt.Errorf("%w: text is required", ErrValidation)
	ErrInvalidChannel      = fmt.Errorf("%w: invalid reminder channel", ErrValidation)
	ErrInvalidReminderTime = fmt.Errorf("%w: reminder time is required", ErrValidation)
	ErrInvalidAction       = fmt.Errorf("%w: invalid audit action", ErrValidation)
	ErrSelfDependency      = fmt.Errorf("%w: activity cannot depend on itself", ErrValidation)
)

// Business-rule violations. Callers resolve the underlying state and retry.
var (
	ErrDependencyUnmet = errors.New("dependency unmet")
	ErrCycle           = errors.New("dependency cycle")
)
