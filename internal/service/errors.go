package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common service errors / Erreurs communes des services
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked due to multiple failed login attempts")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenBinding       = errors.New("refresh token binding validation failed")

	ErrNotFound          = errors.New("resource not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrNotVerified       = errors.New("compliance documents are not verified")
	ErrOfferExists       = errors.New("an offer already exists for this project")
	ErrProjectClosed     = errors.New("project does not accept offers")
	ErrAlreadyEvaluated  = errors.New("project already evaluated")
	ErrLimitReached      = errors.New("limit reached")
	ErrValidation        = errors.New("validation failed")
	ErrInternal          = errors.New("internal server error")
)

// ValidationError lists invalid input fields / Liste les champs invalides
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, ", "))
}

// Is makes errors.Is(err, ErrValidation) match / Permet errors.Is(err, ErrValidation)
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// invalid builds a single-field validation error / Construit une erreur sur un champ
func invalid(field, message string) error {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// fieldErrors accumulates validation failures / Accumule les erreurs de validation
type fieldErrors map[string]string

func (f fieldErrors) add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}
