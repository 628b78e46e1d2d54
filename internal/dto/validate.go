package dto

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names / Rapporte les noms JSON
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	return v
}

// Validate checks struct tags and returns field messages / Vérifie les tags et retourne les messages par champ
// A nil map means the value is valid.
func Validate(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = message(fe)
		}
	}
	return fields
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "invalid email format"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "len":
		return fmt.Sprintf("must be %s characters", fe.Param())
	case "numeric":
		return "must contain digits only"
	case "gtefield":
		return "must be greater than or equal to " + fe.Param()
	default:
		return "is invalid"
	}
}

// ParseDate reads a lenient date; empty input yields nil / Lit une date souple, vide donne nil
// Accepts "2026-03-14", "14/03/2026", RFC 3339 and the other dateparse layouts, read as UTC.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	// Day first, as written in France / Jour en premier, comme en France
	t, err := dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(false))
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", s)
	}
	t = t.UTC()
	return &t, nil
}

// Cents converts euros to cents / Convertit des euros en centimes
func Cents(euros float64) int64 {
	return int64(math.Round(euros * 100))
}

// CentsPtr converts optional euros / Convertit des euros optionnels
func CentsPtr(euros *float64) *int64 {
	if euros == nil {
		return nil
	}
	c := Cents(*euros)
	return &c
}

// Euros converts cents to euros / Convertit des centimes en euros
func Euros(cents int64) float64 {
	return float64(cents) / 100
}

// EurosPtr converts optional cents / Convertit des centimes optionnels
func EurosPtr(cents *int64) *float64 {
	if cents == nil {
		return nil
	}
	e := Euros(*cents)
	return &e
}

// Pagination is the page block of list responses / Bloc de pagination des listes
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes total pages / Calcule le nombre de pages
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

func dateOnly(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.DateOnly)
	return &s
}
