package store

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports the first field that failed validation.
type ValidationError struct {
	Field string
	Rule  string
	Param string
}

func (e *ValidationError) Error() string {
	switch e.Rule {
	case "required":
		return fmt.Sprintf("store: %s is required", e.Field)
	case "max":
		return fmt.Sprintf("store: %s must be at most %s characters", e.Field, e.Param)
	case "order":
		return fmt.Sprintf("store: %s must not be before the start date", e.Field)
	default:
		return fmt.Sprintf("store: %s is invalid (%s)", e.Field, e.Rule)
	}
}

func (s *Store) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()}
	}
	return fmt.Errorf("store: validation failed: %w", err)
}

func (s *Store) checkTask(t Task) error {
	if err := s.check(t); err != nil {
		return err
	}
	if t.StartDate != nil && t.EndDate != nil && t.EndDate.Before(*t.StartDate) {
		return &ValidationError{Field: "EndDate", Rule: "order"}
	}
	return nil
}
