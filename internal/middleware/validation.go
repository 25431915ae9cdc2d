package middleware

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/asmr-studio/creator-studio/internal/model"
	"github.com/asmr-studio/creator-studio/internal/service"
)

// MaxContentLength bounds free-text request fields.
const MaxContentLength = 100000

var (
	validate *validator.Validate
	once     sync.Once
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return model.Category(fl.Field().String()).Valid()
		})
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

// Validate checks payload against its validate tags. Failures wrap service.ErrValidation.
func Validate(payload any) error {
	err := instance().Struct(payload)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %s", service.ErrValidation, err.Error())
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		messages = append(messages, fmt.Sprintf("field '%s' failed on the '%s' rule", fieldErr.Field(), fieldErr.Tag()))
	}
	return fmt.Errorf("%w: %s", service.ErrValidation, strings.Join(messages, "; "))
}

// ValidateContent checks a free-text field.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content cannot be empty", service.ErrValidation)
	}
	if len(content) > MaxContentLength {
		return fmt.Errorf("%w: content exceeds maximum length", service.ErrValidation)
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("%w: content must be valid UTF-8", service.ErrValidation)
	}
	return nil
}

// ValidateID checks that id is a UUID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid id format", service.ErrValidation)
	}
	return nil
}
