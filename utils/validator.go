package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"foodshare-notify/models"

	"github.com/go-playground/validator/v10"
)

type ValidationService struct {
	validator *validator.Validate
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

var clockRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func NewValidationService() *ValidationService {
	v := validator.New()

	// Register custom validators
	v.RegisterValidation("coordinate", validateCoordinate)
	v.RegisterValidation("event_category", validateEventCategory)
	v.RegisterValidation("platform", validatePlatform)
	v.RegisterValidation("clock", validateClock)

	return &ValidationService{
		validator: v,
	}
}

func (vs *ValidationService) ValidateStruct(s interface{}) []ValidationError {
	var validationErrors []ValidationError

	err := vs.validator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []ValidationError{{Field: "", Tag: "invalid", Message: err.Error()}}
	}

	for _, fe := range fieldErrors {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   fmt.Sprintf("%v", fe.Value()),
			Message: vs.getErrorMessage(fe),
		})
	}

	return validationErrors
}

// ValidateEvent checks an inbound DomainEvent beyond its struct tags.
func (vs *ValidationService) ValidateEvent(event models.DomainEvent) error {
	if errs := vs.ValidateStruct(event); len(errs) > 0 {
		return NewBadRequestError(errs[0].Message)
	}
	if event.Category.IsLocationScoped() && event.Location == nil && len(event.RecipientIDs) == 0 {
		return NewBadRequestError(fmt.Sprintf("%s event needs a location or explicit recipients", event.Category))
	}
	if !event.Category.IsLocationScoped() && event.Category.Notifies() && len(event.RecipientIDs) == 0 {
		return NewBadRequestError(fmt.Sprintf("%s event needs explicit recipients", event.Category))
	}
	return nil
}

func (vs *ValidationService) getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	case "coordinate":
		return "Invalid coordinate value"
	case "event_category":
		return "Unknown event category"
	case "platform":
		return "Platform must be ios or android"
	case "clock":
		return fmt.Sprintf("%s must use HH:MM", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// Custom validation functions
func validateCoordinate(fl validator.FieldLevel) bool {
	coord := fl.Field().Float()
	fieldName := strings.ToLower(fl.FieldName())

	if strings.Contains(fieldName, "lat") {
		return coord >= -90 && coord <= 90
	}
	if strings.Contains(fieldName, "lon") || strings.Contains(fieldName, "lng") {
		return coord >= -180 && coord <= 180
	}

	return true
}

func validateEventCategory(fl validator.FieldLevel) bool {
	return models.IsKnownCategory(models.EventCategory(fl.Field().String()))
}

func validatePlatform(fl validator.FieldLevel) bool {
	switch models.Platform(fl.Field().String()) {
	case models.PlatformIOS, models.PlatformAndroid:
		return true
	default:
		return false
	}
}

func validateClock(fl validator.FieldLevel) bool {
	return ValidateTimeFormat(fl.Field().String())
}

// ValidateTimeFormat validates time format (HH:MM)
func ValidateTimeFormat(timeStr string) bool {
	return clockRegex.MatchString(timeStr)
}
