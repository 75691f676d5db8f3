package services

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"

	"afterschool-toast/internal/models"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	errInvalid = errors.New("invalid input")

	weekdayTag  = "weekday"
	weekdayText = "{0} must only contain weekday codes Mon..Sun"

	thresholdOrderTag  = "warn_le_max"
	thresholdOrderText = "warning threshold cannot be above the maximum threshold"
)

func init() {
	validate = validator.New()
	uni := ut.New(en.New())
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(weekdayTag, weekdayValidation)
	registerTranslation(weekdayTag, weekdayText)

	validate.RegisterStructValidation(settingsStructValidation, SettingsUpdate{})
	registerTranslation(thresholdOrderTag, thresholdOrderText)
}

func registerTranslation(tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// weekdayValidation only allows the codes in models.Weekdays
func weekdayValidation(fl validator.FieldLevel) bool {
	day := fl.Field().String()
	for _, d := range models.Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// settingsStructValidation rejects a warning threshold above the maximum when both are enabled
func settingsStructValidation(sl validator.StructLevel) {
	su := sl.Current().Interface().(SettingsUpdate)
	if su.WarnThresholdEnabled && su.MaxThresholdEnabled &&
		su.WarnThreshold > 0 && su.MaxThreshold > 0 && su.WarnThreshold > su.MaxThreshold {
		sl.ReportError(su.WarnThreshold, "warnThreshold", "WarnThreshold", thresholdOrderTag, "")
	}
}

// validateStruct runs the validator and converts failures into a ValidationError
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Error: fe.Translate(translator)})
	}
	return NewValidationError(errInvalid, fields...)
}
