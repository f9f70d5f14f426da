// Package validation runs declarative struct-tag schemas and turns every
// violation into a field keyed message, all at once.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// ErrInvalid is matched by every *Error through errors.Is.
var ErrInvalid = errors.New("validation failed")

// Error collects violations keyed by the form field name.
type Error struct {
	Fields map[string][]string
	order  []string
}

// NewError returns an Error holding a single violation.
func NewError(field, message string) *Error {
	e := &Error{}
	e.Add(field, message)
	return e
}

// Add appends a violation, keeping the first-seen field order.
func (e *Error) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.order = append(e.order, field)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Messages flattens the violations in field order.
func (e *Error) Messages() []string {
	var out []string
	for _, f := range e.order {
		out = append(out, e.Fields[f]...)
	}
	return out
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalid.Error(), strings.Join(e.Messages(), "; "))
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// Validator wraps go-playground/validator with English messages and the
// email_marker rule.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New builds a Validator. emailMarker is the substring the email_marker
// rule requires; an empty marker accepts everything.
func New(emailMarker string) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("email_marker", func(fl validator.FieldLevel) bool {
		return strings.Contains(fl.Field().String(), emailMarker)
	})

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	for tag, text := range messages {
		registerMessage(v, trans, tag, text)
	}

	return &Validator{validate: v, trans: trans}
}

// {0} is the field label, {1} the rule parameter.
var messages = map[string]string{
	"required":     "{0} cannot be blank",
	"email":        "Please enter a valid email address.",
	"min":          "{0} must be at least {1} characters long",
	"eqfield":      "Passwords do not match",
	"email_marker": "You must use valid e-mail address",
	"url":          "{0} must be a valid URL",
	"gte":          "{0} must be {1} or greater",
}

func registerMessage(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, err := ut.T(tag, label(fe.Field()), fe.Param())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}

// label turns a form name such as confirmPassword into "Confirm password".
func label(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteString(strings.ToUpper(string(r)))
		case r == '_':
			b.WriteByte(' ')
		case r >= 'A' && r <= 'Z':
			b.WriteByte(' ')
			b.WriteString(strings.ToLower(string(r)))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Struct validates s and returns nil or a *Error with every violation.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}

	out := &Error{}
	for _, fe := range fieldErrs {
		out.Add(fe.Field(), fe.Translate(v.trans))
	}
	return out
}
