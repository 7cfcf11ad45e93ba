// Package validation runs declarative per-route field checks before a
// handler body executes.
package validation

import (
	"strconv"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		panic(err)
	}
	return v
}

// maxBytes limits the encoded length; the built-in max tag counts runes.
func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// Rule checks one request field against a validator tag and reports Message
// when the check fails.
type Rule struct {
	Field   string
	Tag     string
	Message string
}

type Rules []Rule

// FieldError is the client-facing shape of a single failed check.
type FieldError struct {
	Msg      string `json:"msg"`
	Param    string `json:"param,omitempty"`
	Location string `json:"location,omitempty"`
}

func Required(field, message string) Rule {
	return Rule{Field: field, Tag: "required", Message: message}
}

func Email(field, message string) Rule {
	return Rule{Field: field, Tag: "required,email", Message: message}
}

func MinLength(field string, n int, message string) Rule {
	return Rule{Field: field, Tag: "min=" + strconv.Itoa(n), Message: message}
}

func MaxBytes(field string, n int, message string) Rule {
	return Rule{Field: field, Tag: "maxbytes=" + strconv.Itoa(n), Message: message}
}

// OptionalURL accepts an empty value or a well-formed absolute URL.
func OptionalURL(field, message string) Rule {
	return Rule{Field: field, Tag: "omitempty,url", Message: message}
}

// Check evaluates every rule and aggregates all failures in rule order.
func (rs Rules) Check(values map[string]string) []FieldError {
	var errs []FieldError
	for _, rule := range rs {
		if err := validate.Var(values[rule.Field], rule.Tag); err != nil {
			errs = append(errs, FieldError{Msg: rule.Message, Param: rule.Field, Location: "body"})
		}
	}
	return errs
}

// Error builds a field-less error for business failures that share the
// validation response shape.
func Error(message string) FieldError {
	return FieldError{Msg: message}
}
