package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"profile-service/middleware"
	"profile-service/utils"
	"profile-service/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	generateFromPassword   = bcrypt.GenerateFromPassword
	compareHashAndPassword = bcrypt.CompareHashAndPassword
	generateToken          = utils.GenerateToken
	newID                  = uuid.NewString
	now                    = time.Now
)

type JSONResponse map[string]interface{}

// decodeBody reads a JSON body into into. An empty body decodes as {} so the
// field rules report what is missing.
func decodeBody(r *http.Request, into interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(into)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return middleware.NewAppError(http.StatusBadRequest, "Invalid request payload", err)
	}
	return nil
}

func checkRules(rules validation.Rules, values map[string]string) error {
	if errs := rules.Check(values); len(errs) > 0 {
		return middleware.NewFieldErrors(errs...)
	}
	return nil
}

// requireUserID reads the identity the auth gate attached to the request.
func requireUserID(r *http.Request) (string, error) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return "", middleware.NewAppError(http.StatusUnauthorized, "No token, authorization denied", nil)
	}
	return userID, nil
}

func serverError(err error) error {
	return middleware.NewAppError(http.StatusInternalServerError, "Server Error", err)
}

// optional maps a blank string to an absent field.
func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// splitSkills turns "go, sql,,docker " into ["go","sql","docker"].
func splitSkills(raw string) []string {
	skills := []string{}
	for _, part := range strings.Split(raw, ",") {
		if skill := strings.TrimSpace(part); skill != "" {
			skills = append(skills, skill)
		}
	}
	return skills
}

// skillsField accepts either a comma separated string or a JSON array.
type skillsField string

func (s *skillsField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*s = skillsField(raw)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = skillsField(strings.Join(list, ","))
	return nil
}

var dateLayouts = []string{"2006-01-02", time.RFC3339}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseRange validates from (required) and to (optional) dates.
func parseRange(from, to string) (time.Time, *time.Time, error) {
	var errs []validation.FieldError
	start, ok := parseDate(from)
	if !ok {
		errs = append(errs, validation.FieldError{Msg: "From date must be a valid date", Param: "from", Location: "body"})
	}
	var end *time.Time
	if strings.TrimSpace(to) != "" {
		parsed, ok := parseDate(to)
		if ok {
			end = &parsed
		} else {
			errs = append(errs, validation.FieldError{Msg: "To date must be a valid date", Param: "to", Location: "body"})
		}
	}
	if len(errs) > 0 {
		return time.Time{}, nil, middleware.NewFieldErrors(errs...)
	}
	return start, end, nil
}
