package handlers

import (
	"errors"
	"net/http"
	"strings"

	"profile-service/middleware"
	"profile-service/models"
	"profile-service/store"
	"profile-service/utils"
	"profile-service/validation"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	msgNoProfile          = "There is no profile for this user"
	msgProfileNotFound    = "Profile not found"
	msgExperienceNotFound = "Experience not found"
	msgEducationNotFound  = "Education not found"
	msgUserDeleted        = "User deleted"
)

var (
	profileRules = validation.Rules{
		validation.Required("status", "Status is required"),
		validation.Required("skills", "Skills is required"),
		validation.OptionalURL("website", "Please include a valid URL"),
	}
	experienceRules = validation.Rules{
		validation.Required("title", "Title is required"),
		validation.Required("company", "Company is required"),
		validation.Required("from", "From date is required"),
	}
	educationRules = validation.Rules{
		validation.Required("school", "School is required"),
		validation.Required("degree", "Degree is required"),
		validation.Required("fieldofstudy", "Field of study is required"),
		validation.Required("from", "From date is required"),
	}
)

type ProfileHandler struct {
	profiles store.ProfileStore
	accounts store.AccountStore
	log      *zap.Logger
}

func NewProfileHandler(profiles store.ProfileStore, accounts store.AccountStore, log *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, accounts: accounts, log: log}
}

type profileRequest struct {
	Company        string      `json:"company"`
	Website        string      `json:"website"`
	Location       string      `json:"location"`
	Status         string      `json:"status"`
	Bio            string      `json:"bio"`
	GitHubUsername string      `json:"githubusername"`
	Skills         skillsField `json:"skills"`
	YouTube        string      `json:"youtube"`
	Twitter        string      `json:"twitter"`
	Facebook       string      `json:"facebook"`
	LinkedIn       string      `json:"linkedin"`
	Instagram      string      `json:"instagram"`
}

// patch builds the partial update: blank fields are absent, present ones overwrite.
func (req profileRequest) patch(skills []string) models.ProfilePatch {
	patch := models.ProfilePatch{
		Company:        optional(req.Company),
		Website:        optional(req.Website),
		Location:       optional(req.Location),
		Status:         optional(req.Status),
		Bio:            optional(utils.SanitizeText(req.Bio)),
		GitHubUsername: optional(req.GitHubUsername),
		Social: models.SocialPatch{
			YouTube:   optional(req.YouTube),
			Twitter:   optional(req.Twitter),
			Facebook:  optional(req.Facebook),
			LinkedIn:  optional(req.LinkedIn),
			Instagram: optional(req.Instagram),
		},
	}
	if len(skills) > 0 {
		patch.Skills = skills
	}
	return patch
}

func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}

	profile, err := h.profiles.FindByUser(r.Context(), userID)
	if errors.Is(err, store.ErrProfileNotFound) {
		return middleware.NewAppError(http.StatusBadRequest, msgNoProfile, err)
	}
	if err != nil {
		return serverError(err)
	}
	return middleware.WriteJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Upsert(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}

	var req profileRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	skills := splitSkills(string(req.Skills))
	if err := checkRules(profileRules, map[string]string{
		"status":  strings.TrimSpace(req.Status),
		"skills":  strings.Join(skills, ","),
		"website": strings.TrimSpace(req.Website),
	}); err != nil {
		return err
	}

	profile, err := h.profiles.Upsert(r.Context(), userID, req.patch(skills))
	if errors.Is(err, store.ErrUserNotFound) {
		return middleware.NewAppError(http.StatusBadRequest, "User not found", err)
	}
	if err != nil {
		return serverError(err)
	}
	return middleware.WriteJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) error {
	profiles, err := h.profiles.List(r.Context())
	if err != nil {
		return serverError(err)
	}
	return middleware.WriteJSON(w, http.StatusOK, profiles)
}

func (h *ProfileHandler) ByUser(w http.ResponseWriter, r *http.Request) error {
	userID := mux.Vars(r)["user_id"]
	if _, err := uuid.Parse(userID); err != nil {
		return middleware.NewAppError(http.StatusBadRequest, msgProfileNotFound, err)
	}

	profile, err := h.profiles.FindByUser(r.Context(), userID)
	if errors.Is(err, store.ErrProfileNotFound) {
		return middleware.NewAppError(http.StatusBadRequest, msgProfileNotFound, err)
	}
	if err != nil {
		return serverError(err)
	}
	return middleware.WriteJSON(w, http.StatusOK, profile)
}

// DeleteAccount removes the caller's profile and user record. Their posts stay.
func (h *ProfileHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}

	if err := h.accounts.DeleteAccount(r.Context(), userID); err != nil {
		return serverError(err)
	}
	h.log.Info("account deleted", zap.String("user_id", userID))
	return middleware.WriteMessage(w, http.StatusOK, msgUserDeleted)
}

type experienceRequest struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	From        string `json:"from"`
	To          string `json:"to"`
	Current     bool   `json:"current"`
	Description string `json:"description"`
}

func (h *ProfileHandler) AddExperience(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}

	var req experienceRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if err := checkRules(experienceRules, map[string]string{
		"title":   strings.TrimSpace(req.Title),
		"company": strings.TrimSpace(req.Company),
		"from":    strings.TrimSpace(req.From),
	}); err != nil {
		return err
	}
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return err
	}

	entry := models.Experience{
		ID:          newID(),
		Title:       strings.TrimSpace(req.Title),
		Company:     strings.TrimSpace(req.Company),
		Location:    strings.TrimSpace(req.Location),
		From:        from,
		To:          to,
		Current:     req.Current,
		Description: utils.SanitizeText(req.Description),
	}
	profile, err := h.profiles.AddExperience(r.Context(), userID, entry)
	return h.respondWithProfile(w, profile, err, msgExperienceNotFound)
}

func (h *ProfileHandler) RemoveExperience(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}

	profile, err := h.profiles.RemoveExperience(r.Context(), userID, mux.Vars(r)["exp_id"])
	return h.respondWithProfile(w, profile, err, msgExperienceNotFound)
}

type educationRequest struct {
	School       string `json:"school"`
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"fieldofstudy"`
	From         string `json:"from"`
	To           string `json:"to"`
	Current      bool   `json:"current"`
	Description  string `json:"description"`
}

func (h *ProfileHandler) AddEducation(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}

	var req educationRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if err := checkRules(educationRules, map[string]string{
		"school":       strings.TrimSpace(req.School),
		"degree":       strings.TrimSpace(req.Degree),
		"fieldofstudy": strings.TrimSpace(req.FieldOfStudy),
		"from":         strings.TrimSpace(req.From),
	}); err != nil {
		return err
	}
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return err
	}

	entry := models.Education{
		ID:           newID(),
		School:       strings.TrimSpace(req.School),
		Degree:       strings.TrimSpace(req.Degree),
		FieldOfStudy: strings.TrimSpace(req.FieldOfStudy),
		From:         from,
		To:           to,
		Current:      req.Current,
		Description:  utils.SanitizeText(req.Description),
	}
	profile, err := h.profiles.AddEducation(r.Context(), userID, entry)
	return h.respondWithProfile(w, profile, err, msgEducationNotFound)
}

func (h *ProfileHandler) RemoveEducation(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}

	profile, err := h.profiles.RemoveEducation(r.Context(), userID, mux.Vars(r)["edu_id"])
	return h.respondWithProfile(w, profile, err, msgEducationNotFound)
}

// respondWithProfile maps the outcome of a sub-resource change to a response.
func (h *ProfileHandler) respondWithProfile(w http.ResponseWriter, profile models.Profile, err error, entryMissing string) error {
	switch {
	case err == nil:
		return middleware.WriteJSON(w, http.StatusOK, profile)
	case errors.Is(err, store.ErrProfileNotFound):
		return middleware.NewAppError(http.StatusBadRequest, msgNoProfile, err)
	case errors.Is(err, store.ErrEntryNotFound):
		return middleware.NewAppError(http.StatusNotFound, entryMissing, err)
	default:
		return serverError(err)
	}
}
