package handlers

import (
	"errors"
	"net/http"
	"strings"

	"profile-service/config"
	"profile-service/middleware"
	"profile-service/models"
	"profile-service/store"
	"profile-service/utils"
	"profile-service/validation"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	registerRules = validation.Rules{
		validation.Required("name", "Name is required"),
		validation.Email("email", "Please include a valid email"),
		validation.MinLength("password", 6, "Please enter a password with 6 or more characters"),
		validation.MaxBytes("password", maxPasswordBytes, "Please enter a password with 72 or fewer bytes"),
	}
	loginRules = validation.Rules{
		validation.Email("email", "Please include a valid email"),
		validation.Required("password", "Password is required"),
	}
)

// bcrypt only hashes the first 72 bytes and rejects longer input.
const maxPasswordBytes = 72

const (
	msgUserExists         = "User already exists"
	msgInvalidCredentials = "Invalid Credentials"
	msgTooManyAttempts    = "Too many login attempts, please try again later"
)

type AuthHandler struct {
	cfg     config.AuthConfig
	users   store.UserStore
	limiter store.LoginLimiter
	log     *zap.Logger
}

// NewAuthHandler wires registration and login. limiter may be nil, which
// disables failed-login throttling.
func NewAuthHandler(cfg config.AuthConfig, users store.UserStore, limiter store.LoginLimiter, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, limiter: limiter, log: log}
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) error {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	email := normalizeEmail(req.Email)
	if err := checkRules(registerRules, map[string]string{
		"name":     strings.TrimSpace(req.Name),
		"email":    email,
		"password": req.Password,
	}); err != nil {
		return err
	}

	_, err := h.users.FindByEmail(r.Context(), email)
	if err == nil {
		return middleware.NewFieldErrors(validation.Error(msgUserExists))
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return serverError(err)
	}

	cost := h.cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := generateFromPassword([]byte(req.Password), cost)
	if err != nil {
		return serverError(err)
	}

	user := models.User{
		ID:           newID(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		Avatar:       utils.GravatarURL(email),
		CreatedAt:    now().UTC(),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return middleware.NewFieldErrors(validation.Error(msgUserExists))
		}
		return serverError(err)
	}
	h.log.Info("user registered", zap.String("user_id", user.ID))

	return h.respondWithToken(w, http.StatusCreated, user.ID)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) error {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	email := normalizeEmail(req.Email)
	if err := checkRules(loginRules, map[string]string{"email": email, "password": req.Password}); err != nil {
		return err
	}

	if h.limiter != nil {
		blocked, err := h.limiter.Blocked(r.Context(), email)
		if err != nil {
			h.log.Warn("login limiter unavailable", zap.Error(err))
		}
		if blocked {
			return middleware.NewAppError(http.StatusTooManyRequests, msgTooManyAttempts, nil)
		}
	}

	user, err := h.users.FindByEmail(r.Context(), email)
	if errors.Is(err, store.ErrUserNotFound) {
		h.recordFailure(r, email)
		return middleware.NewFieldErrors(validation.Error(msgInvalidCredentials))
	}
	if err != nil {
		return serverError(err)
	}

	if err := compareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.recordFailure(r, email)
		return middleware.NewFieldErrors(validation.Error(msgInvalidCredentials))
	}

	if h.limiter != nil {
		if err := h.limiter.Reset(r.Context(), email); err != nil {
			h.log.Warn("login limiter reset failed", zap.Error(err))
		}
	}

	return h.respondWithToken(w, http.StatusOK, user.ID)
}

func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if errors.Is(err, store.ErrUserNotFound) {
		return middleware.NewAppError(http.StatusBadRequest, "User not found", err)
	}
	if err != nil {
		return serverError(err)
	}
	return middleware.WriteJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) recordFailure(r *http.Request, email string) {
	if h.limiter == nil {
		return
	}
	if err := h.limiter.RecordFailure(r.Context(), email); err != nil {
		h.log.Warn("login limiter record failed", zap.Error(err))
	}
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, userID string) error {
	token, err := generateToken(userID, h.cfg.TokenTTL, h.cfg.Issuer, h.cfg.TokenSecret)
	if err != nil {
		return serverError(err)
	}
	return middleware.WriteJSON(w, status, JSONResponse{"token": token})
}
