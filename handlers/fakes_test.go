package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"profile-service/config"
	"profile-service/middleware"
	"profile-service/models"
	"profile-service/store"
	"profile-service/utils"
	"profile-service/validation"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	users     map[string]models.User
	calls     int
	createErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User)}
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.calls++
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, store.ErrUserNotFound
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.calls++
	user, ok := s.users[id]
	if !ok {
		return models.User{}, store.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeUserStore) Create(_ context.Context, user models.User) error {
	s.calls++
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return store.ErrDuplicateEmail
		}
	}
	s.users[user.ID] = user
	return nil
}

type fakeProfileStore struct {
	profiles map[string]*models.Profile
	users    *fakeUserStore
	created  []string
}

func newFakeProfileStore(users *fakeUserStore) *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[string]*models.Profile), users: users}
}

func (s *fakeProfileStore) view(p *models.Profile) models.Profile {
	out := *p
	out.Skills = append([]string{}, p.Skills...)
	out.Experience = append([]models.Experience{}, p.Experience...)
	out.Education = append([]models.Education{}, p.Education...)
	if user, ok := s.users.users[p.User.ID]; ok {
		out.User = models.UserSummary{ID: user.ID, Name: user.Name, Avatar: user.Avatar}
	}
	return out
}

func (s *fakeProfileStore) FindByUser(_ context.Context, userID string) (models.Profile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, store.ErrProfileNotFound
	}
	return s.view(p), nil
}

func (s *fakeProfileStore) List(_ context.Context) ([]models.Profile, error) {
	out := []models.Profile{}
	for _, userID := range s.created {
		if p, ok := s.profiles[userID]; ok {
			out = append(out, s.view(p))
		}
	}
	return out, nil
}

func (s *fakeProfileStore) Upsert(_ context.Context, userID string, patch models.ProfilePatch) (models.Profile, error) {
	if _, ok := s.users.users[userID]; !ok {
		return models.Profile{}, store.ErrUserNotFound
	}
	p, ok := s.profiles[userID]
	if !ok {
		p = &models.Profile{
			ID:         "profile-" + userID,
			User:       models.UserSummary{ID: userID},
			Skills:     []string{},
			Experience: []models.Experience{},
			Education:  []models.Education{},
			CreatedAt:  time.Now(),
		}
		s.profiles[userID] = p
		s.created = append(s.created, userID)
	}
	patch.Apply(p)
	return s.view(p), nil
}

func (s *fakeProfileStore) AddExperience(_ context.Context, userID string, entry models.Experience) (models.Profile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, store.ErrProfileNotFound
	}
	p.Experience = append([]models.Experience{entry}, p.Experience...)
	return s.view(p), nil
}

func (s *fakeProfileStore) RemoveExperience(_ context.Context, userID, entryID string) (models.Profile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, store.ErrProfileNotFound
	}
	for i, entry := range p.Experience {
		if entry.ID == entryID {
			p.Experience = append(p.Experience[:i:i], p.Experience[i+1:]...)
			return s.view(p), nil
		}
	}
	return models.Profile{}, store.ErrEntryNotFound
}

func (s *fakeProfileStore) AddEducation(_ context.Context, userID string, entry models.Education) (models.Profile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, store.ErrProfileNotFound
	}
	p.Education = append([]models.Education{entry}, p.Education...)
	return s.view(p), nil
}

func (s *fakeProfileStore) RemoveEducation(_ context.Context, userID, entryID string) (models.Profile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, store.ErrProfileNotFound
	}
	for i, entry := range p.Education {
		if entry.ID == entryID {
			p.Education = append(p.Education[:i:i], p.Education[i+1:]...)
			return s.view(p), nil
		}
	}
	return models.Profile{}, store.ErrEntryNotFound
}

type fakeAccountStore struct {
	users    *fakeUserStore
	profiles *fakeProfileStore
	err      error
}

func (s *fakeAccountStore) DeleteAccount(_ context.Context, userID string) error {
	if s.err != nil {
		return s.err
	}
	delete(s.profiles.profiles, userID)
	delete(s.users.users, userID)
	return nil
}

type fakePostStore struct {
	posts map[string]*models.Post
	order []string
}

func newFakePostStore() *fakePostStore {
	return &fakePostStore{posts: make(map[string]*models.Post)}
}

func (s *fakePostStore) Create(_ context.Context, post models.Post) error {
	s.posts[post.ID] = &post
	s.order = append([]string{post.ID}, s.order...)
	return nil
}

func (s *fakePostStore) List(_ context.Context) ([]models.Post, error) {
	out := []models.Post{}
	for _, id := range s.order {
		if p, ok := s.posts[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakePostStore) Get(_ context.Context, id string) (models.Post, error) {
	p, ok := s.posts[id]
	if !ok {
		return models.Post{}, store.ErrPostNotFound
	}
	return *p, nil
}

func (s *fakePostStore) Delete(_ context.Context, id string) error {
	if _, ok := s.posts[id]; !ok {
		return store.ErrPostNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *fakePostStore) Like(_ context.Context, postID, userID string) ([]models.Like, error) {
	p, ok := s.posts[postID]
	if !ok {
		return nil, store.ErrPostNotFound
	}
	for _, like := range p.Likes {
		if like.User == userID {
			return nil, store.ErrAlreadyLiked
		}
	}
	p.Likes = append([]models.Like{{User: userID}}, p.Likes...)
	return p.Likes, nil
}

func (s *fakePostStore) Unlike(_ context.Context, postID, userID string) ([]models.Like, error) {
	p, ok := s.posts[postID]
	if !ok {
		return nil, store.ErrPostNotFound
	}
	for i, like := range p.Likes {
		if like.User == userID {
			p.Likes = append(p.Likes[:i:i], p.Likes[i+1:]...)
			return p.Likes, nil
		}
	}
	return nil, store.ErrNotLiked
}

func (s *fakePostStore) AddComment(_ context.Context, postID string, comment models.Comment) ([]models.Comment, error) {
	p, ok := s.posts[postID]
	if !ok {
		return nil, store.ErrPostNotFound
	}
	p.Comments = append([]models.Comment{comment}, p.Comments...)
	return p.Comments, nil
}

func (s *fakePostStore) RemoveComment(_ context.Context, postID, commentID string) ([]models.Comment, error) {
	p, ok := s.posts[postID]
	if !ok {
		return nil, store.ErrPostNotFound
	}
	for i, comment := range p.Comments {
		if comment.ID == commentID {
			p.Comments = append(p.Comments[:i:i], p.Comments[i+1:]...)
			return p.Comments, nil
		}
	}
	return nil, store.ErrCommentNotFound
}

type fakeLimiter struct {
	blocked  bool
	err      error
	failures int
	resets   int
}

func (l *fakeLimiter) Blocked(context.Context, string) (bool, error) {
	return l.blocked, l.err
}

func (l *fakeLimiter) RecordFailure(context.Context, string) error {
	l.failures++
	return l.err
}

func (l *fakeLimiter) Reset(context.Context, string) error {
	l.resets++
	return l.err
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		TokenSecret: []byte("test-secret"),
		Issuer:      "test-issuer",
		TokenTTL:    time.Hour,
		HeaderName:  "x-auth-token",
		BcryptCost:  bcrypt.MinCost,
	}
}

func seedUser(t *testing.T, users *fakeUserStore, id, name, email, password string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{ID: id, Name: name, Email: email, PasswordHash: string(hash), Avatar: utils.GravatarURL(email), CreatedAt: time.Now()}
	users.users[id] = user
	return user
}

func newRequest(method, target, body, userID string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		claims := &utils.Claims{User: utils.TokenUser{ID: userID}}
		req = req.WithContext(middleware.ContextWithClaims(req.Context(), claims))
	}
	return req
}

func executeRequest(handler middleware.AppHandler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	middleware.ErrorHandler(handler).ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Msg string `json:"msg"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Msg
}

func decodeFieldErrors(t *testing.T, rec *httptest.ResponseRecorder) []validation.FieldError {
	t.Helper()
	var body struct {
		Errors []validation.FieldError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Errors
}

func messages(errs []validation.FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Msg)
	}
	return out
}
