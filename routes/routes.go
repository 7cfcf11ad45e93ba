package routes

import (
	"net/http"

	"profile-service/config"
	"profile-service/handlers"
	"profile-service/middleware"

	"github.com/gorilla/mux"
)

type Handlers struct {
	Auth    *handlers.AuthHandler
	Profile *handlers.ProfileHandler
	Post    *handlers.PostHandler
}

func SetupRoutes(cfg config.Config, h Handlers) *mux.Router {
	router := mux.NewRouter()
	authenticate := middleware.Authenticate(cfg.Auth)

	public := func(method, path string, handler middleware.AppHandler) {
		router.Handle(path, middleware.ErrorHandler(handler)).Methods(method)
	}
	private := func(method, path string, handler middleware.AppHandler) {
		router.Handle(path, authenticate(middleware.ErrorHandler(handler))).Methods(method)
	}

	public(http.MethodPost, "/api/users", h.Auth.Register)
	public(http.MethodPost, "/api/auth", h.Auth.Login)
	private(http.MethodGet, "/api/auth", h.Auth.CurrentUser)

	private(http.MethodGet, "/api/profile/me", h.Profile.Me)
	private(http.MethodPost, "/api/profile", h.Profile.Upsert)
	public(http.MethodGet, "/api/profile", h.Profile.List)
	public(http.MethodGet, "/api/profile/user/{user_id}", h.Profile.ByUser)
	private(http.MethodDelete, "/api/profile", h.Profile.DeleteAccount)
	private(http.MethodPut, "/api/profile/experience", h.Profile.AddExperience)
	private(http.MethodDelete, "/api/profile/experience/{exp_id}", h.Profile.RemoveExperience)
	private(http.MethodPut, "/api/profile/education", h.Profile.AddEducation)
	private(http.MethodDelete, "/api/profile/education/{edu_id}", h.Profile.RemoveEducation)

	private(http.MethodPost, "/api/posts", h.Post.Create)
	private(http.MethodGet, "/api/posts", h.Post.List)
	private(http.MethodGet, "/api/posts/{id}", h.Post.Get)
	private(http.MethodDelete, "/api/posts/{id}", h.Post.Delete)
	private(http.MethodPut, "/api/posts/like/{id}", h.Post.Like)
	private(http.MethodPut, "/api/posts/unlike/{id}", h.Post.Unlike)
	private(http.MethodPost, "/api/posts/comment/{id}", h.Post.AddComment)
	private(http.MethodDelete, "/api/posts/comment/{id}/{comment_id}", h.Post.RemoveComment)

	public(http.MethodGet, "/health", handlers.Health)

	return router
}
