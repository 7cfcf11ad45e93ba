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

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	msgPostNotFound    = "Post not found"
	msgNotAuthorized   = "User not authorized"
	msgPostRemoved     = "Post removed"
	msgAlreadyLiked    = "Post already liked"
	msgNotLiked        = "Post has not yet been liked"
	msgCommentNotFound = "Comment does not exist"
)

var textRules = validation.Rules{
	validation.Required("text", "Text is required"),
}

type PostHandler struct {
	posts store.PostStore
	users store.UserStore
	log   *zap.Logger
}

func NewPostHandler(posts store.PostStore, users store.UserStore, log *zap.Logger) *PostHandler {
	return &PostHandler{posts: posts, users: users, log: log}
}

type textRequest struct {
	Text string `json:"text"`
}

// readText decodes and validates a {text} body, returning the sanitized text.
func readText(r *http.Request) (string, error) {
	var req textRequest
	if err := decodeBody(r, &req); err != nil {
		return "", err
	}
	text := utils.SanitizeText(req.Text)
	if err := checkRules(textRules, map[string]string{"text": text}); err != nil {
		return "", err
	}
	return text, nil
}

func (h *PostHandler) author(r *http.Request, userID string) (models.User, error) {
	user, err := h.users.FindByID(r.Context(), userID)
	if errors.Is(err, store.ErrUserNotFound) {
		return models.User{}, middleware.NewAppError(http.StatusBadRequest, "User not found", err)
	}
	if err != nil {
		return models.User{}, serverError(err)
	}
	return user, nil
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}
	text, err := readText(r)
	if err != nil {
		return err
	}
	user, err := h.author(r, userID)
	if err != nil {
		return err
	}

	post := models.Post{
		ID:        newID(),
		User:      userID,
		Text:      text,
		Name:      user.Name,
		Avatar:    user.Avatar,
		Likes:     []models.Like{},
		Comments:  []models.Comment{},
		CreatedAt: now().UTC(),
	}
	if err := h.posts.Create(r.Context(), post); err != nil {
		return serverError(err)
	}
	return middleware.WriteJSON(w, http.StatusOK, post)
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) error {
	posts, err := h.posts.List(r.Context())
	if err != nil {
		return serverError(err)
	}
	return middleware.WriteJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) error {
	post, err := h.find(r, mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	return middleware.WriteJSON(w, http.StatusOK, post)
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}
	post, err := h.find(r, mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	if post.User != userID {
		return middleware.NewAppError(http.StatusUnauthorized, msgNotAuthorized, nil)
	}

	if err := h.posts.Delete(r.Context(), post.ID); err != nil {
		return postError(err)
	}
	h.log.Info("post removed", zap.String("post_id", post.ID), zap.String("user_id", userID))
	return middleware.WriteMessage(w, http.StatusOK, msgPostRemoved)
}

func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}
	likes, err := h.posts.Like(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		return postError(err)
	}
	return middleware.WriteJSON(w, http.StatusOK, likes)
}

func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}
	likes, err := h.posts.Unlike(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		return postError(err)
	}
	return middleware.WriteJSON(w, http.StatusOK, likes)
}

func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}
	text, err := readText(r)
	if err != nil {
		return err
	}
	user, err := h.author(r, userID)
	if err != nil {
		return err
	}

	comment := models.Comment{
		ID:        newID(),
		User:      userID,
		Text:      text,
		Name:      user.Name,
		Avatar:    user.Avatar,
		CreatedAt: now().UTC(),
	}
	comments, err := h.posts.AddComment(r.Context(), mux.Vars(r)["id"], comment)
	if err != nil {
		return postError(err)
	}
	return middleware.WriteJSON(w, http.StatusOK, comments)
}

func (h *PostHandler) RemoveComment(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}
	vars := mux.Vars(r)
	post, err := h.find(r, vars["id"])
	if err != nil {
		return err
	}

	var comment *models.Comment
	for i := range post.Comments {
		if post.Comments[i].ID == vars["comment_id"] {
			comment = &post.Comments[i]
			break
		}
	}
	if comment == nil {
		return middleware.NewAppError(http.StatusNotFound, msgCommentNotFound, nil)
	}
	if comment.User != userID {
		return middleware.NewAppError(http.StatusUnauthorized, msgNotAuthorized, nil)
	}

	comments, err := h.posts.RemoveComment(r.Context(), post.ID, comment.ID)
	if err != nil {
		return postError(err)
	}
	return middleware.WriteJSON(w, http.StatusOK, comments)
}

func (h *PostHandler) find(r *http.Request, id string) (models.Post, error) {
	post, err := h.posts.Get(r.Context(), strings.TrimSpace(id))
	if err != nil {
		return models.Post{}, postError(err)
	}
	return post, nil
}

func postError(err error) error {
	switch {
	case errors.Is(err, store.ErrPostNotFound):
		return middleware.NewAppError(http.StatusNotFound, msgPostNotFound, err)
	case errors.Is(err, store.ErrAlreadyLiked):
		return middleware.NewAppError(http.StatusBadRequest, msgAlreadyLiked, err)
	case errors.Is(err, store.ErrNotLiked):
		return middleware.NewAppError(http.StatusBadRequest, msgNotLiked, err)
	case errors.Is(err, store.ErrCommentNotFound):
		return middleware.NewAppError(http.StatusNotFound, msgCommentNotFound, err)
	default:
		return serverError(err)
	}
}
