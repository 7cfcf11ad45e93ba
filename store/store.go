package store

import (
	"context"
	"errors"

	"profile-service/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrProfileNotFound = errors.New("profile not found")
	ErrEntryNotFound   = errors.New("profile entry not found")
	ErrPostNotFound    = errors.New("post not found")
	ErrAlreadyLiked    = errors.New("post already liked")
	ErrNotLiked        = errors.New("post not liked")
	ErrCommentNotFound = errors.New("comment not found")
)

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	// Create returns ErrDuplicateEmail when the email is already taken.
	Create(ctx context.Context, user models.User) error
}

// ProfileStore returns profiles with the owning user's name and avatar populated.
type ProfileStore interface {
	FindByUser(ctx context.Context, userID string) (models.Profile, error)
	List(ctx context.Context) ([]models.Profile, error)
	// Upsert applies patch to the user's profile, creating it when absent.
	Upsert(ctx context.Context, userID string, patch models.ProfilePatch) (models.Profile, error)
	AddExperience(ctx context.Context, userID string, entry models.Experience) (models.Profile, error)
	RemoveExperience(ctx context.Context, userID, entryID string) (models.Profile, error)
	AddEducation(ctx context.Context, userID string, entry models.Education) (models.Profile, error)
	RemoveEducation(ctx context.Context, userID, entryID string) (models.Profile, error)
}

type PostStore interface {
	Create(ctx context.Context, post models.Post) error
	List(ctx context.Context) ([]models.Post, error)
	Get(ctx context.Context, id string) (models.Post, error)
	Delete(ctx context.Context, id string) error
	Like(ctx context.Context, postID, userID string) ([]models.Like, error)
	Unlike(ctx context.Context, postID, userID string) ([]models.Like, error)
	AddComment(ctx context.Context, postID string, comment models.Comment) ([]models.Comment, error)
	RemoveComment(ctx context.Context, postID, commentID string) ([]models.Comment, error)
}

// AccountStore removes a user together with the profile they own.
type AccountStore interface {
	DeleteAccount(ctx context.Context, userID string) error
}

// LoginLimiter counts failed logins per key inside a sliding window.
type LoginLimiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}
