package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"profile-service/models"
)

const selectPost = "SELECT id, user_id, text, name, avatar, likes, comments, created_at FROM posts"

type PostgresPostStore struct {
	db *sql.DB
}

func NewPostgresPostStore(db *sql.DB) *PostgresPostStore {
	return &PostgresPostStore{db: db}
}

func scanPost(row rowScanner) (models.Post, error) {
	var (
		post            models.Post
		likes, comments []byte
	)
	if err := row.Scan(&post.ID, &post.User, &post.Text, &post.Name, &post.Avatar, &likes, &comments, &post.CreatedAt); err != nil {
		return models.Post{}, err
	}
	if err := unmarshalColumn(likes, &post.Likes); err != nil {
		return models.Post{}, fmt.Errorf("decode likes: %w", err)
	}
	if err := unmarshalColumn(comments, &post.Comments); err != nil {
		return models.Post{}, fmt.Errorf("decode comments: %w", err)
	}
	if post.Likes == nil {
		post.Likes = []models.Like{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	return post, nil
}

func (s *PostgresPostStore) Create(ctx context.Context, post models.Post) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO posts (id, user_id, text, name, avatar, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		post.ID, post.User, post.Text, post.Name, post.Avatar, post.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *PostgresPostStore) List(ctx context.Context) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, selectPost+" ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (s *PostgresPostStore) Get(ctx context.Context, id string) (models.Post, error) {
	if !validID(id) {
		return models.Post{}, ErrPostNotFound
	}
	post, err := scanPost(s.db.QueryRowContext(ctx, selectPost+" WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Post{}, ErrPostNotFound
	}
	if err != nil {
		return models.Post{}, fmt.Errorf("query post: %w", err)
	}
	return post, nil
}

func (s *PostgresPostStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrPostNotFound
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (s *PostgresPostStore) Like(ctx context.Context, postID, userID string) ([]models.Like, error) {
	var likes []models.Like
	err := s.updateArray(ctx, &likes, `UPDATE posts
	SET likes = jsonb_build_array(jsonb_build_object('user', $2::text)) || likes
	WHERE id = $1 AND NOT likes @> jsonb_build_array(jsonb_build_object('user', $2::text))
	RETURNING likes`, postID, userID)
	return likes, s.resolveMiss(ctx, err, postID, ErrAlreadyLiked)
}

func (s *PostgresPostStore) Unlike(ctx context.Context, postID, userID string) ([]models.Like, error) {
	var likes []models.Like
	err := s.updateArray(ctx, &likes, `UPDATE posts
	SET likes = COALESCE((
		SELECT jsonb_agg(l ORDER BY ord) FROM jsonb_array_elements(likes) WITH ORDINALITY AS t(l, ord)
		WHERE l->>'user' <> $2
	), '[]'::jsonb)
	WHERE id = $1 AND likes @> jsonb_build_array(jsonb_build_object('user', $2::text))
	RETURNING likes`, postID, userID)
	return likes, s.resolveMiss(ctx, err, postID, ErrNotLiked)
}

func (s *PostgresPostStore) AddComment(ctx context.Context, postID string, comment models.Comment) ([]models.Comment, error) {
	encoded, err := json.Marshal([]models.Comment{comment})
	if err != nil {
		return nil, fmt.Errorf("encode comment: %w", err)
	}
	var comments []models.Comment
	err = s.updateArray(ctx, &comments,
		"UPDATE posts SET comments = $2::jsonb || comments WHERE id = $1 RETURNING comments",
		postID, string(encoded))
	if errors.Is(err, errNoMatch) {
		return nil, ErrPostNotFound
	}
	return comments, err
}

func (s *PostgresPostStore) RemoveComment(ctx context.Context, postID, commentID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.updateArray(ctx, &comments, `UPDATE posts
	SET comments = COALESCE((
		SELECT jsonb_agg(c ORDER BY ord) FROM jsonb_array_elements(comments) WITH ORDINALITY AS t(c, ord)
		WHERE c->>'_id' <> $2
	), '[]'::jsonb)
	WHERE id = $1 AND comments @> jsonb_build_array(jsonb_build_object('_id', $2::text))
	RETURNING comments`, postID, commentID)
	return comments, s.resolveMiss(ctx, err, postID, ErrCommentNotFound)
}

var errNoMatch = errors.New("no post matched")

// updateArray runs a guarded single-row update returning one jsonb array column.
func (s *PostgresPostStore) updateArray(ctx context.Context, into interface{}, query string, postID string, arg string) error {
	if !validID(postID) {
		return errNoMatch
	}
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, postID, arg).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return errNoMatch
	}
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if err := unmarshalColumn(raw, into); err != nil {
		return fmt.Errorf("decode post array: %w", err)
	}
	return nil
}

// resolveMiss turns a guarded update that matched nothing into either
// ErrPostNotFound or the caller's conflict error.
func (s *PostgresPostStore) resolveMiss(ctx context.Context, err error, postID string, conflict error) error {
	if !errors.Is(err, errNoMatch) {
		return err
	}
	if !validID(postID) {
		return ErrPostNotFound
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)", postID).Scan(&exists); err != nil {
		return fmt.Errorf("check post: %w", err)
	}
	if exists {
		return conflict
	}
	return ErrPostNotFound
}
