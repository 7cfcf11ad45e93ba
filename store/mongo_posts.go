package store

import (
	"context"
	"errors"
	"fmt"

	"profile-service/db"
	"profile-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoPostStore struct {
	posts *mongo.Collection
}

func NewMongoPostStore(database *mongo.Database) *MongoPostStore {
	return &MongoPostStore{posts: database.Collection(db.PostsCollection)}
}

func (s *MongoPostStore) Create(ctx context.Context, post models.Post) error {
	if post.Likes == nil {
		post.Likes = []models.Like{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	if _, err := s.posts.InsertOne(ctx, post); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *MongoPostStore) List(ctx context.Context) ([]models.Post, error) {
	cursor, err := s.posts.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return posts, nil
}

func (s *MongoPostStore) Get(ctx context.Context, id string) (models.Post, error) {
	var post models.Post
	err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Post{}, ErrPostNotFound
	}
	if err != nil {
		return models.Post{}, fmt.Errorf("find post: %w", err)
	}
	return post, nil
}

func (s *MongoPostStore) Delete(ctx context.Context, id string) error {
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (s *MongoPostStore) Like(ctx context.Context, postID, userID string) ([]models.Like, error) {
	post, err := s.update(ctx,
		bson.M{"_id": postID, "likes.user": bson.M{"$ne": userID}},
		bson.M{"$push": bson.M{"likes": bson.M{"$each": bson.A{models.Like{User: userID}}, "$position": 0}}},
		ErrAlreadyLiked)
	return post.Likes, err
}

func (s *MongoPostStore) Unlike(ctx context.Context, postID, userID string) ([]models.Like, error) {
	post, err := s.update(ctx,
		bson.M{"_id": postID, "likes.user": userID},
		bson.M{"$pull": bson.M{"likes": bson.M{"user": userID}}},
		ErrNotLiked)
	return post.Likes, err
}

func (s *MongoPostStore) AddComment(ctx context.Context, postID string, comment models.Comment) ([]models.Comment, error) {
	post, err := s.update(ctx,
		bson.M{"_id": postID},
		bson.M{"$push": bson.M{"comments": bson.M{"$each": bson.A{comment}, "$position": 0}}},
		ErrPostNotFound)
	return post.Comments, err
}

func (s *MongoPostStore) RemoveComment(ctx context.Context, postID, commentID string) ([]models.Comment, error) {
	post, err := s.update(ctx,
		bson.M{"_id": postID, "comments._id": commentID},
		bson.M{"$pull": bson.M{"comments": bson.M{"_id": commentID}}},
		ErrCommentNotFound)
	return post.Comments, err
}

// update applies a guarded update and returns the post after it. When the
// guard matches nothing the post is either missing or conflict applies.
func (s *MongoPostStore) update(ctx context.Context, filter, change bson.M, conflict error) (models.Post, error) {
	var post models.Post
	err := s.posts.FindOneAndUpdate(ctx, filter, change,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&post)
	if err == nil {
		return post, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Post{}, fmt.Errorf("update post: %w", err)
	}

	count, err := s.posts.CountDocuments(ctx, bson.M{"_id": filter["_id"]}, options.Count().SetLimit(1))
	if err != nil {
		return models.Post{}, fmt.Errorf("check post: %w", err)
	}
	if count == 0 {
		return models.Post{}, ErrPostNotFound
	}
	return models.Post{}, conflict
}
