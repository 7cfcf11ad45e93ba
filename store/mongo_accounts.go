package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"profile-service/db"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var runInTransaction = func(ctx context.Context, client *mongo.Client, fn func(context.Context) error) error {
	session, err := client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

type MongoAccountStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	profiles *mongo.Collection
	log      *zap.Logger
}

func NewMongoAccountStore(client *mongo.Client, database *mongo.Database, log *zap.Logger) *MongoAccountStore {
	return &MongoAccountStore{
		client:   client,
		users:    database.Collection(db.UsersCollection),
		profiles: database.Collection(db.ProfilesCollection),
		log:      log,
	}
}

// DeleteAccount removes the profile and then the user. Standalone servers
// without transactions get the same deletes in order.
func (s *MongoAccountStore) DeleteAccount(ctx context.Context, userID string) error {
	err := runInTransaction(ctx, s.client, func(txCtx context.Context) error {
		return s.deleteAll(txCtx, userID)
	})
	if err != nil && isTxnNotSupported(err) {
		s.log.Warn("transactions unsupported, deleting account without one", zap.Error(err))
		err = s.deleteAll(ctx, userID)
	}
	return err
}

func (s *MongoAccountStore) deleteAll(ctx context.Context, userID string) error {
	if _, err := s.profiles.DeleteOne(ctx, bson.M{"user": userID}); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if _, err := s.users.DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func isTxnNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 20, 51, 263:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	hasAll := func(words ...string) bool {
		for _, w := range words {
			if !strings.Contains(msg, w) {
				return false
			}
		}
		return true
	}
	return hasAll("transaction", "replica set") ||
		hasAll("session", "not supported") ||
		hasAll("transaction", "session") ||
		hasAll("illegal operation")
}
