package store

import (
	"context"
	"fmt"
	"time"

	"profile-service/db"
	"profile-service/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// profileDoc is the stored profile shape; owner is filled by the users lookup.
type profileDoc struct {
	ID             string              `bson:"_id"`
	User           string              `bson:"user"`
	Company        string              `bson:"company,omitempty"`
	Website        string              `bson:"website,omitempty"`
	Location       string              `bson:"location,omitempty"`
	Status         string              `bson:"status,omitempty"`
	Bio            string              `bson:"bio,omitempty"`
	GitHubUsername string              `bson:"githubusername,omitempty"`
	Skills         []string            `bson:"skills"`
	Social         models.Social       `bson:"social"`
	Experience     []models.Experience `bson:"experience"`
	Education      []models.Education  `bson:"education"`
	CreatedAt      time.Time           `bson:"date"`
	Owner          models.UserSummary  `bson:"owner"`
}

func (d profileDoc) toModel() models.Profile {
	profile := models.Profile{
		ID:             d.ID,
		User:           d.Owner,
		Company:        d.Company,
		Website:        d.Website,
		Location:       d.Location,
		Status:         d.Status,
		Bio:            d.Bio,
		GitHubUsername: d.GitHubUsername,
		Skills:         d.Skills,
		Social:         d.Social,
		Experience:     d.Experience,
		Education:      d.Education,
		CreatedAt:      d.CreatedAt,
	}
	if profile.User.ID == "" {
		profile.User.ID = d.User
	}
	if profile.Skills == nil {
		profile.Skills = []string{}
	}
	if profile.Experience == nil {
		profile.Experience = []models.Experience{}
	}
	if profile.Education == nil {
		profile.Education = []models.Education{}
	}
	return profile
}

type MongoProfileStore struct {
	profiles *mongo.Collection
	users    *mongo.Collection
	now      func() time.Time
}

func NewMongoProfileStore(database *mongo.Database) *MongoProfileStore {
	return &MongoProfileStore{
		profiles: database.Collection(db.ProfilesCollection),
		users:    database.Collection(db.UsersCollection),
		now:      time.Now,
	}
}

func populated(stages ...bson.D) mongo.Pipeline {
	pipeline := mongo.Pipeline(stages)
	return append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: db.UsersCollection},
			{Key: "localField", Value: "user"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "owner"},
		}}},
		bson.D{{Key: "$unwind", Value: "$owner"}},
	)
}

func (s *MongoProfileStore) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]models.Profile, error) {
	cursor, err := s.profiles.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate profiles: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []profileDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	profiles := make([]models.Profile, 0, len(docs))
	for _, doc := range docs {
		profiles = append(profiles, doc.toModel())
	}
	return profiles, nil
}

func (s *MongoProfileStore) FindByUser(ctx context.Context, userID string) (models.Profile, error) {
	profiles, err := s.aggregate(ctx, populated(bson.D{{Key: "$match", Value: bson.M{"user": userID}}}))
	if err != nil {
		return models.Profile{}, err
	}
	if len(profiles) == 0 {
		return models.Profile{}, ErrProfileNotFound
	}
	return profiles[0], nil
}

func (s *MongoProfileStore) List(ctx context.Context) ([]models.Profile, error) {
	return s.aggregate(ctx, populated(bson.D{{Key: "$sort", Value: bson.D{{Key: "date", Value: 1}}}}))
}

func profileUpdate(patch models.ProfilePatch, id string, now time.Time) bson.M {
	set := bson.M{}
	for field, value := range patch.Scalars() {
		set[field] = value
	}
	if patch.Skills != nil {
		set["skills"] = patch.Skills
	}
	for name, link := range patch.Social.Links() {
		set["social."+name] = link
	}

	setOnInsert := bson.M{
		"_id":        id,
		"date":       now,
		"experience": bson.A{},
		"education":  bson.A{},
	}
	if patch.Skills == nil {
		setOnInsert["skills"] = bson.A{}
	}

	update := bson.M{"$setOnInsert": setOnInsert}
	if len(set) > 0 {
		update["$set"] = set
	}
	return update
}

// Upsert refuses to create a profile for a user that no longer exists, since
// the populated read could never return it.
func (s *MongoProfileStore) Upsert(ctx context.Context, userID string, patch models.ProfilePatch) (models.Profile, error) {
	owners, err := s.users.CountDocuments(ctx, bson.M{"_id": userID}, options.Count().SetLimit(1))
	if err != nil {
		return models.Profile{}, fmt.Errorf("check profile owner: %w", err)
	}
	if owners == 0 {
		return models.Profile{}, ErrUserNotFound
	}

	filter := bson.M{"user": userID}
	update := profileUpdate(patch, uuid.NewString(), s.now().UTC())
	opts := options.Update().SetUpsert(true)

	_, err = s.profiles.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// a concurrent upsert created the profile first; the retry matches it
		_, err = s.profiles.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return s.FindByUser(ctx, userID)
}

func (s *MongoProfileStore) AddExperience(ctx context.Context, userID string, entry models.Experience) (models.Profile, error) {
	return s.prepend(ctx, sectionExperience, userID, entry)
}

func (s *MongoProfileStore) RemoveExperience(ctx context.Context, userID, entryID string) (models.Profile, error) {
	return s.remove(ctx, sectionExperience, userID, entryID)
}

func (s *MongoProfileStore) AddEducation(ctx context.Context, userID string, entry models.Education) (models.Profile, error) {
	return s.prepend(ctx, sectionEducation, userID, entry)
}

func (s *MongoProfileStore) RemoveEducation(ctx context.Context, userID, entryID string) (models.Profile, error) {
	return s.remove(ctx, sectionEducation, userID, entryID)
}

func (s *MongoProfileStore) prepend(ctx context.Context, section, userID string, entry interface{}) (models.Profile, error) {
	res, err := s.profiles.UpdateOne(ctx,
		bson.M{"user": userID},
		bson.M{"$push": bson.M{section: bson.M{"$each": bson.A{entry}, "$position": 0}}},
	)
	if err != nil {
		return models.Profile{}, fmt.Errorf("add %s: %w", section, err)
	}
	if res.MatchedCount == 0 {
		return models.Profile{}, ErrProfileNotFound
	}
	return s.FindByUser(ctx, userID)
}

func (s *MongoProfileStore) remove(ctx context.Context, section, userID, entryID string) (models.Profile, error) {
	res, err := s.profiles.UpdateOne(ctx,
		bson.M{"user": userID, section + "._id": entryID},
		bson.M{"$pull": bson.M{section: bson.M{"_id": entryID}}},
	)
	if err != nil {
		return models.Profile{}, fmt.Errorf("remove %s: %w", section, err)
	}

	profile, err := s.FindByUser(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	if res.MatchedCount == 0 {
		return models.Profile{}, ErrEntryNotFound
	}
	return profile, nil
}
