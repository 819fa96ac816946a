package profile

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/chat-core/internal/cerr"
	"github.com/fathima-sithara/chat-core/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database, log *zap.SugaredLogger) *MongoRepository {
	r := &MongoRepository{coll: db.Collection("users")}
	_, err := r.coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_idx"),
	})
	if err != nil {
		log.Warnf("create users index: %v", err)
	}
	return r
}

func (r *MongoRepository) Persist(ctx context.Context, u domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, u, options.Replace().SetUpsert(true))
	if err != nil {
		return cerr.Storage("persist user", err)
	}
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, cerr.ErrNotFound
		}
		return domain.User{}, cerr.Storage("fetch user", err)
	}
	return u, nil
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, cerr.ErrNotFound
		}
		return domain.User{}, cerr.Storage("fetch user by email", err)
	}
	return u, nil
}

func (r *MongoRepository) List(ctx context.Context, excludeID string) ([]domain.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "email", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$ne": excludeID}}, opts)
	if err != nil {
		return nil, cerr.Storage("list users", err)
	}
	defer cur.Close(ctx)

	out := []domain.User{}
	for cur.Next(ctx) {
		var u domain.User
		if err := cur.Decode(&u); err != nil {
			return nil, cerr.Storage("decode user", err)
		}
		out = append(out, u)
	}
	if err := cur.Err(); err != nil {
		return nil, cerr.Storage("list users", err)
	}
	return out, nil
}
