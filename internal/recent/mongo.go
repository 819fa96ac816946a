package recent

import (
	"context"
	"sync"
	"time"

	"github.com/fathima-sithara/chat-core/internal/cerr"
	"github.com/fathima-sithara/chat-core/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// recentDoc keys the entry by (owner, partner) so the upsert is
// replace-in-place: at most one row per pair.
type recentDoc struct {
	ID                    string    `bson:"_id"`
	domain.RecentActivity `bson:",inline"`
	UpsertedAt            time.Time `bson:"upserted_at"`
}

type MongoIndex struct {
	coll  *mongo.Collection
	users UserDirectory
	log   *zap.SugaredLogger

	mu        sync.Mutex
	listeners []UpsertListener
}

func NewMongoIndex(db *mongo.Database, users UserDirectory, log *zap.SugaredLogger) *MongoIndex {
	i := &MongoIndex{
		coll:  db.Collection("recent_messages"),
		users: users,
		log:   log,
	}
	_, err := i.coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "timestamp", Value: -1}},
		Options: options.Index().SetName("recent_owner_idx"),
	})
	if err != nil {
		log.Warnf("create recent index: %v", err)
	}
	return i
}

func (i *MongoIndex) OnUpsert(fn UpsertListener) {
	i.mu.Lock()
	i.listeners = append(i.listeners, fn)
	i.mu.Unlock()
}

func (i *MongoIndex) Apply(ctx context.Context, m domain.Message) error {
	entries := entriesFor(ctx, i.users, m)
	for _, e := range entries {
		doc := recentDoc{
			ID:             e.OwnerID + ":" + e.PartnerID,
			RecentActivity: e,
			UpsertedAt:     time.Now().UTC(),
		}
		wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		_, err := i.coll.ReplaceOne(wctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
		cancel()
		if err != nil {
			return cerr.Storage("upsert recent entry", err)
		}
	}

	i.mu.Lock()
	listeners := i.listeners
	i.mu.Unlock()
	for _, e := range entries {
		for _, fn := range listeners {
			fn(e)
		}
	}
	return nil
}

func (i *MongoIndex) List(ctx context.Context, ownerID string) ([]domain.RecentActivity, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "upserted_at", Value: -1}})
	cur, err := i.coll.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, cerr.Storage("list recent entries", err)
	}
	defer cur.Close(ctx)

	out := []domain.RecentActivity{}
	for cur.Next(ctx) {
		var doc recentDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, cerr.Storage("decode recent entry", err)
		}
		out = append(out, doc.RecentActivity)
	}
	if err := cur.Err(); err != nil {
		return nil, cerr.Storage("list recent entries", err)
	}
	return out, nil
}
