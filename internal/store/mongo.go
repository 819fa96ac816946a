package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fathima-sithara/chat-core/internal/cerr"
	"github.com/fathima-sithara/chat-core/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// messageDoc is one namespace copy of a message. The _id is derived from the
// message id and the owner, so retried inserts are idempotent.
type messageDoc struct {
	ID             string `bson:"_id"`
	OwnerID        string `bson:"owner_id"`
	PartnerID      string `bson:"partner_id"`
	domain.Message `bson:",inline"`
}

type counterDoc struct {
	Seq    uint64    `bson:"seq"`
	LastTS time.Time `bson:"last_ts"`
}

type MongoStore struct {
	messages *mongo.Collection
	counters *mongo.Collection
	log      *zap.SugaredLogger

	mu        sync.Mutex
	pairLocks map[string]*sync.Mutex
	listeners []AppendListener
}

func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return mongo.Connect(ctx, options.Client().ApplyURI(uri))
}

func NewMongoStore(db *mongo.Database, log *zap.SugaredLogger) *MongoStore {
	s := &MongoStore{
		messages:  db.Collection("messages"),
		counters:  db.Collection("conversation_counters"),
		log:       log,
		pairLocks: make(map[string]*sync.Mutex),
	}
	_, err := s.messages.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "partner_id", Value: 1}, {Key: "timestamp", Value: 1}, {Key: "seq", Value: 1}},
		Options: options.Index().SetName("conversation_order_idx"),
	})
	if err != nil {
		log.Warnf("create messages index: %v", err)
	}
	return s
}

func (s *MongoStore) OnAppend(fn AppendListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// lockPair serializes appends per conversation within this process so
// listener notification follows seq order.
func (s *MongoStore) lockPair(pk string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.pairLocks[pk]
	if !ok {
		l = &sync.Mutex{}
		s.pairLocks[pk] = l
	}
	return l
}

// nextPosition allocates the next (seq, timestamp) for the pair. $max keeps
// the timestamp monotonic per conversation even if the wall clock steps back.
func (s *MongoStore) nextPosition(ctx context.Context, pk string) (uint64, time.Time, error) {
	now := time.Now().UTC()
	res := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": pk},
		bson.M{"$inc": bson.M{"seq": 1}, "$max": bson.M{"last_ts": now}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var c counterDoc
	if err := res.Decode(&c); err != nil {
		return 0, time.Time{}, err
	}
	return c.Seq, c.LastTS.UTC(), nil
}

func (s *MongoStore) Append(ctx context.Context, fromID, toID, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, cerr.Validation("message text is blank")
	}
	if fromID == toID {
		return domain.Message{}, cerr.Validation("sender and recipient are the same user")
	}

	pk := pairKey(fromID, toID)
	l := s.lockPair(pk)
	l.Lock()
	defer l.Unlock()

	seq, ts, err := s.nextPosition(ctx, pk)
	if err != nil {
		return domain.Message{}, cerr.Storage("allocate message position", err)
	}

	m := domain.Message{
		ID:        uuid.New().String(),
		FromID:    fromID,
		ToID:      toID,
		Text:      text,
		Timestamp: ts,
		Seq:       seq,
	}

	if err := s.insertCopy(ctx, fromID, toID, m); err != nil {
		return domain.Message{}, cerr.Storage("write sender copy", err)
	}

	// recipient copy must land too; retry, then roll the first copy back
	// rather than leave the two namespaces diverged
	err = retryWrite(ctx, secondCopyAttempts, func(ctx context.Context) error {
		return s.insertCopy(ctx, toID, fromID, m)
	})
	if err != nil {
		if delErr := s.deleteCopy(context.WithoutCancel(ctx), fromID, m.ID); delErr != nil {
			s.log.Errorw("rollback of sender copy failed, namespaces diverged",
				"message_id", m.ID, "error", delErr)
		}
		return domain.Message{}, &cerr.PartialWriteError{
			FromID:   fromID,
			ToID:     toID,
			Attempts: secondCopyAttempts,
			Err:      err,
		}
	}

	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(m)
	}
	return m, nil
}

func (s *MongoStore) insertCopy(ctx context.Context, ownerID, partnerID string, m domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	doc := messageDoc{
		ID:        m.ID + ":" + ownerID,
		OwnerID:   ownerID,
		PartnerID: partnerID,
		Message:   m,
	}
	_, err := s.messages.UpdateByID(ctx, doc.ID,
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) deleteCopy(ctx context.Context, ownerID, messageID string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := s.messages.DeleteOne(ctx, bson.M{"_id": messageID + ":" + ownerID})
	return err
}

func (s *MongoStore) History(ctx context.Context, userA, userB string, after domain.Cursor, limit int) ([]domain.Message, error) {
	filter := bson.M{"owner_id": userA, "partner_id": userB}
	if !after.IsZero() {
		filter["$or"] = bson.A{
			bson.M{"timestamp": bson.M{"$gt": after.Timestamp}},
			bson.M{"timestamp": after.Timestamp, "seq": bson.M{"$gt": after.Seq}},
		}
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "seq", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, cerr.Storage("read history", err)
	}
	defer cur.Close(ctx)

	out := []domain.Message{}
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, cerr.Storage("decode message", err)
		}
		out = append(out, doc.Message)
	}
	if err := cur.Err(); err != nil {
		return nil, cerr.Storage("read history", err)
	}
	return out, nil
}
