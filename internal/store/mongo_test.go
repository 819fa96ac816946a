package store

import (
	"context"
	"testing"
	"time"

	"github.com/fathima-sithara/chat-core/internal/cerr"
	"github.com/fathima-sithara/chat-core/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"
)

// counterResponse is the findAndModify reply allocating the next (seq, ts)
// for a conversation pair.
func counterResponse(seq int64, ts time.Time) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
		{Key: "seq", Value: seq},
		{Key: "last_ts", Value: primitive.NewDateTimeFromTime(ts)},
	}})
}

func writeFailure() bson.D {
	return mtest.CreateCommandErrorResponse(mtest.CommandError{
		Code:    1,
		Name:    "InternalError",
		Message: "replica unreachable",
	})
}

func TestMongoStoreAppendCommitsBothCopies(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	mt.Run("append", func(mt *mtest.T) {
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(), // index creation
			counterResponse(7, now),
			mtest.CreateSuccessResponse(), // sender copy
			mtest.CreateSuccessResponse(), // recipient copy
		)

		s := NewMongoStore(mt.DB, zap.NewNop().Sugar())
		var notified []domain.Message
		s.OnAppend(func(m domain.Message) { notified = append(notified, m) })

		m, err := s.Append(context.Background(), "alice", "bob", "hi")
		require.NoError(mt, err)
		assert.Equal(mt, uint64(7), m.Seq)
		assert.True(mt, now.Equal(m.Timestamp))
		require.Len(mt, notified, 1)
		assert.Equal(mt, m, notified[0])
	})
}

// When every attempt at the recipient copy fails, the sender copy must be
// rolled back, the caller gets a PartialWriteError carrying the cause, and
// no listener ever observes the message.
func TestMongoStoreAppendCompensatesFailedRecipientCopy(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	mt.Run("rollback", func(mt *mtest.T) {
		responses := []bson.D{
			mtest.CreateSuccessResponse(), // index creation
			counterResponse(1, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
			mtest.CreateSuccessResponse(), // sender copy lands
		}
		for i := 0; i < secondCopyAttempts; i++ {
			responses = append(responses, writeFailure())
		}
		responses = append(responses,
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1})) // rollback delete
		mt.AddMockResponses(responses...)

		s := NewMongoStore(mt.DB, zap.NewNop().Sugar())
		fired := false
		s.OnAppend(func(domain.Message) { fired = true })

		_, err := s.Append(context.Background(), "alice", "bob", "hi")

		var pw *cerr.PartialWriteError
		require.ErrorAs(mt, err, &pw)
		assert.Equal(mt, "alice", pw.FromID)
		assert.Equal(mt, "bob", pw.ToID)
		assert.Equal(mt, secondCopyAttempts, pw.Attempts)
		require.Error(mt, pw.Err)
		assert.False(mt, fired, "listeners must not observe a failed append")

		deletes := 0
		for _, ev := range mt.GetAllStartedEvents() {
			if ev.CommandName == "delete" {
				deletes++
			}
		}
		assert.Equal(mt, 1, deletes, "sender copy was not rolled back")
	})
}
