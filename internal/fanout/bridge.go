package fanout

import (
	"context"
	"encoding/json"

	"github.com/fathima-sithara/chat-core/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type bridgeEvent struct {
	Origin  string         `json:"origin"`
	Message domain.Message `json:"message"`
}

// Bridge republishes local appends over a redis channel and replays appends
// from other instances into the local engine, so subscribers reach messages
// committed anywhere. Every replayed event still originates from a durable
// store append on its home instance.
type Bridge struct {
	rdb     *redis.Client
	channel string
	engine  *Engine
	origin  string
	log     *zap.SugaredLogger
}

func NewBridge(rdb *redis.Client, channel string, engine *Engine, log *zap.SugaredLogger) *Bridge {
	b := &Bridge{
		rdb:     rdb,
		channel: channel,
		engine:  engine,
		origin:  uuid.New().String(),
		log:     log,
	}
	engine.setRemote(b.publish)
	return b
}

func (b *Bridge) publish(m domain.Message) {
	payload, err := json.Marshal(bridgeEvent{Origin: b.origin, Message: m})
	if err != nil {
		b.log.Errorw("marshal bridge event", "error", err)
		return
	}
	if err := b.rdb.Publish(context.Background(), b.channel, payload).Err(); err != nil {
		b.log.Warnw("publish append to redis", "error", err)
	}
}

// Run consumes the redis channel until ctx is cancelled. Events published by
// this instance are skipped; everything else goes through the local fan-out
// only, never back to redis.
func (b *Bridge) Run(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev bridgeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warnw("invalid bridge event", "error", err)
				continue
			}
			if ev.Origin == b.origin {
				continue
			}
			b.engine.fanOutMessage(ev.Message)
		}
	}
}
