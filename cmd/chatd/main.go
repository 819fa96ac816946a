package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"

	"github.com/fathima-sithara/chat-core/internal/api"
	"github.com/fathima-sithara/chat-core/internal/auth"
	"github.com/fathima-sithara/chat-core/internal/blob"
	"github.com/fathima-sithara/chat-core/internal/config"
	"github.com/fathima-sithara/chat-core/internal/events"
	"github.com/fathima-sithara/chat-core/internal/fanout"
	"github.com/fathima-sithara/chat-core/internal/gateway"
	"github.com/fathima-sithara/chat-core/internal/logger"
	"github.com/fathima-sithara/chat-core/internal/profile"
	"github.com/fathima-sithara/chat-core/internal/recent"
	"github.com/fathima-sithara/chat-core/internal/store"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if cfg.App.JWTSecret == "" {
		log.Fatal("app.jwt_secret is required")
	}

	zlog, err := logger.New(cfg.App.Env != "production")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		convStore store.ConversationStore
		users     profile.Repository
		index     recent.Index
	)
	switch cfg.Storage.Backend {
	case "memory":
		memUsers := profile.NewMemoryRepository()
		convStore = store.NewMemoryStore()
		users = memUsers
		index = recent.NewMemoryIndex(memUsers)
		zlog.Warn("using in-memory storage, data will not survive restart")
	default:
		client, err := store.NewMongoClient(ctx, cfg.Mongo.URI)
		if err != nil {
			zlog.Fatalf("mongo connect: %v", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		db := client.Database(cfg.Mongo.Database)
		mongoUsers := profile.NewMongoRepository(db, zlog)
		convStore = store.NewMongoStore(db, zlog)
		users = mongoUsers
		index = recent.NewMongoIndex(db, mongoUsers, zlog)
	}

	engine := fanout.NewEngine(cfg.Fanout.BufferSize, zlog)
	gateway.Wire(convStore, index, engine, zlog)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		bridge := fanout.NewBridge(rdb, cfg.Redis.Channel, engine, zlog)
		go bridge.Run(ctx)
		zlog.Infow("fan-out bridge enabled", "channel", cfg.Redis.Channel)
	}

	var producer *events.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		topic := cfg.Kafka.TopicMessageCreated
		if topic == "" {
			topic = "message.created"
		}
		producer = events.NewProducer(cfg.Kafka.Brokers, topic)
		defer func() { _ = producer.Close() }()
	}

	var blobs blob.Store
	if cfg.AWS.Bucket != "" {
		s3store, err := blob.NewS3Store(ctx, cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.PublicRead, cfg.PresignTTL)
		if err != nil {
			zlog.Fatalf("s3 init: %v", err)
		}
		blobs = s3store
	}

	tokens := auth.NewTokenManager(cfg.App.JWTSecret, cfg.TokenTTL)
	authSvc := auth.NewService(users, blobs, tokens, zlog)
	gw := gateway.New(convStore, index, engine, users, producer, zlog)

	app := api.NewServer(cfg, gw, authSvc, zlog)
	go func() {
		if err := app.Listen(":" + strconv.Itoa(cfg.App.Port)); err != nil {
			zlog.Fatalf("server listen: %v", err)
		}
	}()
	zlog.Infow("chatd started", "port", cfg.App.Port, "storage", cfg.Storage.Backend)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = app.ShutdownWithContext(shutdownCtx)
	zlog.Info("chatd stopped")
}
