package di

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"revline/internal/cache"
	"revline/internal/chat/handler"
	"revline/internal/chat/repository"
	"revline/internal/chat/service"
	"revline/internal/common"
	"revline/internal/config"
	"revline/internal/dbmongo"
	"revline/internal/dbmysql"
	"revline/internal/media"
	"revline/internal/notif"
	"revline/internal/queue"
	"revline/internal/realtime"
	"revline/internal/user"
)

// ChatApp is everything cmd/chat-svc serves.
type ChatApp struct {
	Config      *config.Config
	Handler     http.Handler
	Gateway     *handler.Gateway
	Cache       *cache.Coordinator
	Feed        realtime.Feed
	ChatService service.ChatService
}

// WorkerApp consumes queued notification deliveries.
type WorkerApp struct {
	Config  *config.Config
	Server  queue.Server
	Manager *notif.NotificationManager
}

type MediaApp struct {
	Config *config.Config
	Server *media.HTTPServer
}

func ProvideDatabase(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := dbmysql.NewDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, cleanup, nil
}

// ProvideRedis returns a nil client when Redis is disabled; the single-node fallbacks are used instead.
func ProvideRedis(cfg *config.Config) (redis.UniversalClient, func(), error) {
	if !cfg.Redis.Enabled {
		log.Info().Msg("redis disabled, using in-process feed, cache and locks")
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

func ProvideFeed(client redis.UniversalClient) realtime.Feed {
	if client == nil {
		return realtime.NewMemoryFeed()
	}
	return realtime.NewRedisFeed(client, nil)
}

func ProvideCacheStore(client redis.UniversalClient) cache.Cache {
	if client == nil {
		return cache.NewMemoryCache()
	}
	return cache.NewRedisCache(client)
}

func ProvideCoordinator(store cache.Cache, cfg *config.Config) *cache.Coordinator {
	return cache.NewCoordinator(store, cfg.Chat.CacheExpiry())
}

func ProvideLocker(client redis.UniversalClient, cfg *config.Config) service.Locker {
	if client == nil {
		return service.NewKeyedMutex()
	}
	return service.NewRedisLocker(client, cfg.Chat.LockExpiry())
}

func ProvideMongo(ctx context.Context, cfg *config.Config) (*dbmongo.MongoClient, func(), error) {
	client, err := dbmongo.NewMongoConnection(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(ctx)
	}
	return client, cleanup, nil
}

func ProvideObjectStore(client *dbmongo.MongoClient, cfg *config.Config) *dbmongo.ObjectStore {
	return dbmongo.NewObjectStore(dbmongo.NewGridFSBucket(client.GridFS), cfg.Storage.Bucket, cfg.Storage.PublicBaseURL)
}

// ProvideNotificationManager wires the database observer and, when Firebase is enabled, the push observer.
func ProvideNotificationManager(
	ctx context.Context,
	cfg *config.Config,
	repo *dbmysql.NotificationRepository,
	devices user.DeviceRepository,
) (*notif.NotificationManager, func(), error) {
	nm := notif.NewNotificationManager(cfg.Notification.Workers, cfg.Notification.ChannelBufferSize)
	nm.Subscribe(notif.NewDatabaseNotificationObserver(repo))

	fcm, err := notif.NewFCMClient(ctx, cfg.Firebase)
	if err != nil {
		nm.Shutdown()
		return nil, nil, err
	}
	if fcm != nil {
		nm.Subscribe(notif.NewFCMNotificationObserver(fcm, devices))
	} else {
		log.Info().Msg("firebase disabled, push notifications off")
	}

	log.Info().Strs("observers", nm.Observers()).Msg("notification manager ready")
	return nm, nm.Shutdown, nil
}

// ProvideDispatcher enqueues on asynq when the queue is enabled and otherwise hands events to the local manager.
func ProvideDispatcher(cfg *config.Config, nm *notif.NotificationManager) (notif.Dispatcher, func(), error) {
	if !cfg.Notification.Enabled {
		log.Info().Msg("notifications disabled")
		return notif.DiscardDispatcher{}, func() {}, nil
	}
	if !cfg.Notification.UseQueue {
		return notif.NewManagerDispatcher(nm), func() {}, nil
	}
	client, err := queue.NewAsynqClient(cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	d := notif.NewAsynqDispatcher(client, cfg.Notification.Queue, cfg.Notification.MaxRetries)
	return d, func() { _ = client.Close() }, nil
}

func ProvideNotificationService(
	dispatcher notif.Dispatcher,
	repo *dbmysql.NotificationRepository,
	devices user.DeviceRepository,
) *notif.NotificationService {
	return notif.NewNotificationService(dispatcher, repo, devices)
}

func ProvideChatService(
	cfg *config.Config,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	profiles user.ProfileRepository,
	storage *dbmongo.ObjectStore,
	feed realtime.Feed,
	coordinator *cache.Coordinator,
	notifier *notif.NotificationService,
	locker service.Locker,
) service.ChatService {
	return service.NewChatService(service.Deps{
		Conversations: conversations,
		Messages:      messages,
		Profiles:      profiles,
		Storage:       storage,
		Publisher:     feed,
		Cache:         coordinator,
		Notifier:      notifier,
		Locker:        locker,
	}, service.Options{
		Timeout:              cfg.Chat.Timeout(),
		ScopeReadToRecipient: cfg.Chat.ScopeReadToRecipient,
		MaxContentLength:     cfg.Chat.MaxContentLength,
		MaxAttachmentBytes:   cfg.Chat.MaxAttachmentBytes,
	})
}

func ProvideFollowService(
	follows user.FollowRepository,
	profiles user.ProfileRepository,
	notifier *notif.NotificationService,
) user.FollowService {
	return user.NewFollowService(follows, profiles, notifier)
}

func ProvideChatHandler(svc service.ChatService, cfg *config.Config) *handler.ChatHandler {
	// Multipart bodies carry the attachment plus the form fields around it.
	return handler.NewChatHandler(svc, cfg.Chat.MaxAttachmentBytes+1<<20)
}

func ProvideNotificationHandler(svc *notif.NotificationService) *notif.NotificationHandler {
	return notif.NewNotificationHandler(svc)
}

func ProvideTokenIssuer(cfg *config.Config) *common.TokenIssuer {
	return common.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
}

// ProvideRouter mounts every authenticated route under /api/v1.
func ProvideRouter(
	issuer *common.TokenIssuer,
	chat *handler.ChatHandler,
	gateway *handler.Gateway,
	notifications *notif.NotificationHandler,
	follows *user.FollowHandler,
) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(common.Authenticate(issuer))
	chat.RegisterRoutes(api)
	notifications.RegisterRoutes(api)
	follows.RegisterRoutes(api)
	api.Handle("/ws", gateway).Methods(http.MethodGet)

	return common.CORS(common.Logging(r))
}

func ProvideDeliveryServer(cfg *config.Config, nm *notif.NotificationManager) (queue.Server, error) {
	srv, err := queue.NewAsynqServer(cfg.Redis.URL, cfg.Notification.Workers, cfg.Notification.Queue)
	if err != nil {
		return nil, err
	}
	srv.Register(notif.TaskDeliver, notif.NewDeliveryHandler(nm))
	return srv, nil
}

func ProvideMediaServer(store *dbmongo.ObjectStore) *media.HTTPServer {
	return media.NewHTTPServer(store)
}
