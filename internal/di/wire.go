//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"revline/internal/chat/handler"
	"revline/internal/chat/repository"
	"revline/internal/config"
	"revline/internal/dbmysql"
	"revline/internal/user"
)

var storeSet = wire.NewSet(
	ProvideDatabase,
	repository.NewConversationRepository,
	repository.NewMessageRepository,
	user.NewProfileRepository,
	user.NewFollowRepository,
	user.NewDeviceRepository,
	dbmysql.NewNotificationRepository,
)

var notificationSet = wire.NewSet(
	ProvideNotificationManager,
	ProvideDispatcher,
	ProvideNotificationService,
)

func InitializeChatApp(ctx context.Context, cfg *config.Config) (*ChatApp, func(), error) {
	wire.Build(
		storeSet,
		notificationSet,
		ProvideRedis,
		ProvideFeed,
		ProvideCacheStore,
		ProvideCoordinator,
		ProvideLocker,
		ProvideMongo,
		ProvideObjectStore,
		ProvideChatService,
		ProvideFollowService,
		ProvideChatHandler,
		ProvideNotificationHandler,
		ProvideTokenIssuer,
		handler.NewGateway,
		user.NewFollowHandler,
		ProvideRouter,
		wire.Struct(new(ChatApp), "*"),
	)
	return nil, nil, nil
}

func InitializeWorker(ctx context.Context, cfg *config.Config) (*WorkerApp, func(), error) {
	wire.Build(
		ProvideDatabase,
		user.NewDeviceRepository,
		dbmysql.NewNotificationRepository,
		ProvideNotificationManager,
		ProvideDeliveryServer,
		wire.Struct(new(WorkerApp), "*"),
	)
	return nil, nil, nil
}

func InitializeMedia(ctx context.Context, cfg *config.Config) (*MediaApp, func(), error) {
	wire.Build(
		ProvideMongo,
		ProvideObjectStore,
		ProvideMediaServer,
		wire.Struct(new(MediaApp), "*"),
	)
	return nil, nil, nil
}
