//go:build wireinject
// +build wireinject

package main

import (
	"Swan/config"
	"Swan/dao"
	"Swan/dao/cache"
	"Swan/handler"
	"Swan/jobs"
	"Swan/pkg/client"
	"Swan/pkg/database"
	"Swan/pkg/rocketmq"
	"Swan/pkg/server"
	"Swan/service"

	"github.com/google/wire"
)

func InitServer(cfg *config.Config) (*server.AppProvider, func(), error) {
	wire.Build(

		client.NewRedisClient,
		cache.NewGamificationCache,
		config.ProvideRocketMQConfig,
		config.ProvideGamificationConfig,
		rocketmq.InitProducer,
		server.NewGinEngine,
		wire.Struct(new(handler.Gamification), "*"),
		wire.Struct(new(handler.Point), "*"),
		wire.Struct(new(handler.Rules), "*"),
		wire.Struct(new(handler.Session), "*"),

		jobs.NewScheduler,
		wire.Bind(new(jobs.StreakResetter), new(*service.GamificationService)),

		wire.Struct(new(server.AppProvider), "*"),
		wire.Struct(new(server.Handlers), "*"),

		dao.ProviderSet,

		service.ProviderSet,
		database.NewDB,
	)
	return nil, nil, nil
}
