package service

import (
	"Swan/dao"

	"github.com/google/wire"
)

var ProviderSet = wire.NewSet(
	ProvideRulesCatalog,
	ProvideFastCache,
	NewEventPublisher,
	NewGamificationService,
	wire.Bind(new(IGamificationService), new(*GamificationService)),
	wire.Bind(new(DurableStore), new(*dao.Ledger)),

	NewEthicalGuard,
	wire.Bind(new(UsageStatsProvider), new(*dao.UsageStats)),

	wire.Struct(new(SessionService), "*"),
	wire.Bind(new(ISessionService), new(*SessionService)),
)
