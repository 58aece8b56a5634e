//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/nutriai/internal/bootstrap"
	"github.com/yanqian/nutriai/internal/domain/mealplan"
	"github.com/yanqian/nutriai/internal/domain/nutrition"
	"github.com/yanqian/nutriai/internal/infra/config"
	httpiface "github.com/yanqian/nutriai/internal/interface/http"
	"github.com/yanqian/nutriai/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideMealPlanConfig,
		provideNutritionConfig,
		provideChatClient,
		provideTokenCounter,
		provideMealPlanStore,
		mealplan.NewService,
		nutrition.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
