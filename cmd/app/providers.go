package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/nutriai/internal/domain/glucose"
	"github.com/yanqian/nutriai/internal/domain/macros"
	"github.com/yanqian/nutriai/internal/domain/mas"
	"github.com/yanqian/nutriai/internal/domain/mealplan"
	"github.com/yanqian/nutriai/internal/domain/nutrition"
	"github.com/yanqian/nutriai/internal/infra/config"
	"github.com/yanqian/nutriai/internal/infra/llm/chatgpt"
	"github.com/yanqian/nutriai/internal/infra/mealplanstore"
	"github.com/yanqian/nutriai/internal/infra/tokenizer"
)

func provideMealPlanConfig(cfg *config.Config) mealplan.Config {
	return mealplan.Config{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Prompt:      cfg.MealPlan.Prompt,
		CacheTTL:    cfg.MealPlan.CacheTTL,
		DefaultDiet: cfg.Nutrition.DefaultDiet,
	}
}

func provideNutritionConfig(cfg *config.Config) nutrition.Config {
	return nutrition.Config{
		BatchConcurrency: cfg.Nutrition.BatchConcurrency,
		MaxBatchSize:     cfg.Nutrition.MaxBatchSize,
		DefaultGoal:      cfg.Nutrition.DefaultGoal,
		DefaultDiet:      cfg.Nutrition.DefaultDiet,
		Thresholds:       glucose.DefaultThresholds,
		Planner:          macros.DefaultPlannerConfig,
		Rules:            macros.DefaultReconcileRules,
		Weights:          mas.DefaultWeights,
	}
}

// provideChatClient returns a nil client when no API key is configured, which
// leaves the meal plan generator disabled.
func provideChatClient(cfg *config.Config, logger *slog.Logger) (mealplan.ChatClient, error) {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		logger.Warn("llm api key not set, meal plan generation disabled")
		return nil, nil
	}
	client, err := chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func provideTokenCounter() mealplan.TokenCounter {
	return tokenizer.NewCounter()
}

func provideMealPlanStore(cfg *config.Config, logger *slog.Logger) mealplan.Store {
	if cfg.MealPlan.Redis.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
			return mealplanstore.NewMemoryStore()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory store", "error", err)
			return mealplanstore.NewMemoryStore()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory store", "error", err)
			client.Close()
		} else {
			logger.Info("meal plan valkey store enabled", "addr", cfg.MealPlan.Redis.Addr)
			return mealplanstore.NewValkeyStore(client, cfg.MealPlan.Redis.Prefix)
		}
	}
	return mealplanstore.NewMemoryStore()
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.MealPlan.Redis.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.MealPlan.Redis.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.MealPlan.Redis.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}
