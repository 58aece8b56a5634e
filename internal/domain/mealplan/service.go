package mealplan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/yanqian/nutriai/internal/domain/macros"
	"github.com/yanqian/nutriai/internal/infra/llm/chatgpt"
	apperrors "github.com/yanqian/nutriai/pkg/errors"
	"github.com/yanqian/nutriai/pkg/metrics"
	"github.com/yanqian/nutriai/pkg/util"
)

// Service generates meal plans for a macro target.
type Service interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}

type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.Stream, error)
}

type service struct {
	cfg     Config
	client  ChatClient
	store   Store
	counter TokenCounter
	logger  *slog.Logger
}

// NewService is a wire provider for the meal plan domain. A nil client
// disables generation; store and counter are optional.
func NewService(cfg Config, client ChatClient, store Store, counter TokenCounter, logger *slog.Logger) Service {
	return &service{
		cfg:     cfg,
		client:  client,
		store:   store,
		counter: counter,
		logger:  logger.With("component", "mealplan.service"),
	}
}

func (s *service) Generate(ctx context.Context, req Request) (Response, error) {
	diet, err := s.resolveDiet(req.Diet)
	if err != nil {
		return Response{}, err
	}
	key := CacheKey(s.cfg.Model, diet, req.Macros)
	if cached, ok := s.lookup(ctx, key); ok {
		return responseFromCache(cached), nil
	}
	if s.client == nil {
		return Response{}, apperrors.Wrap(apperrors.CodeLLMUnavailable, "meal plan generation is not configured", nil)
	}

	messages := buildMessages(s.cfg.Prompt, diet, req.Macros)
	resp, err := s.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    messages,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return Response{}, apperrors.Wrap(apperrors.CodeLLMError, "chatgpt request failed", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, apperrors.Wrap(apperrors.CodeLLMError, "chatgpt returned no choices", nil)
	}
	plan := strings.TrimSpace(resp.Choices[0].Message.Content)
	if plan == "" {
		return Response{}, apperrors.Wrap(apperrors.CodeLLMError, "chatgpt returned an empty plan", nil)
	}

	usage := s.usage(resp.Usage, messages, plan)
	s.remember(ctx, CachedPlan{
		Key:        key,
		Plan:       plan,
		Model:      s.cfg.Model,
		Diet:       diet,
		Macros:     req.Macros,
		CreatedAt:  util.NowUTC(),
		TokenUsage: usage,
	})

	s.logger.Info("meal plan generated",
		"diet", diet,
		"calories", req.Macros.Calories(),
		"totalTokens", usage.TotalTokens,
		"estimated", usage.Estimated,
	)

	return Response{
		Plan:        plan,
		Diet:        diet,
		Macros:      req.Macros,
		Model:       s.cfg.Model,
		Source:      SourceLLM,
		GeneratedAt: util.NowUTC(),
		TokenUsage:  usagePtr(usage),
	}, nil
}

func (s *service) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	diet, err := s.resolveDiet(req.Diet)
	if err != nil {
		return nil, err
	}
	key := CacheKey(s.cfg.Model, diet, req.Macros)
	if cached, ok := s.lookup(ctx, key); ok {
		out := make(chan StreamChunk, 1)
		out <- StreamChunk{
			Partial:    cached.Plan,
			Completed:  true,
			Source:     SourceCache,
			TokenUsage: usagePtr(cached.TokenUsage),
		}
		close(out)
		return out, nil
	}
	if s.client == nil {
		return nil, apperrors.Wrap(apperrors.CodeLLMUnavailable, "meal plan generation is not configured", nil)
	}

	messages := buildMessages(s.cfg.Prompt, diet, req.Macros)
	stream, err := s.client.CreateChatCompletionStream(ctx, chatgpt.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    messages,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeLLMError, "chatgpt stream request failed", err)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()

		var (
			builder  strings.Builder
			apiUsage *chatgpt.Usage
		)

		for {
			chunk, recvErr := stream.Recv()
			if recvErr != nil {
				if !errors.Is(recvErr, io.EOF) {
					s.logger.Error("chatgpt stream recv failed", "error", recvErr)
					return
				}
				break
			}
			if chunk.Usage != nil {
				apiUsage = chunk.Usage
			}
			grew := false
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					builder.WriteString(choice.Delta.Content)
					grew = true
				}
			}
			if !grew {
				continue
			}
			if !send(ctx, out, StreamChunk{Partial: builder.String()}) {
				return
			}
		}

		plan := strings.TrimSpace(builder.String())
		if plan == "" {
			s.logger.Warn("chatgpt stream returned an empty plan")
			return
		}

		usage := s.usage(apiUsage, messages, plan)
		s.remember(ctx, CachedPlan{
			Key:        key,
			Plan:       plan,
			Model:      s.cfg.Model,
			Diet:       diet,
			Macros:     req.Macros,
			CreatedAt:  util.NowUTC(),
			TokenUsage: usage,
		})

		send(ctx, out, StreamChunk{
			Partial:    plan,
			Completed:  true,
			Source:     SourceLLM,
			TokenUsage: usagePtr(usage),
		})
	}()

	return out, nil
}

func send(ctx context.Context, out chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *service) resolveDiet(raw string) (Diet, error) {
	if strings.TrimSpace(raw) == "" {
		raw = s.cfg.DefaultDiet
	}
	diet, ok := ParseDiet(raw)
	if !ok {
		return "", apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("unsupported diet %q", raw), nil)
	}
	return diet, nil
}

func (s *service) lookup(ctx context.Context, key string) (CachedPlan, bool) {
	if s.store == nil {
		return CachedPlan{}, false
	}
	cached, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("meal plan cache lookup failed", "error", err)
		return CachedPlan{}, false
	}
	if ok {
		s.logger.Debug("meal plan cache hit", "key", key)
	}
	return cached, ok
}

func (s *service) remember(ctx context.Context, plan CachedPlan) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, plan, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("meal plan cache save failed", "error", err)
	}
}

// usage prefers the API's accounting and otherwise estimates with the counter.
func (s *service) usage(api *chatgpt.Usage, messages []chatgpt.Message, completion string) metrics.TokenUsage {
	if api != nil && api.TotalTokens > 0 {
		return metrics.TokenUsage{
			PromptTokens:     api.PromptTokens,
			CompletionTokens: api.CompletionTokens,
			TotalTokens:      api.TotalTokens,
		}
	}
	if s.counter == nil {
		return metrics.TokenUsage{}
	}
	var prompt strings.Builder
	for _, msg := range messages {
		prompt.WriteString(msg.Content)
		prompt.WriteString("\n")
	}
	promptTokens, err := s.counter.Count(s.cfg.Model, prompt.String())
	if err != nil {
		s.logger.Debug("token estimate failed", "error", err)
		return metrics.TokenUsage{}
	}
	completionTokens, err := s.counter.Count(s.cfg.Model, completion)
	if err != nil {
		s.logger.Debug("token estimate failed", "error", err)
		return metrics.TokenUsage{}
	}
	return metrics.TokenUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Estimated:        true,
	}
}

func usagePtr(u metrics.TokenUsage) *metrics.TokenUsage {
	if u.IsZero() {
		return nil
	}
	return &u
}

func responseFromCache(cached CachedPlan) Response {
	return Response{
		Plan:        cached.Plan,
		Diet:        cached.Diet,
		Macros:      cached.Macros,
		Model:       cached.Model,
		Source:      SourceCache,
		GeneratedAt: cached.CreatedAt,
		TokenUsage:  usagePtr(cached.TokenUsage),
	}
}

// CacheKey identifies a plan by model, diet and macro target.
func CacheKey(model string, diet Diet, target macros.Target) string {
	raw := fmt.Sprintf("%s|%s|%d|%d|%d", model, dietKey(string(diet)), target.Protein, target.Carbs, target.Fat)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
