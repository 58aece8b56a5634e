package mealplan

import (
	"strings"
	"time"

	"github.com/yanqian/nutriai/internal/domain/macros"
	"github.com/yanqian/nutriai/pkg/metrics"
)

// Diet is a dietary preference understood by the prompt.
type Diet string

const (
	DietGlutenFree Diet = "gluten-free"
	DietFODMAP     Diet = "FODMAP"
	DietLowSugar   Diet = "low sugar"
	DietKeto       Diet = "keto"
	DietCarnivore  Diet = "carnivore"
	DietVegan      Diet = "vegan"
	DietVegetarian Diet = "vegetarian"
)

var diets = []Diet{DietGlutenFree, DietFODMAP, DietLowSugar, DietKeto, DietCarnivore, DietVegan, DietVegetarian}

// Diets lists the supported preferences.
func Diets() []Diet {
	out := make([]Diet, len(diets))
	copy(out, diets)
	return out
}

// ParseDiet matches raw case-insensitively, treating '-', '_' and ' ' alike.
func ParseDiet(raw string) (Diet, bool) {
	key := dietKey(raw)
	for _, d := range diets {
		if dietKey(string(d)) == key {
			return d, true
		}
	}
	return "", false
}

func dietKey(raw string) string {
	r := strings.NewReplacer("-", " ", "_", " ")
	return strings.Join(strings.Fields(strings.ToLower(r.Replace(raw))), " ")
}

// Config wires runtime dependencies for the generator.
type Config struct {
	Model       string
	Temperature float32
	Prompt      string
	CacheTTL    time.Duration
	DefaultDiet string
}

// Request asks for a one-day plan hitting Macros.
type Request struct {
	Macros macros.Target `json:"macros"`
	Diet   string        `json:"diet"`
}

// Response carries the free-text plan. The text is never parsed.
type Response struct {
	Plan        string              `json:"plan"`
	Diet        Diet                `json:"diet"`
	Macros      macros.Target       `json:"macros"`
	Model       string              `json:"model"`
	Source      string              `json:"source"`
	GeneratedAt time.Time           `json:"generatedAt"`
	TokenUsage  *metrics.TokenUsage `json:"tokenUsage,omitempty"`
}

// StreamChunk is a streaming update of a plan being written.
type StreamChunk struct {
	Partial    string              `json:"partial"`
	Completed  bool                `json:"completed"`
	Source     string              `json:"source,omitempty"`
	TokenUsage *metrics.TokenUsage `json:"tokenUsage,omitempty"`
}

// CachedPlan is what a Store keeps per cache key.
type CachedPlan struct {
	Key        string             `json:"key"`
	Plan       string             `json:"plan"`
	Model      string             `json:"model"`
	Diet       Diet               `json:"diet"`
	Macros     macros.Target      `json:"macros"`
	CreatedAt  time.Time          `json:"createdAt"`
	TokenUsage metrics.TokenUsage `json:"tokenUsage"`
}

const (
	SourceLLM   = "llm"
	SourceCache = "cache"
)
