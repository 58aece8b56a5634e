package mealplan

import (
	"fmt"
	"strings"

	"github.com/yanqian/nutriai/internal/domain/macros"
	"github.com/yanqian/nutriai/internal/infra/llm/chatgpt"
)

func buildMessages(system string, diet Diet, target macros.Target) []chatgpt.Message {
	return []chatgpt.Message{
		{Role: "system", Content: strings.TrimSpace(system)},
		{Role: "user", Content: userPrompt(diet, target)},
	}
}

func userPrompt(diet Diet, target macros.Target) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a one-day meal plan for a %s diet.\n\n", diet)
	b.WriteString("Daily macro targets:\n")
	fmt.Fprintf(&b, "- Protein: %dg\n", target.Protein)
	fmt.Fprintf(&b, "- Carbs: %dg\n", target.Carbs)
	fmt.Fprintf(&b, "- Fat: %dg\n", target.Fat)
	fmt.Fprintf(&b, "- Calories: about %d kcal\n\n", target.Calories())
	b.WriteString("Requirements:\n")
	b.WriteString("- 3 meals and 2 snacks, each with foods, portions and per-item macros.\n")
	fmt.Fprintf(&b, "- Every item must respect the %s restriction; avoid common allergens when unsure.\n", diet)
	b.WriteString("- Favour low-glycaemic carbohydrates paired with protein or fat.\n")
	b.WriteString("- Finish with the day's total protein, carbs and fat.")
	return b.String()
}
