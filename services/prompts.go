package services

import (
	"encoding/json"
	"fmt"

	"product-pulse/models"
)

// Die drei Prompt-Stufen der Content-Pipeline. Die Validierung der
// Antworten liegt in processing.go, nicht beim Completion-Service.

func summaryPrompt(product, tagline, rawContent string) string {
	return fmt.Sprintf(`You are a senior product analyst writing for an audience of product managers.

Given this product launch information:
Product: %s
Tagline: %s
Raw Content: %s

Write a 2-3 paragraph summary (150-250 words) that covers:
- What the product does and who it's for
- What makes it different from competitors
- How it fits into the current market

Use clear, accessible language. Avoid excessive jargon.
Return ONLY the summary text, no headers or labels.
`, product, tagline, rawContent)
}

func breakdownPrompt(product, summary string) string {
	return fmt.Sprintf(`You are a senior product strategist. Based on this product summary:

Product: %s
Summary: %s

Generate exactly 3 analysis sections as a JSON array. Each section should have:
1. A "Key Insight" — the core strategic decision that makes this product interesting
2. A "Growth Lever" — how the product acquires and retains users
3. A "Tradeoff" — what the product sacrifices and whether it's worth it

Return ONLY a JSON array like:
[
  {"heading": "Key Insight: ...", "body": "..."},
  {"heading": "Growth Lever: ...", "body": "..."},
  {"heading": "The Tradeoff: ...", "body": "..."}
]

Each body should be 60-100 words. Use clear language, not MBA jargon.
`, product, summary)
}

func challengePrompt(product, summary string, breakdown []models.BreakdownSection) string {
	breakdownJSON, _ := json.Marshal(breakdown)
	return fmt.Sprintf(`You are creating a strategic thinking challenge for product managers.

Product: %s
Summary: %s
Breakdown: %s

Create ONE multiple-choice question that tests strategic reasoning about this product.
The question should require thinking about tradeoffs, not just recalling facts.

Return ONLY a JSON object:
{
  "skill": "STRATEGY",
  "question": "...",
  "options": [
    {"id": "a", "text": "...", "isCorrect": false},
    {"id": "b", "text": "...", "isCorrect": true},
    {"id": "c", "text": "...", "isCorrect": false},
    {"id": "d", "text": "...", "isCorrect": false}
  ],
  "explanation": "..."
}

The skill should be one of: STRATEGY, GROWTH, MONETIZATION, UX, ANALYTICS.
Exactly one option must have isCorrect: true.
The explanation should be 80-120 words explaining why the correct answer is right
and why the others fall short.
`, product, summary, breakdownJSON)
}
