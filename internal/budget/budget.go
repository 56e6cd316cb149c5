// Package budget estimates token counts for chat requests and trims replayed
// transcript history so a question fits the model's context window. Backends
// use different tokenizers, so counts come from a character heuristic:
// 1 token ≈ 4 characters.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// It fits 8k-context models with room left for the answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
// Characters are Unicode code points, so non-ASCII text is not overcounted.
func Estimate(s string) int {
	chars := utf8.RuneCountInString(s)
	n := chars / charsPerToken
	if n == 0 && chars > 0 {
		return 1
	}
	return n
}

// messageOverhead approximates the per-message framing most chat APIs add.
const messageOverhead = 4

// EstimateMessage returns the estimated token cost of a single message.
func EstimateMessage(m *schema.Message) int {
	return messageOverhead + Estimate(string(m.Role)) + Estimate(m.Content)
}

// EstimateMessages sums EstimateMessage over msgs.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateMessage(m)
	}
	return total
}

// TrimHistory keeps the newest suffix of history that fits in maxTokens
// alongside fixed, the system prompt and the current question, which are
// never dropped. The kept suffix always opens with a user message so a
// replayed conversation never starts mid-turn. When fixed alone exceeds the
// budget the result is empty.
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	room := maxTokens - EstimateMessages(fixed)

	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		room -= EstimateMessage(history[i])
		if room < 0 {
			break
		}
		start = i
	}
	for start < len(history) && history[start].Role != schema.User {
		start++
	}
	return history[start:]
}
