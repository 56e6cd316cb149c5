package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func TestEstimate(t *testing.T) {
	t.Parallel()
	cases := map[string]int{
		"":                        0,
		"a":                       1,
		"abcd":                    1,
		"abcdefgh":                2,
		strings.Repeat("x", 400):  100,
		"éééééééé":                2,
		"日本語の文書":                  1,
		"Quarterly revenue rose.": 5,
	}
	for in, want := range cases {
		if got := Estimate(in); got != want {
			t.Errorf("Estimate(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestEstimateMessages(t *testing.T) {
	t.Parallel()
	// overhead 4 + "user" 1 + "hello world" 2
	m := schema.UserMessage("hello world")
	if got := EstimateMessage(m); got != 7 {
		t.Errorf("EstimateMessage = %d, want 7", got)
	}
	if got := EstimateMessages([]*schema.Message{m, m}); got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
	if got := EstimateMessages(nil); got != 0 {
		t.Errorf("EstimateMessages(nil) = %d", got)
	}
}

// turn returns a question (6 tokens) and its reply (7 tokens, the
// "assistant" role alone estimates to 2).
func turn(q, a string) []*schema.Message {
	return []*schema.Message{schema.UserMessage(q), schema.AssistantMessage(a, nil)}
}

func contents(msgs []*schema.Message) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.Content
	}
	return strings.Join(parts, ",")
}

func TestTrimHistory(t *testing.T) {
	t.Parallel()

	history := append(turn("q1", "a1"), turn("q2", "a2")...)
	huge := schema.SystemMessage(strings.Repeat("x", 4*7000))

	tests := []struct {
		name    string
		fixed   []*schema.Message
		history []*schema.Message
		max     int
		want    string
	}{
		{name: "everything fits", history: history, max: DefaultMaxContextTokens, want: "q1,a1,q2,a2"},
		{name: "empty history", fixed: []*schema.Message{schema.SystemMessage("sys")}, max: 100, want: ""},
		{name: "exact fit keeps all", history: history, max: 26, want: "q1,a1,q2,a2"},
		// 25 tokens fits a1,q2,a2 (19) but a1 would open mid-turn.
		{name: "never opens on an assistant reply", history: history, max: 25, want: "q2,a2"},
		{name: "newest turn only", history: history, max: 13, want: "q2,a2"},
		// Only a2 fits, and a lone reply is dropped too.
		{name: "reply alone is dropped", history: history, max: 8, want: ""},
		{name: "fixed exceeds budget", fixed: []*schema.Message{huge}, history: history, max: 6000, want: ""},
		{
			name:    "fixed counts against the budget",
			fixed:   []*schema.Message{schema.SystemMessage("sys")},
			history: history,
			// sys costs 4 + 1 + 1 = 6, leaving 13 for history.
			max:  19,
			want: "q2,a2",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := contents(TrimHistory(tc.fixed, tc.history, tc.max)); got != tc.want {
				t.Errorf("TrimHistory = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTrimHistory_DoesNotModifyInput(t *testing.T) {
	t.Parallel()
	history := append(turn("q1", "a1"), turn("q2", "a2")...)
	_ = TrimHistory(nil, history, 13)
	if contents(history) != "q1,a1,q2,a2" {
		t.Errorf("input changed: %s", contents(history))
	}
}
