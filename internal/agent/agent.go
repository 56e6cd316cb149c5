// Package agent answers questions over the indexed documents. Each question
// runs one synchronous pipeline: retrieve the closest chunks, assemble a
// bounded prompt, ask the chat model, and record the turn in the transcript.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docrag-go/internal/budget"
	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/prompt"
	"github.com/54b3r/docrag-go/internal/rag"
	"github.com/54b3r/docrag-go/internal/store"
)

// Config holds the dependencies required to construct an Agent.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.BaseChatModel

	// Retriever finds the chunks relevant to a question.
	Retriever rag.Retriever

	// TopK is the number of chunks injected per question.
	// Defaults to rag.DefaultTopK if zero.
	TopK int

	// ContextLimit is the per-chunk character limit in the prompt.
	// Defaults to prompt.DefaultLimit if zero.
	ContextLimit int

	// MaxTokens and Temperature are passed to the chat model on every call.
	// Zero values leave the model's configured defaults in place.
	MaxTokens   int
	Temperature *float32

	// Transcript is the optional store every turn is appended to.
	Transcript store.TranscriptStore

	// Session names the transcript thread. Defaults to store.DefaultSession.
	Session string

	// HistoryDepth is the number of prior turns (user+assistant pairs)
	// replayed to the model. Zero sends each question on its own.
	HistoryDepth int

	// MaxContextTokens is the estimated token budget for the full request.
	// Replayed history is trimmed oldest-first to fit. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Source identifies one chunk that was placed in the prompt.
type Source struct {
	Name       string  `json:"name"`
	Hash       string  `json:"hash"`
	ChunkIndex int     `json:"chunk_index"`
	Distance   float32 `json:"distance"`
}

// Answer is the outcome of one question. A chat failure is reported in Text
// as "Error: ..." with Err set, so callers always have something to show.
type Answer struct {
	Text    string
	Sources []Source
	Err     error
}

// Agent is the question-answering orchestrator.
type Agent struct {
	chat             model.BaseChatModel
	retriever        rag.Retriever
	topK             int
	contextLimit     int
	maxTokens        int
	temperature      *float32
	transcript       store.TranscriptStore
	session          string
	historyDepth     int
	maxContextTokens int
	now              func() time.Time
}

// New constructs an Agent from the provided Config.
func New(cfg *Config) (*Agent, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("agent: Retriever must not be nil")
	}

	a := &Agent{
		chat:             cfg.ChatModel,
		retriever:        cfg.Retriever,
		topK:             cfg.TopK,
		contextLimit:     cfg.ContextLimit,
		maxTokens:        cfg.MaxTokens,
		temperature:      cfg.Temperature,
		transcript:       cfg.Transcript,
		session:          cfg.Session,
		historyDepth:     max(0, cfg.HistoryDepth),
		maxContextTokens: cfg.MaxContextTokens,
		now:              time.Now,
	}
	if a.topK <= 0 {
		a.topK = rag.DefaultTopK
	}
	if a.contextLimit <= 0 {
		a.contextLimit = prompt.DefaultLimit
	}
	if a.session == "" {
		a.session = store.DefaultSession
	}
	if a.maxContextTokens <= 0 {
		a.maxContextTokens = budget.DefaultMaxContextTokens
	}
	return a, nil
}

// Ask answers question from the indexed documents. It never returns a Go
// error: failures surface through Answer.Err.
func (a *Agent) Ask(ctx context.Context, question string) Answer {
	log := logging.FromContext(ctx)
	question = strings.TrimSpace(question)

	results, err := a.retriever.Retrieve(ctx, question, a.topK)
	if err != nil {
		log.Warn("retrieval failed, continuing without context", slog.Any("error", err))
		results = nil
	}

	passages := make([]prompt.Passage, 0, len(results))
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		passages = append(passages, prompt.Passage{
			Text:       r.Text,
			Source:     r.Metadata.DocName,
			ChunkIndex: r.Metadata.ChunkIndex,
			Distance:   r.Distance,
		})
		sources = append(sources, Source{
			Name:       r.Metadata.DocName,
			Hash:       r.Metadata.DocHash,
			ChunkIndex: r.Metadata.ChunkIndex,
			Distance:   r.Distance,
		})
	}

	messages := a.buildMessages(ctx, prompt.Build(question, passages, a.contextLimit))

	var opts []model.Option
	if a.maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(a.maxTokens))
	}
	if a.temperature != nil {
		opts = append(opts, model.WithTemperature(*a.temperature))
	}

	start := a.now()
	ans := Answer{Sources: sources}
	reply, err := a.chat.Generate(ctx, messages, opts...)
	switch {
	case err != nil:
		ans.Err = fmt.Errorf("agent: chat failed: %w", err)
		ans.Text = "Error: " + err.Error()
	case reply == nil:
		ans.Err = fmt.Errorf("agent: chat returned no message")
		ans.Text = "Error: " + ans.Err.Error()
	default:
		ans.Text = strings.TrimSpace(reply.Content)
	}

	log.Info("question answered",
		slog.Int("passages", len(passages)),
		slog.Duration("duration", a.now().Sub(start)),
		slog.Bool("failed", ans.Err != nil),
	)

	a.record(ctx, question, ans.Text)
	return ans
}

// record appends the turn to the transcript. Failures are logged only.
func (a *Agent) record(ctx context.Context, question, answer string) {
	if a.transcript == nil {
		return
	}
	log := logging.FromContext(ctx)
	if err := a.transcript.Append(ctx, a.session, store.RoleUser, question); err != nil {
		log.Warn("transcript: failed to persist user message", slog.Any("error", err))
	}
	if err := a.transcript.Append(ctx, a.session, store.RoleAssistant, answer); err != nil {
		log.Warn("transcript: failed to persist assistant message", slog.Any("error", err))
	}
}

// buildMessages returns [system, ...history, user]. History is only loaded
// when HistoryDepth is positive and is trimmed to the token budget.
func (a *Agent) buildMessages(ctx context.Context, userPrompt string) []*schema.Message {
	system := schema.SystemMessage(prompt.System)
	user := schema.UserMessage(userPrompt)

	if a.transcript == nil || a.historyDepth == 0 {
		return []*schema.Message{system, user}
	}

	log := logging.FromContext(ctx)
	prior, err := a.transcript.Recent(ctx, a.session, a.historyDepth*2)
	if err != nil {
		log.Warn("transcript: failed to load prior messages", slog.Any("error", err))
		return []*schema.Message{system, user}
	}

	history := make([]*schema.Message, 0, len(prior))
	for _, m := range prior {
		switch m.Role {
		case store.RoleUser:
			history = append(history, schema.UserMessage(m.Content))
		case store.RoleAssistant:
			history = append(history, schema.AssistantMessage(m.Content, nil))
		}
	}

	before := len(history)
	history = budget.TrimHistory([]*schema.Message{system, user}, history, a.maxContextTokens)
	if dropped := before - len(history); dropped > 0 {
		log.Warn("budget: dropped history messages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(history)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}

	out := make([]*schema.Message, 0, len(history)+2)
	out = append(out, system)
	out = append(out, history...)
	return append(out, user)
}
