package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"
)

// Default generation settings.
const (
	DefaultMaxTokens   = 800
	DefaultTemperature = 0.2
)

// constructor builds the chat model of one backend from a validated Config.
type constructor func(ctx context.Context, cfg *Config) (model.BaseChatModel, error)

var constructors = map[Backend]constructor{
	BackendOllama:  newOllama,
	BackendOpenAI:  newOpenAI,
	BackendAzure:   newAzure,
	BackendBedrock: newBedrock,
	BackendArk:     newArk,
	BackendGemini:  newGemini,
}

// ConfigFromEnv reads the provider configuration from the process
// environment. See ConfigFrom for the variables consulted.
func ConfigFromEnv() *Config {
	return ConfigFrom(os.Getenv)
}

// ConfigFrom resolves the provider configuration through getenv. Unset
// variables take these defaults:
//
//	MODEL_PROVIDER            ollama (ollama | openai | azure | bedrock | ark | gemini)
//	OLLAMA_HOST, OLLAMA_MODEL http://localhost:11434, llama3
//	OPENAI_MODEL              gpt-4o
//	AZURE_OPENAI_API_VERSION  2024-02-01
//	AWS_REGION                us-east-1
//	BEDROCK_MODEL_ID          anthropic.claude-3-haiku-20240307-v1:0
//	GEMINI_MODEL              gemini-1.5-pro
//	MODEL_MAX_TOKENS          800
//	MODEL_TEMPERATURE         0.2
//
// Credentials (OPENAI_API_KEY, AZURE_OPENAI_*, ARK_*, GOOGLE_API_KEY) have no
// default. Bedrock authenticates through the AWS SDK credential chain.
// Unparseable numbers fall back to their defaults.
func ConfigFrom(getenv func(string) string) *Config {
	env := lookup(getenv)
	return &Config{
		Backend: Backend(env.or("MODEL_PROVIDER", string(BackendOllama))),
		Ollama: ProviderOllama{
			Host:  env.or("OLLAMA_HOST", "http://localhost:11434"),
			Model: env.or("OLLAMA_MODEL", "llama3"),
		},
		OpenAI: ProviderOpenAI{
			APIKey: getenv("OPENAI_API_KEY"),
			Model:  env.or("OPENAI_MODEL", "gpt-4o"),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     getenv("AZURE_OPENAI_API_KEY"),
			Endpoint:   getenv("AZURE_OPENAI_ENDPOINT"),
			Deployment: getenv("AZURE_OPENAI_DEPLOYMENT"),
			APIVersion: env.or("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		},
		Bedrock: ProviderBedrock{
			AWSRegion: env.or("AWS_REGION", "us-east-1"),
			Profile:   getenv("AWS_PROFILE"),
			ModelID:   env.or("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
		},
		Ark: ProviderArk{
			APIKey:  getenv("ARK_API_KEY"),
			Model:   getenv("ARK_MODEL"),
			BaseURL: getenv("ARK_BASE_URL"),
		},
		Gemini: ProviderGemini{
			APIKey: getenv("GOOGLE_API_KEY"),
			Model:  env.or("GEMINI_MODEL", "gemini-1.5-pro"),
		},
		Tuning: SharedTuning{
			MaxTokens:   env.intOr("MODEL_MAX_TOKENS", DefaultMaxTokens),
			Temperature: env.float32Or("MODEL_TEMPERATURE", DefaultTemperature),
		},
	}
}

// NewFromEnv constructs a chat model from ConfigFromEnv.
func NewFromEnv(ctx context.Context) (model.BaseChatModel, error) {
	return New(ctx, ConfigFromEnv())
}

// New validates cfg and constructs the chat model of its backend.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	build, ok := constructors[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("provider: unknown backend %q", cfg.Backend)
	}
	return build(ctx, cfg)
}

// lookup adds typed, defaulted reads to an environment getter.
type lookup func(string) string

func (l lookup) or(key, fallback string) string {
	if v := l(key); v != "" {
		return v
	}
	return fallback
}

func (l lookup) intOr(key string, fallback int) int {
	if n, err := strconv.Atoi(l(key)); err == nil {
		return n
	}
	return fallback
}

func (l lookup) float32Or(key string, fallback float32) float32 {
	if f, err := strconv.ParseFloat(l(key), 32); err == nil {
		return float32(f)
	}
	return fallback
}
