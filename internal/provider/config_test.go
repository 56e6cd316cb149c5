package provider

import (
	"strings"
	"testing"
)

// envMap is a getenv backed by a map, so config tests can run in parallel.
type envMap map[string]string

func (m envMap) get(k string) string { return m[k] }

// complete returns a Config that validates for backend b.
func complete(b Backend) Config {
	return Config{
		Backend:     b,
		Ollama:      ProviderOllama{Host: "http://localhost:11434", Model: "llama3"},
		OpenAI:      ProviderOpenAI{APIKey: "sk-test", Model: "gpt-4o"},
		AzureOpenAI: ProviderAzureOpenAI{APIKey: "key", Endpoint: "https://docs.openai.azure.com", Deployment: "gpt-4o", APIVersion: "2024-02-01"},
		Bedrock:     ProviderBedrock{AWSRegion: "eu-west-1", ModelID: "anthropic.claude-3-haiku-20240307-v1:0"},
		Ark:         ProviderArk{APIKey: "ark-key", Model: "ep-123"},
		Gemini:      ProviderGemini{APIKey: "AIza-test", Model: "gemini-1.5-pro"},
		Tuning:      SharedTuning{MaxTokens: DefaultMaxTokens, Temperature: DefaultTemperature},
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend Backend
		mutate  func(*Config)
		wantErr []string
	}{
		{name: "ollama ok", backend: BackendOllama},
		{name: "openai ok", backend: BackendOpenAI},
		{name: "azure ok", backend: BackendAzure},
		{name: "bedrock ok", backend: BackendBedrock},
		{name: "ark ok", backend: BackendArk},
		{name: "gemini ok", backend: BackendGemini},
		{name: "zero max tokens defers to backend", backend: BackendOllama, mutate: func(c *Config) { c.Tuning.MaxTokens = 0 }},

		{name: "ollama model", backend: BackendOllama, mutate: func(c *Config) { c.Ollama.Model = "" }, wantErr: []string{"OLLAMA_MODEL"}},
		{name: "openai key is blank", backend: BackendOpenAI, mutate: func(c *Config) { c.OpenAI.APIKey = "  " }, wantErr: []string{"OPENAI_API_KEY"}},
		{
			name:    "azure reports every gap",
			backend: BackendAzure,
			mutate:  func(c *Config) { c.AzureOpenAI = ProviderAzureOpenAI{} },
			wantErr: []string{"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT"},
		},
		{name: "bedrock region", backend: BackendBedrock, mutate: func(c *Config) { c.Bedrock.AWSRegion = "" }, wantErr: []string{"AWS_REGION"}},
		{name: "ark model", backend: BackendArk, mutate: func(c *Config) { c.Ark.Model = "" }, wantErr: []string{"ARK_MODEL"}},
		{name: "gemini key", backend: BackendGemini, mutate: func(c *Config) { c.Gemini.APIKey = "" }, wantErr: []string{"GOOGLE_API_KEY"}},
		{name: "unknown backend", backend: "llamafile", wantErr: []string{"unknown backend", "llamafile"}},
		{name: "negative max tokens", backend: BackendOllama, mutate: func(c *Config) { c.Tuning.MaxTokens = -1 }, wantErr: []string{"MODEL_MAX_TOKENS"}},
		{name: "temperature too high", backend: BackendOllama, mutate: func(c *Config) { c.Tuning.Temperature = 2.5 }, wantErr: []string{"MODEL_TEMPERATURE"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := complete(tc.backend)
			if tc.mutate != nil {
				tc.mutate(&cfg)
			}
			err := cfg.Validate()
			if len(tc.wantErr) == 0 {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want %v", tc.wantErr)
			}
			for _, want := range tc.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("Validate() = %q, missing %q", err, want)
				}
			}
		})
	}
}

func TestIsAzureReasoningModel(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"o1": true, "o1-preview": true, "o3-mini": true, "o4-mini": true, "O3-Mini": true,
		"codex-mini": true, "codex": true,
		"gpt-5.2-codex": false, "gpt-4o": false, "gpt-35-turbo": false, "omni-search": false, "": false,
	}
	for deployment, want := range cases {
		if got := isAzureReasoningModel(deployment); got != want {
			t.Errorf("isAzureReasoningModel(%q) = %v, want %v", deployment, got, want)
		}
	}
}

func TestConfigFrom_Defaults(t *testing.T) {
	t.Parallel()

	cfg := ConfigFrom(envMap{}.get)
	if cfg.Backend != BackendOllama || cfg.ModelName() != "llama3" {
		t.Errorf("backend = %s, model = %s", cfg.Backend, cfg.ModelName())
	}
	if cfg.Tuning != (SharedTuning{MaxTokens: DefaultMaxTokens, Temperature: DefaultTemperature}) {
		t.Errorf("tuning = %+v", cfg.Tuning)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestConfigFrom_Overrides(t *testing.T) {
	t.Parallel()

	cfg := ConfigFrom(envMap{
		"MODEL_PROVIDER":    "bedrock",
		"BEDROCK_MODEL_ID":  "anthropic.claude-3-5-sonnet",
		"AWS_PROFILE":       "docs",
		"MODEL_MAX_TOKENS":  "1200",
		"MODEL_TEMPERATURE": "not-a-number",
	}.get)

	if cfg.Backend != BackendBedrock || cfg.ModelName() != "anthropic.claude-3-5-sonnet" {
		t.Errorf("bedrock selection: %s %s", cfg.Backend, cfg.ModelName())
	}
	if cfg.Bedrock.Profile != "docs" || cfg.Bedrock.AWSRegion != "us-east-1" {
		t.Errorf("bedrock section = %+v", cfg.Bedrock)
	}
	if cfg.Tuning.MaxTokens != 1200 {
		t.Errorf("max tokens = %d", cfg.Tuning.MaxTokens)
	}
	if cfg.Tuning.Temperature != DefaultTemperature {
		t.Errorf("unparseable temperature must fall back, got %v", cfg.Tuning.Temperature)
	}
}

func TestModelName(t *testing.T) {
	t.Parallel()

	want := map[Backend]string{
		BackendOllama:  "llama3",
		BackendOpenAI:  "gpt-4o",
		BackendAzure:   "gpt-4o",
		BackendBedrock: "anthropic.claude-3-haiku-20240307-v1:0",
		BackendArk:     "ep-123",
		BackendGemini:  "gemini-1.5-pro",
	}
	for b, name := range want {
		cfg := complete(b)
		if got := cfg.ModelName(); got != name {
			t.Errorf("%s: ModelName() = %q, want %q", b, got, name)
		}
	}
	if got := (&Config{Backend: "other"}).ModelName(); got != "" {
		t.Errorf("unknown backend ModelName() = %q", got)
	}
}

func TestConstructorsCoverEveryBackend(t *testing.T) {
	t.Parallel()
	for _, b := range []Backend{BackendOllama, BackendOpenAI, BackendAzure, BackendBedrock, BackendArk, BackendGemini} {
		if constructors[b] == nil {
			t.Errorf("no constructor for %s", b)
		}
	}
}
