// Package provider selects and constructs the chat model that answers
// questions. Every backend is exposed as an eino model.BaseChatModel so the
// agent does not depend on a vendor SDK.
// Supported backends: Ollama, OpenAI, Azure OpenAI, AWS Bedrock, Volcengine
// Ark, Google Gemini.
package provider

import (
	"errors"
	"fmt"
	"strings"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock selects AWS Bedrock through the Converse API.
	BackendBedrock Backend = "bedrock"
	// BackendArk selects the Volcengine Ark model runtime.
	BackendArk Backend = "ark"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	// Host is the Ollama base URL (OLLAMA_HOST).
	Host string
	// Model is the model tag (OLLAMA_MODEL).
	Model string
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	// APIKey is the OpenAI key (OPENAI_API_KEY).
	APIKey string
	// Model is the model name (OPENAI_MODEL).
	Model string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	// APIKey is the resource key (AZURE_OPENAI_API_KEY).
	APIKey string
	// Endpoint is the resource URL (AZURE_OPENAI_ENDPOINT).
	Endpoint string
	// Deployment is the deployment name (AZURE_OPENAI_DEPLOYMENT).
	Deployment string
	// APIVersion is the REST API version (AZURE_OPENAI_API_VERSION).
	APIVersion string
}

// ProviderBedrock holds AWS Bedrock settings. Credentials come from the AWS
// SDK chain (env vars, shared config, SSO, instance profile).
type ProviderBedrock struct {
	// AWSRegion is the region hosting the model (AWS_REGION).
	AWSRegion string
	// Profile is an optional shared-config profile (AWS_PROFILE).
	Profile string
	// ModelID is the Bedrock model ID (BEDROCK_MODEL_ID).
	ModelID string
}

// ProviderArk holds Volcengine Ark settings.
type ProviderArk struct {
	// APIKey is the Ark key (ARK_API_KEY).
	APIKey string
	// Model is the endpoint or model ID (ARK_MODEL).
	Model string
	// BaseURL optionally overrides the regional endpoint (ARK_BASE_URL).
	BaseURL string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	// APIKey is the AI Studio key (GOOGLE_API_KEY).
	APIKey string
	// Model is the model name (GEMINI_MODEL).
	Model string
}

// SharedTuning holds generation settings applied to every backend.
type SharedTuning struct {
	// MaxTokens caps the number of tokens generated per answer.
	MaxTokens int
	// Temperature controls response randomness, 0 to 2.
	Temperature float32
}

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the section matching
// Backend is consulted.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Bedrock     ProviderBedrock
	Ark         ProviderArk
	Gemini      ProviderGemini

	// Tuning applies to every backend.
	Tuning SharedTuning
}

// setting pairs an environment variable with the value resolved for it.
type setting struct {
	env   string
	value string
}

// required lists the settings the selected backend cannot start without.
// ok is false for an unknown backend.
func (c *Config) required() (settings []setting, ok bool) {
	switch c.Backend {
	case BackendOllama:
		return []setting{{"OLLAMA_MODEL", c.Ollama.Model}}, true
	case BackendOpenAI:
		return []setting{{"OPENAI_API_KEY", c.OpenAI.APIKey}, {"OPENAI_MODEL", c.OpenAI.Model}}, true
	case BackendAzure:
		return []setting{
			{"AZURE_OPENAI_API_KEY", c.AzureOpenAI.APIKey},
			{"AZURE_OPENAI_ENDPOINT", c.AzureOpenAI.Endpoint},
			{"AZURE_OPENAI_DEPLOYMENT", c.AzureOpenAI.Deployment},
		}, true
	case BackendBedrock:
		return []setting{{"BEDROCK_MODEL_ID", c.Bedrock.ModelID}, {"AWS_REGION", c.Bedrock.AWSRegion}}, true
	case BackendArk:
		return []setting{{"ARK_API_KEY", c.Ark.APIKey}, {"ARK_MODEL", c.Ark.Model}}, true
	case BackendGemini:
		return []setting{{"GOOGLE_API_KEY", c.Gemini.APIKey}, {"GEMINI_MODEL", c.Gemini.Model}}, true
	}
	return nil, false
}

// Validate reports every missing setting of the selected backend, naming the
// environment variable that supplies it, and rejects out-of-range tuning.
// A zero MaxTokens leaves the limit to the backend.
func (c *Config) Validate() error {
	settings, ok := c.required()
	if !ok {
		return fmt.Errorf("provider: unknown backend %q (valid: ollama, openai, azure, bedrock, ark, gemini)", c.Backend)
	}

	var errs []error
	for _, st := range settings {
		if strings.TrimSpace(st.value) == "" {
			errs = append(errs, fmt.Errorf("provider: %s is required for %s backend", st.env, c.Backend))
		}
	}
	if c.Tuning.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("provider: MODEL_MAX_TOKENS must not be negative, got %d", c.Tuning.MaxTokens))
	}
	if t := c.Tuning.Temperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("provider: MODEL_TEMPERATURE must be within [0, 2], got %v", t))
	}
	return errors.Join(errs...)
}

// ModelName returns the model identifier of the selected backend, for logs
// and trace metadata.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendBedrock:
		return c.Bedrock.ModelID
	case BackendArk:
		return c.Ark.Model
	case BackendGemini:
		return c.Gemini.Model
	}
	return ""
}

// isAzureReasoningModel reports whether an Azure deployment name refers to an
// o-series or codex reasoning model. Those reject max_tokens and temperature
// and take max_completion_tokens instead.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	if strings.HasPrefix(d, "codex") {
		return true
	}
	return len(d) >= 2 && d[0] == 'o' && d[1] >= '0' && d[1] <= '9'
}
