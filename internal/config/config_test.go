package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// unsetAll clears keys for the duration of the test. t.Setenv registers the
// restore; the Unsetenv makes the key truly absent rather than empty.
func unsetAll(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	t.Parallel()

	path, err := Load("/nonexistent/path/config.yaml", slog.Default())
	if err == nil || !strings.Contains(err.Error(), "--config") {
		t.Fatalf("err = %v, want a --config error", err)
	}
	if path != "" {
		t.Errorf("path = %q", path)
	}
}

func TestLoad_NothingToFind(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DOCRAG_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	path, err := Load("", slog.Default())
	if err != nil || path != "" {
		t.Errorf("Load = %q, %v; want no file and no error", path, err)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: bedrock
  max_tokens: 800
  temperature: 0.2
  bedrock:
    region: eu-west-1
    model_id: anthropic.claude-3-haiku-20240307-v1:0
    embed_model_id: amazon.titan-embed-text-v1
embedding:
  provider: bedrock
  batch_size: 16
vector:
  backend: qdrant
  qdrant:
    host: qdrant.internal
    port: 6334
    collection: my-docs
rag:
  chunk_size: 800
  chunk_overlap: 100
  top_k: 4
server:
  rate_limit: 2.5
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":         "bedrock",
		"MODEL_MAX_TOKENS":       "800",
		"MODEL_TEMPERATURE":      "0.2",
		"AWS_REGION":             "eu-west-1",
		"BEDROCK_MODEL_ID":       "anthropic.claude-3-haiku-20240307-v1:0",
		"BEDROCK_EMBED_MODEL_ID": "amazon.titan-embed-text-v1",
		"EMBEDDING_PROVIDER":     "bedrock",
		"EMBEDDING_BATCH_SIZE":   "16",
		"VECTOR_BACKEND":         "qdrant",
		"QDRANT_HOST":            "qdrant.internal",
		"QDRANT_PORT":            "6334",
		"QDRANT_COLLECTION":      "my-docs",
		"CHUNK_SIZE":             "800",
		"CHUNK_OVERLAP":          "100",
		"RAG_TOP_K":              "4",
		"DOCRAG_RATE_LIMIT":      "2.5",
		"LOG_LEVEL":              "debug",
		"LOG_FORMAT":             "text",
	}
	keys := make([]string, 0, len(checks))
	for k := range checks {
		keys = append(keys, k)
	}
	unsetAll(t, keys...)

	loaded, err := Load(cfgPath, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
vector:
  backend: qdrant
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MODEL_PROVIDER", "azure")
	t.Setenv("VECTOR_BACKEND", "memory")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "azure" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "azure", got)
	}
	if got := os.Getenv("VECTOR_BACKEND"); got != "memory" {
		t.Errorf("VECTOR_BACKEND: expected env override %q, got %q", "memory", got)
	}
}

func TestLoad_ConfigEnvVar(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "docrag.yaml")
	if err := os.WriteFile(cfgPath, []byte("rag:\n  top_k: 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCRAG_CONFIG", cfgPath)
	unsetAll(t, "RAG_TOP_K")

	loaded, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("RAG_TOP_K"); got != "9" {
		t.Errorf("RAG_TOP_K: got %q", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, slog.Default()); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DOCRAG_API_KEY=from-file\nOPENAI_API_KEY=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	unsetAll(t, "DOCRAG_API_KEY")
	t.Setenv("OPENAI_API_KEY", "from-env")

	loaded, err := LoadDotEnv(path, slog.Default())
	if err != nil || !loaded {
		t.Fatalf("LoadDotEnv = %v, %v", loaded, err)
	}
	if got := os.Getenv("DOCRAG_API_KEY"); got != "from-file" {
		t.Errorf("DOCRAG_API_KEY = %q", got)
	}
	if got := os.Getenv("OPENAI_API_KEY"); got != "from-env" {
		t.Errorf("OPENAI_API_KEY should keep env value, got %q", got)
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	t.Parallel()
	loaded, err := LoadDotEnv(filepath.Join(t.TempDir(), ".env"), slog.Default())
	if err != nil || loaded {
		t.Errorf("LoadDotEnv on missing file = %v, %v", loaded, err)
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		got, want string
	}{
		{format(float32(0)), ""},
		{format(float32(0.2)), "0.2"},
		{format(float32(0.3)), "0.3"},
		{format(float32(1)), "1"},
		{format(2.5), "2.5"},
		{format(0), ""},
		{format(6334), "6334"},
		{format(false), ""},
		{format(true), "true"},
	}
	for i, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("case %d: format = %q, want %q", i, tc.got, tc.want)
		}
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("rag:\n  topk: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, slog.Default()); err == nil || !strings.Contains(err.Error(), "topk") {
		t.Errorf("err = %v, want unknown field error", err)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if got, err := Load(path, slog.Default()); err != nil || got != path {
		t.Errorf("Load(empty) = %q, %v", got, err)
	}
}

func TestLoad_WarnsWhenCredentialsAreReadable(t *testing.T) {
	unsetAll(t, "DOCRAG_API_KEY")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  api_key: s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if _, err := Load(path, slog.New(slog.NewTextHandler(&buf, nil))); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.Contains(buf.String(), "readable by other users") {
		t.Errorf("expected permission warning, log: %s", buf.String())
	}
	if strings.Contains(buf.String(), "s3cret") {
		t.Error("credential value leaked into the log")
	}
	if got := os.Getenv("DOCRAG_API_KEY"); got != "s3cret" {
		t.Errorf("DOCRAG_API_KEY = %q", got)
	}
}
