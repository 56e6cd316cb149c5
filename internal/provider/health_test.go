package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewHealthCheck_Backends(t *testing.T) {
	t.Parallel()
	tests := []struct {
		backend Backend
		wantNil bool
	}{
		{BackendOllama, false},
		{BackendOpenAI, false},
		{BackendAzure, false},
		{BackendGemini, false},
		{BackendBedrock, true},
		{BackendArk, true},
	}
	for _, tt := range tests {
		hc := NewHealthCheck(&Config{Backend: tt.backend})
		if (hc == nil) != tt.wantNil {
			t.Errorf("%s: nil=%v, want nil=%v", tt.backend, hc == nil, tt.wantNil)
		}
	}
}

func TestHealthCheck_Ollama(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	hc := NewHealthCheck(&Config{Backend: BackendOllama, Ollama: ProviderOllama{Host: srv.URL + "/"}})
	if err := hc.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestHealthCheck_AzureSendsKeyAndReportsStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "az-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("api-version") != "2024-02-01" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	good := NewHealthCheck(&Config{Backend: BackendAzure, AzureOpenAI: ProviderAzureOpenAI{
		APIKey: "az-key", Endpoint: srv.URL, APIVersion: "2024-02-01",
	}})
	if err := good.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}

	bad := NewHealthCheck(&Config{Backend: BackendAzure, AzureOpenAI: ProviderAzureOpenAI{
		APIKey: "wrong", Endpoint: srv.URL, APIVersion: "2024-02-01",
	}})
	err := bad.HealthCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("want 401 error, got %v", err)
	}
	if strings.Contains(err.Error(), "api-version") {
		t.Errorf("query string should be redacted: %v", err)
	}
}
