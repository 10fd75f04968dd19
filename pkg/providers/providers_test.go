package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dotsetgreg/loreweaver/pkg/config"
)

func TestCreateProvider_OpenRouter_DefaultSelection(t *testing.T) {
	var seenAuth, seenPath, seenTitle string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("Authorization")
		seenPath = r.URL.Path
		seenTitle = r.Header.Get("X-Title")
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if got := req["model"]; got != defaultOpenRouterModel {
			t.Errorf("expected default model %q, got %v", defaultOpenRouterModel, got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Providers.OpenRouter.APIKey = "or-key"
	cfg.Providers.OpenRouter.APIBase = server.URL
	cfg.Generator.Provider = ""

	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	resp, err := provider.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("expected response content ok, got %q", resp.Content)
	}
	if seenAuth != "Bearer or-key" {
		t.Fatalf("expected openrouter auth bearer, got %q", seenAuth)
	}
	if seenPath != "/chat/completions" {
		t.Fatalf("expected /chat/completions path, got %q", seenPath)
	}
	if seenTitle != openRouterAppTitle {
		t.Fatalf("expected X-Title header, got %q", seenTitle)
	}
}

func TestChat_SendsGenerationOptions(t *testing.T) {
	var req map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":[{"type":"text","text":"{\"a\":"},{"type":"text","text":"1}"}]},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Providers.OpenRouter.APIKey = "or-key"
	cfg.Providers.OpenRouter.APIBase = server.URL

	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	resp, err := provider.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "acme/story-1", map[string]interface{}{
		"max_tokens":  512,
		"temperature": 0.7,
		"json_mode":   true,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != `{"a":1}` {
		t.Fatalf("expected flattened content, got %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 5 {
		t.Fatalf("expected usage to be parsed, got %+v", resp.Usage)
	}
	if req["model"] != "acme/story-1" {
		t.Fatalf("expected model override, got %v", req["model"])
	}
	if req["max_tokens"] != float64(512) {
		t.Fatalf("expected max_tokens 512, got %v", req["max_tokens"])
	}
	format, _ := req["response_format"].(map[string]interface{})
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", req["response_format"])
	}
}

func TestChat_NonSuccessReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit exceeded","code":429}}`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Providers.OpenRouter.APIKey = "or-key"
	cfg.Providers.OpenRouter.APIBase = server.URL

	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	_, err = provider.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || !apiErr.Retryable() {
		t.Fatalf("expected retryable 429, got %+v", apiErr)
	}
	if !strings.Contains(apiErr.Message, "Rate limit exceeded") || !strings.Contains(apiErr.Message, "Hint:") {
		t.Fatalf("expected upstream message with hint, got %q", apiErr.Message)
	}
}

func TestCreateProvider_UsesAPIKeyFile(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "openrouter.json")
	if err := os.WriteFile(keyFile, []byte(`{"api_key":"from-file"}`), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	var seenAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Providers.OpenRouter.APIKeyFile = keyFile
	cfg.Providers.OpenRouter.APIBase = server.URL

	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	if _, err := provider.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "", nil); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if seenAuth != "Bearer from-file" {
		t.Fatalf("expected key from file, got %q", seenAuth)
	}

	name, configured, mode, err := ProviderCredentialStatus(cfg)
	if err != nil || name != ProviderOpenRouter || !configured || mode != authModeAPIKeyFile {
		t.Fatalf("unexpected credential status: %s %v %s %v", name, configured, mode, err)
	}
}

func TestValidateProviderConfig_RejectsMultipleCredentialSources(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.OpenRouter.APIKey = "inline"
	cfg.Providers.OpenRouter.APIKeyFile = "/tmp/key"

	err := ValidateProviderConfig(cfg)
	if want := "multiple OpenRouter credentials configured"; err == nil || !strings.Contains(err.Error(), want) {
		t.Fatalf("expected %q error, got %v", want, err)
	}
}

func TestValidateProviderConfig_MissingKeyFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.OpenRouter.APIKeyFile = filepath.Join(t.TempDir(), "missing")

	if err := ValidateProviderConfig(cfg); err == nil || !strings.Contains(err.Error(), "not accessible") {
		t.Fatalf("expected inaccessible key file error, got %v", err)
	}
}

func TestCreateProvider_UnsupportedProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generator.Provider = "does-not-exist"

	if _, err := CreateProvider(cfg); err == nil {
		t.Fatalf("expected unsupported provider error")
	}
}

func TestValidateProviderConfig_MissingCredentials(t *testing.T) {
	cfg := config.DefaultConfig()

	if err := ValidateProviderConfig(cfg); err == nil {
		t.Fatalf("expected missing credentials error for openrouter")
	}
	if _, configured, _, _ := ProviderCredentialStatus(cfg); configured {
		t.Fatalf("expected credentials to be reported as missing")
	}
}

func TestProviderSelection_NormalizesAndRejectsUnknown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.OpenRouter.APIKey = "or-key"
	cfg.Generator.Provider = "  OpenRouter "

	name, configured, mode, err := ProviderCredentialStatus(cfg)
	if err != nil || name != ProviderOpenRouter || !configured || mode != authModeAPIKey {
		t.Fatalf("unexpected credential status: %s %v %s %v", name, configured, mode, err)
	}

	cfg.Generator.Provider = "anthropic"
	name, configured, _, err = ProviderCredentialStatus(cfg)
	if err == nil || !strings.Contains(err.Error(), `unsupported provider "anthropic"`) {
		t.Fatalf("expected unsupported provider error, got %v", err)
	}
	if name != "anthropic" || configured {
		t.Fatalf("unexpected status for unsupported provider: %s %v", name, configured)
	}
	if err := ValidateProviderConfig(cfg); err == nil {
		t.Fatalf("expected validation to reject unsupported provider")
	}
}
