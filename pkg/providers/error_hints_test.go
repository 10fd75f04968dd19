package providers

import (
	"net/http"
	"strings"
	"testing"
)

func TestAugmentProviderError_OpenRouterCreditsHint(t *testing.T) {
	msg := augmentProviderError(ProviderOpenRouter, http.StatusPaymentRequired, "Insufficient credits")
	if !strings.Contains(msg, "fallback events") {
		t.Fatalf("expected credits hint, got %q", msg)
	}
}

func TestAugmentProviderError_OpenRouterAuthHint(t *testing.T) {
	msg := augmentProviderError(ProviderOpenRouter, http.StatusUnauthorized, "No auth credentials found")
	if !strings.Contains(msg, "LOREWEAVER_PROVIDERS_OPENROUTER_API_KEY") {
		t.Fatalf("expected api key hint, got %q", msg)
	}
}

func TestAugmentProviderError_UnknownModelHint(t *testing.T) {
	msg := augmentProviderError(ProviderOpenRouter, http.StatusNotFound, "No endpoints found for acme/model-x.")
	if !strings.Contains(msg, "generator.model") {
		t.Fatalf("expected model hint, got %q", msg)
	}
}

func TestAugmentProviderError_PassesThroughOtherErrors(t *testing.T) {
	msg := augmentProviderError(ProviderOpenRouter, http.StatusBadRequest, "  bad request  ")
	if msg != "bad request" {
		t.Fatalf("expected trimmed message unchanged, got %q", msg)
	}
}
