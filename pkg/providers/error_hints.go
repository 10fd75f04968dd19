package providers

import (
	"net/http"
	"strings"
)

// augmentProviderError appends a configuration hint to provider errors the
// player can fix themselves.
func augmentProviderError(providerName string, status int, message string) string {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return msg
	}
	if NormalizeProviderName(providerName) != ProviderOpenRouter {
		return msg
	}

	lower := strings.ToLower(msg)
	switch {
	case status == http.StatusUnauthorized || strings.Contains(lower, "no auth credentials") || strings.Contains(lower, "invalid api key"):
		return msg + " Hint: check providers.openrouter.api_key or LOREWEAVER_PROVIDERS_OPENROUTER_API_KEY."
	case status == http.StatusPaymentRequired || strings.Contains(lower, "insufficient credits"):
		return msg + " Hint: the OpenRouter account has no credits left; story generation will use fallback events until it is topped up."
	case strings.Contains(lower, "no endpoints found"):
		return msg + " Hint: the configured generator.model is not served by OpenRouter; pick another model id."
	case status == http.StatusTooManyRequests:
		return msg + " Hint: rate limited by OpenRouter; retry the choice in a moment."
	}
	return msg
}
