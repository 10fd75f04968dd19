package providers

import (
	"fmt"
	"strings"

	"github.com/dotsetgreg/loreweaver/pkg/config"
)

const (
	defaultOpenRouterAPIBase = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "openai/gpt-5.2"
	openRouterAppTitle       = "Loreweaver"
)

func resolveOpenRouterCredential(cfg *config.Config) (credentialCandidate, error) {
	if cfg == nil {
		return credentialCandidate{}, fmt.Errorf("config is required")
	}
	or := cfg.Providers.OpenRouter
	var candidates []credentialCandidate
	if key := strings.TrimSpace(or.APIKey); key != "" {
		candidates = append(candidates, credentialCandidate{mode: authModeAPIKey, source: key, field: "providers.openrouter.api_key"})
	}
	if path := strings.TrimSpace(or.APIKeyFile); path != "" {
		candidates = append(candidates, credentialCandidate{mode: authModeAPIKeyFile, source: path, field: "providers.openrouter.api_key_file"})
	}
	return selectSingleCredential(candidates,
		"OpenRouter API key is required (set providers.openrouter.api_key or LOREWEAVER_PROVIDERS_OPENROUTER_API_KEY)",
		"multiple OpenRouter credentials configured")
}

func validateOpenRouterConfig(cfg *config.Config) error {
	cred, err := resolveOpenRouterCredential(cfg)
	if err != nil {
		return err
	}
	return validateKeyFileSource(cred)
}

func openRouterCredentialStatus(cfg *config.Config) (bool, string) {
	cred, err := resolveOpenRouterCredential(cfg)
	if err != nil {
		return false, ""
	}
	return true, cred.mode
}

func newOpenRouterProviderFromConfig(cfg *config.Config) (LLMProvider, error) {
	if err := validateOpenRouterConfig(cfg); err != nil {
		return nil, err
	}
	cred, _ := resolveOpenRouterCredential(cfg)

	var source TokenSource
	if cred.mode == authModeAPIKeyFile {
		source = NewFileTokenSource(cred.source)
	} else {
		source = NewStaticTokenSource(cred.source, cred.field)
	}

	apiBase := strings.TrimSpace(cfg.Providers.OpenRouter.APIBase)
	if apiBase == "" {
		apiBase = defaultOpenRouterAPIBase
	}
	model := strings.TrimSpace(cfg.Generator.Model)
	if model == "" {
		model = defaultOpenRouterModel
	}
	return newChatCompletionsProvider(
		ProviderOpenRouter,
		apiBase,
		model,
		cfg.Providers.OpenRouter.Proxy,
		NewAPIKeyAuth(cred.mode, source),
		map[string]string{"X-Title": openRouterAppTitle},
	)
}
