package providers

import (
	"fmt"
	"strings"

	"github.com/dotsetgreg/loreweaver/pkg/config"
)

// ProviderOpenRouter is the default generation backend.
const ProviderOpenRouter = "openrouter"

// NormalizeProviderName maps an empty generator.provider to the default.
func NormalizeProviderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ProviderOpenRouter
	}
	return name
}

// selectProvider resolves generator.provider and rejects anything the
// narrator cannot talk to.
func selectProvider(cfg *config.Config) (string, error) {
	name := ProviderOpenRouter
	if cfg != nil {
		name = NormalizeProviderName(cfg.Generator.Provider)
	}
	if name != ProviderOpenRouter {
		return name, fmt.Errorf("unsupported provider %q: generator.provider must be %q", name, ProviderOpenRouter)
	}
	return name, nil
}

// ValidateProviderConfig checks the configured backend's credentials
// without building a client.
func ValidateProviderConfig(cfg *config.Config) error {
	if _, err := selectProvider(cfg); err != nil {
		return err
	}
	return validateOpenRouterConfig(cfg)
}

// ProviderCredentialStatus reports which backend is selected and whether
// its credentials resolve. An unsupported provider is the only error.
func ProviderCredentialStatus(cfg *config.Config) (provider string, configured bool, mode string, err error) {
	provider, err = selectProvider(cfg)
	if err != nil {
		return provider, false, "", err
	}
	configured, mode = openRouterCredentialStatus(cfg)
	return provider, configured, mode, nil
}

func CreateProvider(cfg *config.Config) (LLMProvider, error) {
	if _, err := selectProvider(cfg); err != nil {
		return nil, err
	}
	return newOpenRouterProviderFromConfig(cfg)
}
