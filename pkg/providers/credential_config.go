package providers

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

type credentialCandidate struct {
	mode   string
	source string
	field  string
}

// selectSingleCredential requires exactly one configured credential.
func selectSingleCredential(candidates []credentialCandidate, missingMessage, multiPrefix string) (credentialCandidate, error) {
	switch len(candidates) {
	case 0:
		return credentialCandidate{}, fmt.Errorf("%s", strings.TrimSpace(missingMessage))
	case 1:
		return candidates[0], nil
	default:
		fields := make([]string, 0, len(candidates))
		for _, item := range candidates {
			fields = append(fields, item.field)
		}
		sort.Strings(fields)
		return credentialCandidate{}, fmt.Errorf("%s (%s); set exactly one", strings.TrimSpace(multiPrefix), strings.Join(fields, ", "))
	}
}

func validateKeyFileSource(c credentialCandidate) error {
	if c.mode != authModeAPIKeyFile {
		return nil
	}
	resolved := expandHome(c.source)
	if _, err := os.Stat(resolved); err != nil {
		return fmt.Errorf("OpenRouter API key file not accessible at %s: %w", resolved, err)
	}
	return nil
}
