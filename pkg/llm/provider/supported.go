package provider

import (
	"fmt"

	"github.com/papercomputeco/deepgate/pkg/llm/provider/deepseek"
)

// Supported provider type constants
const (
	DeepSeek = deepseek.ProviderName
)

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{DeepSeek}
}

// New creates a new Provider instance for the given provider type.
// Returns an error if the provider type is not recognized.
func New(providerType string, opts deepseek.Options) (Provider, error) {
	switch providerType {
	case DeepSeek:
		return deepseek.New(opts), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", providerType, SupportedProviders())
	}
}
