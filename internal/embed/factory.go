package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/paperrag/internal/config"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderGemini uses the Google Generative AI embedding API (default)
	ProviderGemini ProviderType = "gemini"

	// ProviderOllama uses a local Ollama server
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (offline)
	ProviderStatic ProviderType = "static"
)

// ParseProvider maps a config string to a ProviderType.
func ParseProvider(s string) (ProviderType, error) {
	switch p := ProviderType(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGemini, ProviderOllama, ProviderStatic:
		return p, nil
	case "":
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("unknown embedding provider %q (want gemini, ollama or static)", s)
	}
}

// Options selects and configures an embedder.
type Options struct {
	Provider   ProviderType
	Model      string
	APIKey     string
	OllamaHost string
	// CacheSize bounds the LRU; negative disables caching.
	CacheSize int
}

// OptionsFromConfig builds Options from the embeddings config section.
// The API key comes from the environment only.
func OptionsFromConfig(cfg config.EmbeddingsConfig) (Options, error) {
	provider, err := ParseProvider(cfg.Provider)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Provider:   provider,
		Model:      cfg.Model,
		APIKey:     config.GeminiAPIKey(),
		OllamaHost: cfg.OllamaHost,
		CacheSize:  cfg.CacheSize,
	}, nil
}

// New creates the configured embedder wrapped in an LRU cache.
// There is no silent fallback: an explicitly selected provider that cannot
// be created is an error.
func New(ctx context.Context, opts Options) (Embedder, error) {
	var (
		embedder Embedder
		err      error
	)

	switch opts.Provider {
	case ProviderGemini, "":
		model := opts.Model
		if model == "" {
			model = DefaultGeminiModel
		}
		embedder, err = NewGeminiEmbedder(ctx, GeminiConfig{
			APIKey:     opts.APIKey,
			Model:      model,
			MaxRetries: DefaultMaxRetries,
		})
	case ProviderOllama:
		model := opts.Model
		if model == "" || model == DefaultGeminiModel {
			model = DefaultOllamaModel
		}
		embedder = NewOllamaEmbedder(OllamaConfig{
			Host:       opts.OllamaHost,
			Model:      model,
			MaxRetries: DefaultMaxRetries,
		})
	case ProviderStatic:
		embedder = NewStaticEmbedder()
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("embedder_created",
		slog.String("provider", string(opts.Provider)),
		slog.String("model", embedder.ModelName()))

	if opts.CacheSize < 0 {
		return embedder, nil
	}
	return NewCachedEmbedder(embedder, opts.CacheSize), nil
}
