package embed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

// DefaultGeminiModel is the Gemini embedding model used when none is set.
const DefaultGeminiModel = "gemini-embedding-001"

// GeminiConfig configures the Gemini embedder.
type GeminiConfig struct {
	APIKey string
	Model  string
	// MaxRetries applies to single-text (query) embeddings only. Batch
	// failures surface immediately so the caller can fall back per item.
	MaxRetries int
	// RetryDelay is the first backoff delay; 0 means 500ms.
	RetryDelay time.Duration
	// RequestsPerSecond caps calls to the API; 0 means unlimited.
	RequestsPerSecond float64
}

// geminiAPI is the slice of the genai client the embedder uses.
type geminiAPI interface {
	embedOne(ctx context.Context, text string) ([]float32, error)
	embedMany(ctx context.Context, texts []string) ([][]float32, error)
	close() error
}

// GeminiEmbedder embeds text with the Google Generative AI embedding API.
type GeminiEmbedder struct {
	api     geminiAPI
	model   string
	retries int
	delay   time.Duration
	limiter *rate.Limiter

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder connects a genai client with the given API key.
func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig) (*GeminiEmbedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, perrors.New(perrors.ErrCodeMissingAPIKey, "gemini API key is not set", nil).
			WithSuggestion("Export GEMINI_API_KEY (or GOOGLE_API_KEY), or set embeddings.provider to ollama or static")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeNetworkUnavailable, "failed to create gemini client", err)
	}
	api := &genaiAPI{client: client, model: client.EmbeddingModel(cfg.Model)}
	return newGeminiEmbedder(api, cfg), nil
}

func newGeminiEmbedder(api geminiAPI, cfg GeminiConfig) *GeminiEmbedder {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &GeminiEmbedder{
		api:     api,
		model:   cfg.Model,
		retries: cfg.MaxRetries,
		delay:   cfg.RetryDelay,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Embed embeds a single text, retrying with backoff. Used for search queries.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	cfg := perrors.RetryConfig{
		MaxRetries:   e.retries,
		InitialDelay: e.delay,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
	vec, err := perrors.RetryWithResult(ctx, cfg, func() ([]float32, error) {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return e.api.embedOne(ctx, text)
	})
	if err != nil {
		return nil, wrapEmbedErr(e.model, err)
	}
	e.recordDims(vec)
	return vec, nil
}

// EmbedBatch embeds texts in a single BatchEmbedContents call.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	vecs, err := e.api.embedMany(ctx, texts)
	if err != nil {
		return nil, wrapEmbedErr(e.model, err)
	}
	if len(vecs) != len(texts) {
		return nil, perrors.New(perrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("gemini returned %d embeddings for %d texts", len(vecs), len(texts)), nil)
	}
	if len(vecs) > 0 {
		e.recordDims(vecs[0])
	}
	return vecs, nil
}

func wrapEmbedErr(model string, err error) error {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	return perrors.New(perrors.ErrCodeEmbeddingFailed, "gemini embedding failed", err).
		WithDetail("model", model)
}

func (e *GeminiEmbedder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("embedder is closed")
	}
	return nil
}

func (e *GeminiEmbedder) recordDims(vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims == 0 {
		e.dims = len(vec)
	}
}

// Dimensions returns the embedding dimension, 0 before the first response.
func (e *GeminiEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *GeminiEmbedder) ModelName() string {
	return e.model
}

// Available reports whether the client is open. It makes no API call.
func (e *GeminiEmbedder) Available(_ context.Context) bool {
	return e.checkOpen() == nil
}

// Close closes the genai client.
func (e *GeminiEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.api.close()
}

// genaiAPI adapts *genai.EmbeddingModel to geminiAPI.
type genaiAPI struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

func (g *genaiAPI) embedOne(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("empty embedding in response")
	}
	return toFloat32(resp.Embedding.Values), nil
}

func (g *genaiAPI) embedMany(ctx context.Context, texts []string) ([][]float32, error) {
	batch := g.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	resp, err := g.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		out[i] = toFloat32(emb.Values)
	}
	return out, nil
}

func (g *genaiAPI) close() error {
	return g.client.Close()
}

func toFloat32(values []float32) []float32 {
	out := make([]float32, len(values))
	copy(out, values)
	return out
}
