// Package config provides configuration management for the paper pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectFile is the per-project configuration file name.
const ProjectFile = ".paperrag.yaml"

// Config represents the pipeline configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Crossref   CrossrefConfig   `yaml:"crossref" json:"crossref"`
	Cleanup    CleanupConfig    `yaml:"cleanup" json:"cleanup"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig locates pipeline inputs and outputs. Relative paths are
// resolved against the project root.
type PathsConfig struct {
	Input     string `yaml:"input" json:"input"`
	PDFs      string `yaml:"pdfs" json:"pdfs"`
	Topics    string `yaml:"topics" json:"topics"`
	Papers    string `yaml:"papers" json:"papers"`
	Registry  string `yaml:"registry" json:"registry"`
	Citations string `yaml:"citations" json:"citations"`
	Data      string `yaml:"data" json:"data"`
}

// ChunkingConfig configures the section chunker.
type ChunkingConfig struct {
	MaxLen         int  `yaml:"max_len" json:"max_len"`
	PrependSection bool `yaml:"prepend_section" json:"prepend_section"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is one of gemini, ollama, static.
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// StorageConfig configures the paper, chunk and vector stores.
type StorageConfig struct {
	// VectorBackend is hnsw or chromem.
	VectorBackend string `yaml:"vector_backend" json:"vector_backend"`
	// KeywordBackend is sqlite (FTS5) or bleve.
	KeywordBackend    string `yaml:"keyword_backend" json:"keyword_backend"`
	DefaultCollection string `yaml:"default_collection" json:"default_collection"`
	InsertBatch       int    `yaml:"insert_batch" json:"insert_batch"`
}

// SearchConfig configures retrieval.
type SearchConfig struct {
	TopK        int `yaml:"top_k" json:"top_k"`
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`
}

// CrossrefConfig configures DOI metadata lookups.
type CrossrefConfig struct {
	BaseURL           string  `yaml:"base_url" json:"base_url"`
	Mailto            string  `yaml:"mailto" json:"mailto"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Timeout           string  `yaml:"timeout" json:"timeout"`
}

// CleanupConfig configures boilerplate and reference stripping.
type CleanupConfig struct {
	ExtraReferencePatterns []string `yaml:"extra_reference_patterns,omitempty" json:"extra_reference_patterns,omitempty"`
	ExtraDropSections      []string `yaml:"extra_drop_sections,omitempty" json:"extra_drop_sections,omitempty"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Input:     "input",
			PDFs:      filepath.Join("input", "pdf"),
			Topics:    filepath.Join("input", "topics"),
			Papers:    filepath.Join("output", "papers"),
			Registry:  filepath.Join("input", "input_pdf.json"),
			Citations: filepath.Join("output", "citations"),
			Data:      ".paperrag",
		},
		Chunking: ChunkingConfig{
			MaxLen:         7000,
			PrependSection: true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "gemini",
			Model:      "gemini-embedding-001",
			BatchSize:  64,
			OllamaHost: "http://localhost:11434",
			CacheSize:  10000,
		},
		Storage: StorageConfig{
			VectorBackend:     "hnsw",
			KeywordBackend:    "sqlite",
			DefaultCollection: "journal_papers",
			InsertBatch:       256,
		},
		Search: SearchConfig{
			TopK:        5,
			RRFConstant: 60,
		},
		Crossref: CrossrefConfig{
			BaseURL:           "https://api.crossref.org",
			RequestsPerSecond: 5,
			Timeout:           "30s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
// $XDG_CONFIG_HOME/paperrag/config.yaml or ~/.config/paperrag/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "paperrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "paperrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "paperrag", "config.yaml")
}

// Load loads configuration for the project rooted at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/paperrag/config.yaml)
//  3. Project config (.paperrag.yaml in dir)
//  4. Environment variables (PAPERRAG_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if projectPath := filepath.Join(dir, ProjectFile); fileExists(projectPath) {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML decodes path on top of the current values, so keys absent from
// the file keep their previous setting.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies PAPERRAG_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PAPERRAG_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("PAPERRAG_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("PAPERRAG_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("PAPERRAG_VECTOR_BACKEND"); v != "" {
		c.Storage.VectorBackend = v
	}
	if v := os.Getenv("PAPERRAG_KEYWORD_BACKEND"); v != "" {
		c.Storage.KeywordBackend = v
	}
	if v := os.Getenv("PAPERRAG_CROSSREF_MAILTO"); v != "" {
		c.Crossref.Mailto = v
	}
	if v := os.Getenv("PAPERRAG_DATA_DIR"); v != "" {
		c.Paths.Data = v
	}
	if v := os.Getenv("PAPERRAG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PAPERRAG_MAX_CHUNK_LEN"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			c.Chunking.MaxLen = n
		}
	}
}

// GeminiAPIKey returns the API key from GEMINI_API_KEY, else GOOGLE_API_KEY.
// The key is never read from or written to config files.
func GeminiAPIKey() string {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		return v
	}
	return os.Getenv("GOOGLE_API_KEY")
}

// Resolve returns p joined to root unless p is already absolute.
func Resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// FindProjectRoot walks up from startDir looking for .paperrag.yaml or an
// input/ directory. Falls back to startDir.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	dir := absDir
	for {
		if fileExists(filepath.Join(dir, ProjectFile)) || dirExists(filepath.Join(dir, "input")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir, nil
		}
		dir = parent
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Chunking.MaxLen <= 0 {
		return fmt.Errorf("chunking.max_len must be positive, got %d", c.Chunking.MaxLen)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Storage.InsertBatch <= 0 {
		return fmt.Errorf("storage.insert_batch must be positive, got %d", c.Storage.InsertBatch)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}

	validProviders := map[string]bool{"gemini": true, "ollama": true, "static": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'gemini', 'ollama', or 'static', got %s", c.Embeddings.Provider)
	}

	validVector := map[string]bool{"hnsw": true, "chromem": true}
	if !validVector[strings.ToLower(c.Storage.VectorBackend)] {
		return fmt.Errorf("storage.vector_backend must be 'hnsw' or 'chromem', got %s", c.Storage.VectorBackend)
	}

	validKeyword := map[string]bool{"sqlite": true, "bleve": true}
	if !validKeyword[strings.ToLower(c.Storage.KeywordBackend)] {
		return fmt.Errorf("storage.keyword_backend must be 'sqlite' or 'bleve', got %s", c.Storage.KeywordBackend)
	}

	if c.Storage.DefaultCollection == "" {
		return fmt.Errorf("storage.default_collection must not be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
