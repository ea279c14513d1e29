package citation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

// CSLContentType is the media type requested from doi.org.
const CSLContentType = "application/vnd.citationstyles.csl+json"

// Lookup resolves a DOI to CSL metadata.
type Lookup interface {
	Lookup(ctx context.Context, doi string) (*CSL, error)
}

// CrossrefConfig configures the Crossref client.
type CrossrefConfig struct {
	BaseURL           string  // Crossref REST base (default https://api.crossref.org)
	DOIBaseURL        string  // Content negotiation base (default https://doi.org)
	UserAgent         string  // Product token; mailto is appended
	Mailto            string  // Contact address for the polite pool
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             perrors.RetryConfig
}

// DefaultCrossrefConfig returns the production endpoints with polite defaults.
func DefaultCrossrefConfig() CrossrefConfig {
	return CrossrefConfig{
		BaseURL:           "https://api.crossref.org",
		DOIBaseURL:        "https://doi.org",
		UserAgent:         "paperrag/0.1",
		Timeout:           20 * time.Second,
		RequestsPerSecond: 5,
		Retry:             perrors.DefaultRetryConfig(),
	}
}

// CrossrefClient fetches CSL metadata from Crossref with a doi.org fallback.
type CrossrefClient struct {
	cfg     CrossrefConfig
	http    *http.Client
	limiter *rate.Limiter
}

var _ Lookup = (*CrossrefClient)(nil)

// NewCrossrefClient creates a client. Zero fields take defaults.
func NewCrossrefClient(cfg CrossrefConfig) *CrossrefClient {
	def := DefaultCrossrefConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.DOIBaseURL == "" {
		cfg.DOIBaseURL = def.DOIBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = def.Retry
	}
	cfg.Retry.RetryIf = perrors.IsRetryable
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.DOIBaseURL = strings.TrimRight(cfg.DOIBaseURL, "/")

	return &CrossrefClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// Lookup fetches CSL metadata for doi. Crossref is tried first; when it
// answers 200 without a usable record, doi.org content negotiation is used.
func (c *CrossrefClient) Lookup(ctx context.Context, doi string) (*CSL, error) {
	norm, err := ValidateDOI(doi)
	if err != nil {
		return nil, err
	}

	csl, err := perrors.RetryWithResult(ctx, c.cfg.Retry, func() (*CSL, error) {
		return c.fetchCrossref(ctx, norm)
	})
	if err != nil {
		slog.Warn("crossref_lookup_failed", slog.String("doi", norm), slog.String("error", err.Error()))
		return nil, err
	}
	if csl != nil {
		slog.Debug("crossref_lookup_complete", slog.String("doi", norm), slog.String("source", "crossref"))
		return csl, nil
	}

	csl, err = perrors.RetryWithResult(ctx, c.cfg.Retry, func() (*CSL, error) {
		return c.fetchDOIOrg(ctx, norm)
	})
	if err != nil {
		slog.Warn("doi_negotiation_failed", slog.String("doi", norm), slog.String("error", err.Error()))
		return nil, err
	}
	slog.Debug("crossref_lookup_complete", slog.String("doi", norm), slog.String("source", "doi.org"))
	return csl, nil
}

// fetchCrossref returns nil, nil when Crossref answers without a usable record.
func (c *CrossrefClient) fetchCrossref(ctx context.Context, doi string) (*CSL, error) {
	endpoint := c.cfg.BaseURL + "/works/" + (&url.URL{Path: doi}).EscapedPath()
	body, err := c.get(ctx, endpoint, "")
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Message *crossrefMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Message == nil {
		return nil, nil
	}
	return envelope.Message.toCSL(), nil
}

func (c *CrossrefClient) fetchDOIOrg(ctx context.Context, doi string) (*CSL, error) {
	body, err := c.get(ctx, c.cfg.DOIBaseURL+"/"+doi, CSLContentType)
	if err != nil {
		return nil, err
	}
	csl, err := ParseCSL(body)
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "doi.org did not return valid CSL-JSON", err).
			WithDetail("doi", doi)
	}
	return csl, nil
}

func (c *CrossrefClient) get(ctx context.Context, endpoint, accept string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "failed to build request", err)
	}
	for k, v := range c.headers(accept) {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, perrors.New(perrors.ErrCodeNetworkUnavailable, "request to "+endpoint+" failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeNetworkUnavailable, "failed to read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, perrors.New(perrors.ErrCodeCrossrefNotFound, "DOI not found: "+endpoint, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, perrors.New(perrors.ErrCodeRateLimited, "rate limited by "+req.URL.Host, nil)
	case resp.StatusCode >= 500:
		return nil, perrors.New(perrors.ErrCodeNetworkUnavailable,
			fmt.Sprintf("%s returned %d", req.URL.Host, resp.StatusCode), nil)
	default:
		return nil, perrors.New(perrors.ErrCodeInvalidInput,
			fmt.Sprintf("%s returned %d", req.URL.Host, resp.StatusCode), nil)
	}
}

func (c *CrossrefClient) headers(accept string) map[string]string {
	ua := c.cfg.UserAgent
	if c.cfg.Mailto != "" {
		ua += " (mailto:" + c.cfg.Mailto + ")"
	}
	h := map[string]string{"User-Agent": ua}
	if accept != "" {
		h["Accept"] = accept
	}
	if c.cfg.Mailto != "" {
		h["mailto"] = c.cfg.Mailto
	}
	return h
}

// crossrefMessage is the "message" object of a Crossref works response.
type crossrefMessage struct {
	DOI             string     `json:"DOI"`
	Type            string     `json:"type"`
	Title           FlexString `json:"title"`
	ContainerTitle  FlexString `json:"container-title"`
	Publisher       string     `json:"publisher"`
	URL             string     `json:"URL"`
	Issued          *Date      `json:"issued"`
	PublishedPrint  *Date      `json:"published-print"`
	PublishedOnline *Date      `json:"published-online"`
	Created         *Date      `json:"created"`
	Deposited       *Date      `json:"deposited"`
	Author          []Agent    `json:"author"`
	ISSN            FlexList   `json:"ISSN"`
	ISBN            FlexList   `json:"ISBN"`
	Page            FlexString `json:"page"`
	Volume          FlexString `json:"volume"`
	Issue           FlexString `json:"issue"`
}

// toCSL maps the message to CSL. Returns nil without a DOI or title.
func (m *crossrefMessage) toCSL() *CSL {
	if m.DOI == "" && m.Title == "" {
		return nil
	}
	authors := make([]Agent, 0, len(m.Author))
	for _, a := range m.Author {
		if a.Given == "" && a.Family == "" {
			continue
		}
		authors = append(authors, Agent{Given: a.Given, Family: a.Family})
	}
	return &CSL{
		DOI:             m.DOI,
		Type:            m.Type,
		Title:           m.Title,
		ContainerTitle:  m.ContainerTitle,
		Publisher:       m.Publisher,
		URL:             m.URL,
		Issued:          m.Issued,
		PublishedPrint:  m.PublishedPrint,
		PublishedOnline: m.PublishedOnline,
		Created:         m.Created,
		Deposited:       m.Deposited,
		Author:          authors,
		ISSN:            m.ISSN,
		ISBN:            m.ISBN,
		Page:            m.Page,
		Volume:          m.Volume,
		Issue:           m.Issue,
	}
}

// SaveCSL writes csl as indented JSON to dir/<safe doi>.json.
func SaveCSL(dir, doi string, csl *CSL) (string, error) {
	data, err := json.MarshalIndent(csl, "", "  ")
	if err != nil {
		return "", perrors.InternalError("failed to encode CSL", err)
	}
	return writeCitationFile(dir, SafeDOI(doi)+".json", data)
}

// SaveBibTeX writes the BibTeX entry for csl to dir/<safe doi>.bib.
func SaveBibTeX(dir, doi string, csl *CSL) (string, error) {
	return writeCitationFile(dir, SafeDOI(doi)+".bib", []byte(BibTeX(csl)))
}

func writeCitationFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", perrors.New(perrors.ErrCodeFilePermission, "failed to create citations dir", err).
			WithDetail("path", dir)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", perrors.New(perrors.ErrCodeFilePermission, "failed to write citation file", err).
			WithDetail("path", path)
	}
	return path, nil
}
