// Package openai implements document enrichment against an OpenAI-compatible
// chat completions endpoint.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/enrichd/enrichd/internal/core/domain"
	"github.com/enrichd/enrichd/internal/infrastructure/resilience"
)

// DefaultMaxInputChars bounds the document text sent to the model. Longer
// inputs are cut and marked so the model knows the tail is missing.
const DefaultMaxInputChars = 2_000_000

const truncationMarker = "\n\n[TRUNCATED]"

type Client struct {
	baseURL       string
	apiKey        string
	model         string
	maxInputChars int
	httpClient    *http.Client
	limiter       *rate.Limiter
	executor      *resilience.Executor
}

type Options struct {
	MaxInputChars      int
	RequestTimeout     time.Duration
	RequestsPerMinute  int
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, apiKey, model string) *Client {
	return NewWithOptions(baseURL, apiKey, model, Options{})
}

func NewWithOptions(baseURL, apiKey, model string, options Options) *Client {
	maxInputChars := options.MaxInputChars
	if maxInputChars <= 0 {
		maxInputChars = DefaultMaxInputChars
	}
	timeout := options.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	var limiter *rate.Limiter
	if options.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(options.RequestsPerMinute)/60.0), 1)
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		model:         model,
		maxInputChars: maxInputChars,
		httpClient:    &http.Client{Timeout: timeout},
		limiter:       limiter,
		executor:      options.ResilienceExecutor,
	}
}

func (c *Client) Model() string { return c.model }

// Enrich asks the model for a summary and per-question answers. The model
// must return a strict JSON object; anything it cannot be decoded from is a
// malformed-output failure and nothing is persisted for the document.
func (c *Client) Enrich(ctx context.Context, text string, questions []string) (domain.EnrichmentResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.EnrichmentResult{}, err
		}
	}

	input := text
	if len(input) > c.maxInputChars {
		// Back off to a rune boundary so the cut never produces invalid
		// UTF-8 in the request payload.
		cut := c.maxInputChars
		for cut > 0 && !utf8.RuneStart(input[cut]) {
			cut--
		}
		input = input[:cut] + truncationMarker
	}

	raw, err := c.complete(ctx, buildEnrichmentPrompt(input, questions))
	if err != nil {
		return domain.EnrichmentResult{}, wrapTemporaryIfNeeded("enrich", err)
	}
	return parseEnrichment(raw, questions)
}

func (c *Client) complete(ctx context.Context, prompt enrichmentPrompt) (string, error) {
	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": prompt.system},
			{"role": "user", "content": prompt.user},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0,
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/chat/completions", reqBody, &response, "enrich")
	}
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "openai.enrich", call, classifyOpenAIError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", domain.WrapError(domain.ErrMalformedOutput, "enrich",
			fmt.Errorf("completion returned no choices"))
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

func parseEnrichment(raw string, questions []string) (domain.EnrichmentResult, error) {
	var payload struct {
		Summary string `json:"summary"`
		QA      []struct {
			Question string `json:"question"`
			Answer   string `json:"answer"`
		} `json:"qa"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return domain.EnrichmentResult{}, domain.WrapError(domain.ErrMalformedOutput, "enrich",
			fmt.Errorf("parse enrichment json: %w", err))
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return domain.EnrichmentResult{}, domain.WrapError(domain.ErrMalformedOutput, "enrich",
			fmt.Errorf("enrichment json has no summary"))
	}

	result := domain.EnrichmentResult{
		Summary: payload.Summary,
		QA:      make([]domain.QAPair, 0, len(payload.QA)),
	}
	for _, pair := range payload.QA {
		result.QA = append(result.QA, domain.QAPair{Question: pair.Question, Answer: pair.Answer})
	}
	if len(questions) > 0 && len(result.QA) == 0 {
		return domain.EnrichmentResult{}, domain.WrapError(domain.ErrMalformedOutput, "enrich",
			fmt.Errorf("enrichment json answered none of %d questions", len(questions)))
	}
	return result, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
