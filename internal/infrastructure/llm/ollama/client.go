package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/tradeflow/internal/core/domain"
	"github.com/kirillkom/tradeflow/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithResilience(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func New(baseURL, genModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EntityExtractor asks the generation model for document type, typed fields and company entities.
type EntityExtractor struct {
	client *Client
}

func NewEntityExtractor(client *Client) *EntityExtractor {
	return &EntityExtractor{client: client}
}

func (e *EntityExtractor) Extract(ctx context.Context, rawText string) (domain.Extraction, error) {
	if strings.TrimSpace(rawText) == "" {
		return domain.Extraction{}, domain.WrapError(domain.ErrInvalidInput, "extract entities", fmt.Errorf("raw text is empty"))
	}

	respText, err := resilience.Do(ctx, e.client.executor, "ollama.extract", func(callCtx context.Context) (string, error) {
		return e.client.generateJSON(callCtx, buildExtractionPrompt(rawText))
	}, classifyOllamaError)
	if err != nil {
		return domain.Extraction{}, resilience.WrapTemporary("ollama extract", err, classifyOllamaError)
	}
	return parseExtraction(respText)
}

type extractionPayload struct {
	DocumentType    string                  `json:"document_type"`
	ExtractedFields []domain.ExtractedField `json:"extracted_fields"`
	Entities        struct {
		Supplier       *domain.Entity `json:"supplier"`
		TradingCompany *domain.Entity `json:"trading_company"`
		Customer       *domain.Entity `json:"customer"`
		Consignee      *domain.Entity `json:"consignee"`
	} `json:"entities"`
}

func parseExtraction(raw string) (domain.Extraction, error) {
	var payload extractionPayload
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return domain.Extraction{}, fmt.Errorf("parse extraction json: %w", err)
	}

	fields := make([]domain.ExtractedField, 0, len(payload.ExtractedFields))
	for _, f := range payload.ExtractedFields {
		key := strings.ToLower(strings.TrimSpace(f.Key))
		if key == "" {
			continue
		}
		f.Key = key
		f.Value = strings.TrimSpace(f.Value)
		f.Confidence = min(max(f.Confidence, 0), 1)
		if f.Type == "" {
			f.Type = "string"
		}
		fields = append(fields, f)
	}

	// A successful extraction always yields all four entities; missing ones are known empty.
	entities := domain.MergeEntities(domain.Entities{
		Supplier:       payload.Entities.Supplier,
		TradingCompany: payload.Entities.TradingCompany,
		Customer:       payload.Entities.Customer,
		Consignee:      payload.Entities.Consignee,
	}, domain.EmptyEntities())

	return domain.Extraction{
		DocumentType:    domain.ParseDocumentType(payload.DocumentType),
		ExtractedFields: fields,
		Entities:        entities,
	}, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0,
		},
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
