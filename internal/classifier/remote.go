package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-support-backend/internal/config"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// classifySystemPrompt is the fixed instruction sent to the model. The model
// must answer with a single JSON object; anything else triggers the keyword
// fallback.
const classifySystemPrompt = `You are a customer support ticket classifier.
Classify the customer request into exactly one category: "technical", "billing", or "general".

Also provide:
- "confidence": your certainty as a number between 0.0 and 1.0
- "summary": a single sentence summarizing the request, at most 150 characters

Respond with JSON only (no markdown):
{"category": "technical", "confidence": 0.85, "summary": "..."}`

// RemoteClassifier classifies tickets through an LLM chat-completion API.
// Any failure of the remote call (transport error, API error, unparseable or
// empty response) degrades to deterministic keyword scoring over the same
// text, so Classify never returns an error and intake never blocks on the
// provider being up.
type RemoteClassifier struct {
	provider    string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	lexicon     *Lexicon

	httpClient     *http.Client
	openAIEndpoint string
	openAIKey      string
	anthropic      anthropic.Client
}

// NewRemoteClassifier builds a remote classifier from the AI configuration.
// It fails when the configured provider has no API key.
func NewRemoteClassifier(cfg config.AIConfig, lex *Lexicon) (*RemoteClassifier, error) {
	if lex == nil {
		lex = DefaultLexicon()
	}
	c := &RemoteClassifier{
		provider:       cfg.Provider,
		model:          cfg.Model,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		timeout:        cfg.Timeout,
		lexicon:        lex,
		httpClient:     &http.Client{},
		openAIEndpoint: defaultOpenAIEndpoint,
	}
	switch cfg.Provider {
	case "anthropic":
		if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
			return nil, errors.New("remote classifier: ANTHROPIC_API_KEY is not set")
		}
		c.anthropic = anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, errors.New("remote classifier: OPENAI_API_KEY is not set")
		}
		c.openAIKey = cfg.OpenAIAPIKey
	default:
		return nil, fmt.Errorf("remote classifier: unknown provider %q", cfg.Provider)
	}
	return c, nil
}

// Classify implements Classifier. It never returns an error; see the type
// documentation for the fallback behavior.
func (c *RemoteClassifier) Classify(ctx context.Context, text string) (Result, error) {
	start := time.Now()

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var raw string
	var err error
	switch c.provider {
	case "anthropic":
		raw, err = c.callAnthropic(cctx, text)
	default:
		raw, err = c.callOpenAI(cctx, text)
	}

	if err == nil {
		res, perr := parseClassification(raw)
		if perr == nil {
			res.ProcessingTimeMS = int(time.Since(start).Milliseconds())
			res.ModelName = c.model
			return res, nil
		}
		err = perr
	}

	log.Warn().
		Err(err).
		Str("provider", c.provider).
		Str("model", c.model).
		Msg("remote classification failed, falling back to keyword scoring")

	category, confidence := c.lexicon.Score(text)
	return Result{
		Category:         category,
		ConfidenceScore:  confidence,
		Summary:          nil,
		ProcessingTimeMS: int(time.Since(start).Milliseconds()),
		ModelName:        c.model + "-fallback",
	}, nil
}

// classificationPayload is the JSON object the model is instructed to return.
// Confidence is a pointer so an omitted field is distinguishable from 0.
type classificationPayload struct {
	Category   string   `json:"category"`
	Confidence *float64 `json:"confidence"`
	Summary    string   `json:"summary"`
}

// parseClassification parses the model's response text and applies the
// coercion rules: unknown category becomes general, a missing confidence
// defaults to 0.7 and is clamped to [0,1], and the summary is trimmed and
// truncated. Code fences around the JSON are tolerated.
func parseClassification(raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{}, errors.New("empty model response")
	}

	var payload classificationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Result{}, fmt.Errorf("parsing model response: %w", err)
	}

	category := strings.ToLower(strings.TrimSpace(payload.Category))
	if !ValidCategory(category) {
		category = CategoryGeneral
	}

	confidence := 0.7
	if payload.Confidence != nil {
		confidence = clampConfidence(*payload.Confidence)
	}

	var summary *string
	if s := strings.TrimSpace(payload.Summary); s != "" {
		s = truncateSummary(s, maxSummaryLen)
		summary = &s
	}

	return Result{
		Category:        category,
		ConfidenceScore: confidence,
		Summary:         summary,
	}, nil
}

// --- Anthropic ---

func (c *RemoteClassifier) callAnthropic(ctx context.Context, text string) (string, error) {
	message, err := c.anthropic.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(c.maxTokens),
		Temperature: anthropic.Float(c.temperature),
		System: []anthropic.TextBlockParam{
			{Text: classifySystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api: %w", err)
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("no text content in anthropic response")
}

// --- OpenAI ---

type openAIRequest struct {
	Model          string               `json:"model"`
	Messages       []openAIMessage      `json:"messages"`
	Temperature    float64              `json:"temperature"`
	MaxTokens      int                  `json:"max_tokens"`
	ResponseFormat openAIResponseFormat `json:"response_format"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *RemoteClassifier) callOpenAI(ctx context.Context, text string) (string, error) {
	reqBody := openAIRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: classifySystemPrompt},
			{Role: "user", Content: text},
		},
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: openAIResponseFormat{Type: "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.openAIEndpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.openAIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parsing openai response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openai api: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("no choices in openai response")
	}
	return parsed.Choices[0].Message.Content, nil
}
