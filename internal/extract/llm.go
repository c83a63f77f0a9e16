package extract

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/sentrysystems/incident-engine/internal/claim"
	"github.com/sentrysystems/incident-engine/internal/pkg/metrics"
)

const defaultLLMTimeout = 8 * time.Second

// Completer is the narrow capability the LLM extractor needs from a chat
// model: one prompt in, one JSON string out. Tests supply a fake; production
// wires OpenAIChatCompleter.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OpenAIChatCompleter calls the OpenAI chat completions endpoint in JSON mode.
type OpenAIChatCompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAIChatCompleter builds a Completer backed by the OpenAI API. Per the
// configuration contract, callers should only construct this when
// OPENAI_API_KEY is set; an empty key disables the LLM extractor entirely.
func NewOpenAIChatCompleter(apiKey, model string) *OpenAIChatCompleter {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIChatCompleter{client: openai.NewClient(apiKey), model: model}
}

func (c *OpenAIChatCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature:    0.0,
		MaxTokens:      500,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		outcome := "error"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.OpenAICallsTotal.WithLabelValues("extract", outcome).Inc()
		return "", err
	}
	if len(resp.Choices) == 0 {
		metrics.OpenAICallsTotal.WithLabelValues("extract", "error").Inc()
		return "", errors.New("openai returned no choices")
	}
	metrics.OpenAICallsTotal.WithLabelValues("extract", "success").Inc()
	return resp.Choices[0].Message.Content, nil
}

const extractionSystemPrompt = `Extract only what is explicitly stated in the caller's transcript.
Return a JSON object with these fields, using null for anything not stated:
{"incident_type": string|null, "locations": [string]|null, "people_estimate": string|null, "hazards": [string]|null}`

// extractionResult mirrors the fixed JSON schema the LLM is prompted for.
type extractionResult struct {
	IncidentType   *string  `json:"incident_type"`
	Locations      []string `json:"locations"`
	PeopleEstimate *string  `json:"people_estimate"`
	Hazards        []string `json:"hazards"`
}

// LLM is the LLM-backed extractor: JSON-mode chat completion, hallucination
// grounding on every extracted string, and a deterministic fallback on parse
// failure, transport error, or timeout. A fallback never fails the request.
type LLM struct {
	Completer   Completer
	Fallback    *Deterministic
	Timeout     time.Duration
	Logger      *slog.Logger

	// confidence assigned to each field before the grounded/ungrounded ceiling
	// caps it; configurable the way the deterministic rule table is.
	PreCapConfidence float64
}

// NewLLM builds an LLM extractor with the given Completer and fallback.
func NewLLM(completer Completer, fallback *Deterministic, logger *slog.Logger) *LLM {
	if fallback == nil {
		fallback = NewDeterministic()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{Completer: completer, Fallback: fallback, Timeout: defaultLLMTimeout, Logger: logger, PreCapConfidence: 0.8}
}

func (l *LLM) Name() string { return "llm" }

func (l *LLM) Extract(ctx context.Context, text string, now time.Time) ([]claim.Claim, error) {
	start := time.Now()
	defer func() {
		metrics.ExtractionDurationSeconds.WithLabelValues("llm").Observe(time.Since(start).Seconds())
	}()

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := l.Completer.Complete(callCtx, extractionSystemPrompt, text)
	if err != nil {
		l.logFallback("transport error", err)
		metrics.ExtractionFallbackTotal.Inc()
		return l.Fallback.Extract(ctx, text, now)
	}

	var result extractionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		l.logFallback("json parse failure", err)
		metrics.ExtractionFallbackTotal.Inc()
		return l.Fallback.Extract(ctx, text, now)
	}

	return l.groundedClaims(result, text, now), nil
}

func (l *LLM) logFallback(reason string, err error) {
	if l.Logger != nil {
		l.Logger.Warn("extractor fallback to deterministic", "reason", reason, "error", err)
	}
}

func (l *LLM) groundedClaims(r extractionResult, text string, now time.Time) []claim.Claim {
	var claims []claim.Claim

	if r.IncidentType != nil && strings.TrimSpace(*r.IncidentType) != "" {
		conf := capByGrounding(*r.IncidentType, text, l.PreCapConfidence)
		claims = append(claims, claim.Claim{Type: claim.TypeIncidentType, Value: *r.IncidentType, Confidence: conf, SourceText: text, Time: now})
	}
	for _, loc := range r.Locations {
		if strings.TrimSpace(loc) == "" {
			continue
		}
		conf := capByGrounding(loc, text, l.PreCapConfidence)
		claims = append(claims, claim.Claim{Type: claim.TypeLocation, Value: loc, Confidence: conf, SourceText: text, Time: now})
	}
	if r.PeopleEstimate != nil && strings.TrimSpace(*r.PeopleEstimate) != "" {
		conf := capByGrounding(*r.PeopleEstimate, text, l.PreCapConfidence)
		claims = append(claims, claim.Claim{Type: claim.TypePeopleEstimate, Value: *r.PeopleEstimate, Confidence: conf, SourceText: text, Time: now})
	}
	for _, hz := range r.Hazards {
		if strings.TrimSpace(hz) == "" {
			continue
		}
		conf := capByGrounding(hz, text, l.PreCapConfidence)
		claims = append(claims, claim.Claim{Type: claim.TypeHazard, Value: hz, Confidence: conf, SourceText: text, Time: now})
	}
	return claims
}
