package cluster

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/sentrysystems/incident-engine/internal/pkg/metrics"
)

// OpenAIEmbedder produces embeddings via the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder builds an Embedder backed by the OpenAI API. Callers
// should only construct this when OPENAI_API_KEY is set; its absence means
// the embedding signal is dropped and weights renormalize over the rest.
func NewOpenAIEmbedder(apiKey string) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: openai.NewClient(apiKey), model: openai.SmallEmbedding3}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		outcome := "error"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.OpenAICallsTotal.WithLabelValues("embed", outcome).Inc()
		return nil, err
	}
	if len(resp.Data) == 0 {
		metrics.OpenAICallsTotal.WithLabelValues("embed", "error").Inc()
		return nil, errors.New("openai returned no embedding data")
	}
	metrics.OpenAICallsTotal.WithLabelValues("embed", "success").Inc()
	return resp.Data[0].Embedding, nil
}

const judgeSystemPrompt = `You decide whether two emergency call transcripts describe the same real-world incident.
Respond with only a number from 0 to 100: your confidence they are the same incident. No other text.`

// LLMJudge asks a chat model whether a new report and an existing incident's
// summary describe the same event, grounded on the extractor's JSON-mode
// completion call but parsing a bare numeric response instead.
type LLMJudge struct {
	client *openai.Client
	model  string
}

// NewLLMJudge builds a Judge backed by the OpenAI chat completions API.
func NewLLMJudge(apiKey, model string) *LLMJudge {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &LLMJudge{client: openai.NewClient(apiKey), model: model}
}

func (j *LLMJudge) Judge(ctx context.Context, reportText, candidateSummary string) (float64, error) {
	prompt := fmt.Sprintf("New report:\n%s\n\nExisting incident summary:\n%s", reportText, candidateSummary)
	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.0,
		MaxTokens:   5,
	})
	if err != nil {
		outcome := "error"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.OpenAICallsTotal.WithLabelValues("judge", outcome).Inc()
		return 0, err
	}
	if len(resp.Choices) == 0 {
		metrics.OpenAICallsTotal.WithLabelValues("judge", "error").Inc()
		return 0, errors.New("openai returned no choices")
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	raw = strings.TrimSuffix(raw, "%")
	n, err := strconv.Atoi(raw)
	if err != nil {
		metrics.OpenAICallsTotal.WithLabelValues("judge", "error").Inc()
		return 0, fmt.Errorf("unparseable judge response %q: %w", raw, err)
	}
	if n < 0 {
		n = 0
	}
	if n > 100 {
		n = 100
	}
	metrics.OpenAICallsTotal.WithLabelValues("judge", "success").Inc()
	return float64(n) / 100.0, nil
}
