package answer

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/wavely/converse/pkg/logging"
)

const defaultModel = "gpt-4o-mini"

// OpenAI generates answers through the chat completions API. Used only
// when a turn falls through every configured template.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *logging.Logger
}

var _ Generator = (*OpenAI)(nil)

func NewOpenAI(apiKey, model string, logger *logging.Logger) *OpenAI {
	if apiKey == "" {
		panic("answer: api key cannot be empty")
	}
	if model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

func (g *OpenAI) Generate(ctx context.Context, utterance, topic string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     g.model,
		MaxTokens: 300,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(topic)},
			{Role: openai.ChatMessageRoleUser, Content: utterance},
		},
	})
	if err != nil {
		return "", fmt.Errorf("answer: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func systemPrompt(topic string) string {
	base := "You are a concise customer-service assistant. Answer in at most two sentences."
	if topic == "" || topic == "general" {
		return base
	}
	return fmt.Sprintf("%s The conversation is about %s; stay on that subject.", base, topic)
}
