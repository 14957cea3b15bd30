package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"CraneGuard/pkg/vision"
	"github.com/sashabaranov/go-openai"
)

type chatVision struct {
	client *openai.Client
	model  string
}

// NewChatVision builds an Analyzer on the chat-completions API. baseURL may
// point at any compatible gateway.
func NewChatVision(apiKey, model, baseURL string) (vision.Analyzer, error) {
	if apiKey == "" {
		return nil, errors.New("openai API key is required")
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &chatVision{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

func (c *chatVision) Name() string {
	return "openai"
}

func (c *chatVision) AnalyzeImage(ctx context.Context, img vision.Image, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   300,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    img.DataURL(),
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		if isRateLimited(err) {
			return "", fmt.Errorf("%w: %v", vision.ErrRateLimited, err)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", vision.ErrEmptyReply
	}

	return resp.Choices[0].Message.Content, nil
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	return errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests
}
