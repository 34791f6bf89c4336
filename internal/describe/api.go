// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package describe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pdiddy/docling-report/pkg/doctree"
	"github.com/pdiddy/docling-report/pkg/types"
)

const (
	completionsSuffix = "/chat/completions"

	// placeholderAPIKey is sent when none is configured; Ollama ignores it
	// but the client requires one.
	placeholderAPIKey = "ollama"
)

// APIDescriber captions images through an OpenAI-compatible chat
// completion endpoint such as Ollama's.
type APIDescriber struct {
	client      openai.Client
	model       string
	prompt      string
	temperature float64
}

// BaseURL turns a chat completion endpoint into the client base URL.
func BaseURL(endpoint string) string {
	base := strings.TrimSuffix(strings.TrimRight(endpoint, "/"), completionsSuffix)
	return base + "/"
}

// NewAPIDescriber creates a describer from the picture description options.
func NewAPIDescriber(opts types.PictureDescriptionAPIOptions) *APIDescriber {
	key := opts.APIKey
	if key == "" {
		key = placeholderAPIKey
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = types.DefaultVLMTimeout
	}
	client := openai.NewClient(
		option.WithBaseURL(BaseURL(opts.URL)),
		option.WithAPIKey(key),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	)
	return &APIDescriber{
		client:      client,
		model:       opts.Model,
		prompt:      opts.Prompt,
		temperature: opts.Temperature,
	}
}

// Describe implements Describer.
func (a *APIDescriber) Describe(ctx context.Context, img []byte) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(a.prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: doctree.DataURI("image/png", img),
		}),
	}
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       a.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		Temperature: openai.Float(a.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion with %s: %w", a.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
