package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// Generator is the external change-generating service. Replies are returned
// verbatim; decoding belongs to the domain layer.
type Generator interface {
	// Generate asks for file changes implementing instruction.
	Generate(ctx context.Context, projectContext, instruction string) (string, error)

	// Classify asks whether text is a development instruction.
	Classify(ctx context.Context, text string) (string, error)
}

// ErrEmptyReply is returned when the service answered without any text.
var ErrEmptyReply = errors.New("empty reply from generator")

// GeminiGenerator talks to the Gemini API through google.golang.org/genai.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator constructs a GeminiGenerator for model.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: api key is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, projectContext, instruction string) (string, error) {
	return g.complete(ctx, systemConstraints, changeRequestPrompt(projectContext, instruction))
}

// Classify implements Generator.
func (g *GeminiGenerator) Classify(ctx context.Context, text string) (string, error) {
	return g.complete(ctx, "", classifyPrompt(text))
}

func (g *GeminiGenerator) complete(ctx context.Context, system, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	var b strings.Builder

	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}

		break
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyReply
	}

	return b.String(), nil
}

// OpenAIGenerator talks to any OpenAI-compatible chat completion endpoint.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator constructs an OpenAIGenerator. An empty baseURL uses the
// public OpenAI endpoint.
func NewOpenAIGenerator(apiKey, baseURL, model string) (*OpenAIGenerator, error) {
	if strings.TrimSpace(apiKey) == "" && baseURL == "" {
		return nil, fmt.Errorf("openai: api key is not set")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIGenerator{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, projectContext, instruction string) (string, error) {
	return g.complete(ctx, systemConstraints, changeRequestPrompt(projectContext, instruction))
}

// Classify implements Generator.
func (g *OpenAIGenerator) Classify(ctx context.Context, text string) (string, error) {
	return g.complete(ctx, "", classifyPrompt(text))
}

func (g *OpenAIGenerator) complete(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyReply
	}

	return resp.Choices[0].Message.Content, nil
}
