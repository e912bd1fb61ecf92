package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// openaiProvider serves every OpenAI-compatible endpoint; the endpoint's
// base URL and secret key select the actual upstream.
type openaiProvider struct{}

func newClient(endpoint *Endpoint) *openai.Client {
	cfg := openai.DefaultConfig(endpoint.SecretKey)
	cfg.BaseURL = endpoint.APIURL
	cfg.HTTPClient = &http.Client{
		Timeout: 5 * time.Minute,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	return openai.NewClientWithConfig(cfg)
}

// convertMessages turns prompt turns into the wire shape. Media turns become
// multi-part content with an image_url part; base64 data is wrapped into a
// data URL.
func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		if m.MediaURL == "" {
			converted = append(converted, openai.ChatCompletionMessage{
				Role:    m.Role,
				Content: m.Content,
			})
			continue
		}

		url := m.MediaURL
		if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
			url = "data:image/jpeg;base64," + url
		}

		var parts []openai.ChatMessagePart
		if m.Content != "" {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: m.Content,
			})
		}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: url},
		})
		converted = append(converted, openai.ChatCompletionMessage{
			Role:         m.Role,
			MultiContent: parts,
		})
	}
	return converted
}

func (p *openaiProvider) StreamCompletion(ctx context.Context, endpoint *Endpoint, req *Request) (<-chan Chunk, <-chan error, error) {
	if len(req.Messages) == 0 {
		return nil, nil, fmt.Errorf("no messages")
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.6
	}

	stream, err := newClient(endpoint).CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    convertMessages(req.Messages),
		Temperature: temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create stream failed: %w", err)
	}

	chunks := make(chan Chunk, 10)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)
		defer func() { _ = stream.Close() }()

		for {
			response, err := stream.Recv()
			if err != nil {
				if err == io.EOF || strings.Contains(err.Error(), "EOF") {
					select {
					case chunks <- Chunk{Role: openai.ChatMessageRoleAssistant, Finished: true}:
					case <-ctx.Done():
					}
					return
				}
				slog.Error("llm: stream receive failed", "endpoint", endpoint.Name, "error", err)
				select {
				case errs <- fmt.Errorf("stream recv failed: %w", err):
				case <-ctx.Done():
				}
				return
			}

			if len(response.Choices) == 0 {
				continue
			}
			choice := response.Choices[0]

			chunk := Chunk{
				Role:     choice.Delta.Role,
				Content:  choice.Delta.Content,
				Finished: choice.FinishReason == openai.FinishReasonStop,
			}
			if chunk.Role == "" {
				chunk.Role = openai.ChatMessageRoleAssistant
			}
			// DeepSeek-style reasoning deltas arrive on a separate field.
			if choice.Delta.ReasoningContent != "" {
				chunk.Content = choice.Delta.ReasoningContent
				chunk.Reasoning = true
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}

			if chunk.Finished {
				return
			}
		}
	}()

	return chunks, errs, nil
}

func (p *openaiProvider) Completion(ctx context.Context, endpoint *Endpoint, req *Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("no messages")
	}

	model := req.Model
	if model == "" {
		model = endpoint.DefaultModel
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	resp, err := newClient(endpoint).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    convertMessages(req.Messages),
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
