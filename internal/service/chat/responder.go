// Package chat answers chat messages typed or spoken in the widget.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// Responder produces the assistant's reply to a message within a
// conversation.
type Responder interface {
	Name() string
	Reply(ctx context.Context, conversation, message string) (string, error)
}

// Forgetter is implemented by responders that keep per-conversation state.
type Forgetter interface {
	Forget(conversation string)
}

// EchoResponder answers deterministically, for development without an LLM.
type EchoResponder struct{}

func (EchoResponder) Name() string { return "echo" }

func (EchoResponder) Reply(ctx context.Context, conversation, message string) (string, error) {
	return "You said: " + message, nil
}

// OpenAIResponder answers with an OpenAI chat completion, keeping a bounded
// history per conversation.
type OpenAIResponder struct {
	client       *openai.Client
	model        string
	systemPrompt string
	maxHistory   int

	mu        sync.Mutex
	histories map[string][]openai.ChatCompletionMessage
}

// NewOpenAIResponder creates a responder using the public OpenAI API.
func NewOpenAIResponder(apiKey, model, systemPrompt string, maxHistory int) *OpenAIResponder {
	return NewOpenAIResponderWithConfig(openai.DefaultConfig(apiKey), model, systemPrompt, maxHistory)
}

// NewOpenAIResponderWithConfig creates a responder for any OpenAI-compatible
// endpoint.
func NewOpenAIResponderWithConfig(cfg openai.ClientConfig, model, systemPrompt string, maxHistory int) *OpenAIResponder {
	if maxHistory <= 0 {
		maxHistory = 20
	}
	return &OpenAIResponder{
		client:       openai.NewClientWithConfig(cfg),
		model:        model,
		systemPrompt: systemPrompt,
		maxHistory:   maxHistory,
		histories:    make(map[string][]openai.ChatCompletionMessage),
	}
}

func (r *OpenAIResponder) Name() string { return "openai" }

func (r *OpenAIResponder) Reply(ctx context.Context, conversation, message string) (string, error) {
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message}

	r.mu.Lock()
	history := append(append([]openai.ChatCompletionMessage{}, r.histories[conversation]...), user)
	r.mu.Unlock()

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if r.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: r.systemPrompt,
		})
	}
	messages = append(messages, history...)

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion: no choices")
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)

	history = append(history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: answer,
	})
	if len(history) > r.maxHistory {
		history = history[len(history)-r.maxHistory:]
	}

	r.mu.Lock()
	r.histories[conversation] = history
	r.mu.Unlock()

	return answer, nil
}

// Forget drops the history of a conversation.
func (r *OpenAIResponder) Forget(conversation string) {
	r.mu.Lock()
	delete(r.histories, conversation)
	r.mu.Unlock()
}

func (r *OpenAIResponder) historyLen(conversation string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.histories[conversation])
}
