// Package gateway wraps the upstream completion providers behind a single
// streaming contract: an ordered message history in, a finite sequence of
// text fragments out.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"chatconnect/internal/config"
	"chatconnect/internal/models"
)

const claudeMaxTokens = 3000

// UpstreamError reports a failed upstream completion call, before or during
// fragment production.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream completion failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Completer is the completion capability consumed by the HTTP layer.
// StreamChat forwards each produced fragment to chunkFn in order and returns
// the concatenated response; on failure the partial text produced so far is
// returned alongside the error. Complete waits for the whole response.
type Completer interface {
	StreamChat(ctx context.Context, history []*models.Message, chunkFn func(string) error) (string, error)
	Complete(ctx context.Context, history []*models.Message) (string, error)
}

// Gateway adapts one configured provider's chat model to the Completer
// contract.
type Gateway struct {
	provider  string
	chatModel model.BaseChatModel
}

// New builds the gateway for the given provider.
func New(ctx context.Context, provider string, provCfg config.ProviderConfig) (*Gateway, error) {
	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: claudeMaxTokens,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  provCfg.Model,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	return &Gateway{provider: provider, chatModel: chatModel}, nil
}

// StreamChat sends the history upstream and forwards each text delta to
// chunkFn. A chunkFn error aborts the pull so a vanished downstream consumer
// does not leak an open upstream stream.
func (g *Gateway) StreamChat(ctx context.Context, history []*models.Message, chunkFn func(string) error) (string, error) {
	streamReader, err := g.chatModel.Stream(ctx, convertMessages(history))
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	defer streamReader.Close()

	var full strings.Builder
	for {
		chunk, err := streamReader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// mid-stream failure: the fragments already produced stand
			return full.String(), &UpstreamError{Err: err}
		}
		if chunk.Content == "" {
			continue
		}
		full.WriteString(chunk.Content)
		if chunkFn != nil {
			if err := chunkFn(chunk.Content); err != nil {
				return full.String(), err
			}
		}
	}
	return full.String(), nil
}

// Complete waits for the full upstream response without streaming.
func (g *Gateway) Complete(ctx context.Context, history []*models.Message) (string, error) {
	response, err := g.chatModel.Generate(ctx, convertMessages(history))
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	return response.Content, nil
}

func convertMessages(history []*models.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleUser:
			role = schema.User
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}

		messages = append(messages, &schema.Message{
			Role:    role,
			Content: msg.Content,
		})
	}
	return messages
}
