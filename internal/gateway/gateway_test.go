package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"chatconnect/internal/config"
	"chatconnect/internal/models"
)

type fakeChatModel struct {
	chunks    []string
	streamErr error // fails the call before any fragment
	midErr    error // fails the stream after the fragments
}

func (f *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return &schema.Message{
		Role:    schema.Assistant,
		Content: strings.Join(f.chunks, ""),
	}, nil
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	reader, writer := schema.Pipe[*schema.Message](len(f.chunks) + 1)
	go func() {
		defer writer.Close()
		for _, chunk := range f.chunks {
			writer.Send(&schema.Message{Role: schema.Assistant, Content: chunk}, nil)
		}
		if f.midErr != nil {
			writer.Send(nil, f.midErr)
		}
	}()
	return reader, nil
}

func TestStreamChatConcatenatesFragmentsInOrder(t *testing.T) {
	g := &Gateway{provider: "openai", chatModel: &fakeChatModel{chunks: []string{"Hi", " there", "!"}}}

	var received []string
	full, err := g.StreamChat(context.Background(), nil, func(chunk string) error {
		received = append(received, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("stream chat: %v", err)
	}
	if full != "Hi there!" {
		t.Fatalf("expected concatenated response, got %q", full)
	}
	if len(received) != 3 || received[0] != "Hi" || received[1] != " there" || received[2] != "!" {
		t.Fatalf("fragments out of order: %#v", received)
	}
}

func TestStreamChatUpstreamFailureBeforeFirstFragment(t *testing.T) {
	cause := errors.New("connection refused")
	g := &Gateway{provider: "openai", chatModel: &fakeChatModel{streamErr: cause}}

	full, err := g.StreamChat(context.Background(), nil, nil)
	if full != "" {
		t.Fatalf("expected empty partial response, got %q", full)
	}
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestStreamChatMidStreamFailureKeepsPartial(t *testing.T) {
	cause := errors.New("stream reset")
	g := &Gateway{provider: "openai", chatModel: &fakeChatModel{chunks: []string{"Hi"}, midErr: cause}}

	var received []string
	full, err := g.StreamChat(context.Background(), nil, func(chunk string) error {
		received = append(received, chunk)
		return nil
	})
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if full != "Hi" {
		t.Fatalf("expected partial response to stand, got %q", full)
	}
	if len(received) != 1 || received[0] != "Hi" {
		t.Fatalf("expected the produced fragment to be delivered, got %#v", received)
	}
}

func TestStreamChatChunkCallbackErrorAbortsPull(t *testing.T) {
	g := &Gateway{provider: "openai", chatModel: &fakeChatModel{chunks: []string{"a", "b", "c"}}}

	abort := errors.New("consumer gone")
	calls := 0
	full, err := g.StreamChat(context.Background(), nil, func(string) error {
		calls++
		if calls == 2 {
			return abort
		}
		return nil
	})
	if !errors.Is(err, abort) {
		t.Fatalf("expected callback error to propagate, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected pull to stop after callback error, got %d calls", calls)
	}
	if full != "ab" {
		t.Fatalf("unexpected partial response %q", full)
	}
}

func TestCompleteReturnsFullResponse(t *testing.T) {
	g := &Gateway{provider: "openai", chatModel: &fakeChatModel{chunks: []string{"Hi", " there"}}}

	full, err := g.Complete(context.Background(), []*models.Message{
		{Role: models.RoleUser, Content: "Hello"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if full != "Hi there" {
		t.Fatalf("unexpected response %q", full)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), "palm", config.ProviderConfig{Model: "m", APIKey: "k"})
	if err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	if want := fmt.Sprintf("invalid provider: %s", "palm"); !strings.Contains(err.Error(), want) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestConvertMessagesMapsRoles(t *testing.T) {
	history := []*models.Message{
		{Role: models.RoleSystem, Content: "sys"},
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
		{Role: models.Role("other"), Content: "fallback"},
	}
	converted := convertMessages(history)
	if len(converted) != 4 {
		t.Fatalf("expected 4 converted messages, got %d", len(converted))
	}
	wantRoles := []schema.RoleType{schema.System, schema.User, schema.Assistant, schema.User}
	for i, want := range wantRoles {
		if converted[i].Role != want {
			t.Fatalf("message %d: expected role %s, got %s", i, want, converted[i].Role)
		}
		if converted[i].Content != history[i].Content {
			t.Fatalf("message %d: content mismatch", i)
		}
	}
}
