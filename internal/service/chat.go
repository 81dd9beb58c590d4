package service

import (
	"context"
	"errors"
	"io"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/cloo-solutions/signmaker/internal/prompt"
	"github.com/cloo-solutions/signmaker/internal/provider"
	"github.com/cloo-solutions/signmaker/internal/streaming"
	"github.com/cloo-solutions/signmaker/internal/telemetry"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// StreamOpener opens a provider completion stream.
type StreamOpener interface {
	OpenStream(ctx context.Context, messages []openai.ChatCompletionMessage) (io.ReadCloser, error)
	Model() string
}

// ContextSource assembles the memory context of a request.
type ContextSource interface {
	Assemble(ctx context.Context, token string) *ContextBundle
}

// ChatStream is an opened provider stream plus the records to announce.
type ChatStream struct {
	Upstream io.ReadCloser
	Records  []streaming.MemoryRecord
	Bundle   *ContextBundle
}

// ChatService turns a validated request into a provider stream.
type ChatService struct {
	contexts  ContextSource
	provider  StreamOpener
	templates prompt.Templates
	logger    *zap.Logger
}

func NewChatService(contexts ContextSource, provider StreamOpener, templates prompt.Templates, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		contexts:  contexts,
		provider:  provider,
		templates: templates,
		logger:    logger,
	}
}

// Open assembles context, builds the prompt and opens the provider stream.
// Provider failures are returned as domain errors carrying the user-facing
// message; the detail is logged only.
func (s *ChatService) Open(ctx context.Context, input *ChatInput, token string) (*ChatStream, error) {
	bundle := s.contexts.Assemble(ctx, token)
	messages := BuildMessages(bundle.SystemPrompt(s.templates), input.ConversationHistory, input.Message)

	spanCtx, span := telemetry.Start(ctx, "chat.open_stream", telemetry.Attrs{
		UserID:   bundle.UserID,
		OrgID:    bundle.OrgID,
		Model:    s.provider.Model(),
		Memories: len(bundle.Records()),
	})
	upstream, err := s.provider.OpenStream(spanCtx, messages)
	if err != nil {
		mapped := upstreamToDomain(err)
		if domain.CodeOf(mapped) == domain.ErrCodeUpstream {
			span.Fail(err)
		}
		span.End()
		return nil, mapped
	}
	span.End()

	return &ChatStream{
		Upstream: upstream,
		Records:  bundle.Records(),
		Bundle:   bundle,
	}, nil
}

// BuildMessages orders the provider conversation: system prompt, prior
// turns, then the new user message.
func BuildMessages(system string, history []HistoryMessage, message string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, h := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})
	return messages
}

func upstreamToDomain(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var upErr *provider.UpstreamError
	if errors.As(err, &upErr) {
		switch upErr.Kind {
		case provider.KindRateLimited:
			return domain.NewDomainErrorWithCause(domain.ErrCodeRateLimited, domain.ErrUpstreamRateLimited.Message, err)
		case provider.KindQuotaExhausted:
			return domain.NewDomainErrorWithCause(domain.ErrCodeQuotaExhausted, domain.ErrUpstreamQuota.Message, err)
		}
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, domain.ErrUpstreamUnavailable.Message, err)
}
