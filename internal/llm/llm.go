// Package llm provides the text-completion providers used by the advisor.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/duhoc-advisor/internal/config"
)

// ErrEmptyReply is returned when a provider answers with no text.
var ErrEmptyReply = errors.New("llm returned an empty reply")

// Request is one completion call.
type Request struct {
	SystemPrompt string
	UserMessage  string
	// Metadata carries request context such as user_id and phase. Providers
	// that cannot use it ignore it.
	Metadata map[string]string
}

// LLM completes a system prompt plus user message into a reply.
type LLM interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// New returns the provider selected by cfg.Provider.
func New(ctx context.Context, cfg config.AgentConfig, logger *slog.Logger) (LLM, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case config.ProviderGemini:
		g, err := NewGemini(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case config.ProviderGRPC:
		c, err := NewGrpcClient(ctx, cfg.GRPCAddr, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ProviderLocal, "":
		return Local{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Local answers without any network call. It is meant for development and tests.
type Local struct{}

// Name implements LLM.
func (Local) Name() string { return config.ProviderLocal }

// Complete echoes the user message with the current phase.
func (Local) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg := strings.TrimSpace(req.UserMessage)
	if msg == "" {
		return "", ErrEmptyReply
	}
	if phase := req.Metadata["phase"]; phase != "" {
		return fmt.Sprintf("[%s] Mình đã ghi nhận: %s", phase, msg), nil
	}
	return "Mình đã ghi nhận: " + msg, nil
}

// Closer is implemented by providers holding a connection.
type Closer interface {
	Close()
}

// Close releases provider resources when the provider holds any.
func Close(l LLM) {
	if c, ok := l.(Closer); ok {
		c.Close()
	}
}
