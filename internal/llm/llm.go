package llm

import (
	"context"
	"errors"
	"fmt"
)

// Conversation roles understood by the model service.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of the ordered prompt sent to the model.
type Turn struct {
	Role    string
	Content string
}

// Request carries the full prompt and generation bounds for one completion.
type Request struct {
	Turns       []Turn
	MaxTokens   int
	Temperature float64
}

// Upstream failure kinds. They all surface to the user as the same generic
// message; the split exists for internal logging and diagnostics only.
var (
	ErrInvalidCredential   = errors.New("invalid api credential")
	ErrInsufficientBalance = errors.New("insufficient account balance")
	ErrModelNotFound       = errors.New("model not found")
)

// UpstreamError wraps any other non-2xx outcome from the model service.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("model service returned status %d", e.StatusCode)
}

// ChatClient is the narrow surface the responder job needs from the model
// service. Implementations map provider errors to the kinds above so the
// job never inspects provider types.
type ChatClient interface {
	// Complete sends the ordered prompt and returns the first choice's text.
	Complete(ctx context.Context, req Request) (string, error)
	// Probe lists the provider's available models. Informational only: the
	// result is logged and never gates the main call.
	Probe(ctx context.Context) (int, error)
	Model() string
}
