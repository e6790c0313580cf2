package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"

	"github.com/asynkron/openx/internal/backend"
	"github.com/asynkron/openx/internal/logging"
)

// DefaultRequestTimeout bounds one chat round trip.
const DefaultRequestTimeout = 120 * time.Second

// Gateway is the slice of the backend the dispatcher needs.
type Gateway interface {
	Health(ctx context.Context) bool
	ListTools(ctx context.Context) ([]backend.Tool, error)
	Chat(ctx context.Context, message, conversationID string) (backend.ChatResponse, error)
}

// Options configures an App.
type Options struct {
	Gateway Gateway

	// ConversationID groups every chat request of this session. Defaults to tui-<uuid>.
	ConversationID string

	// RequestTimeout bounds each chat call. Defaults to DefaultRequestTimeout.
	RequestTimeout time.Duration

	Logger logging.Logger

	// Clipboard receives the text of CopyLastReply. Defaults to the system clipboard.
	Clipboard func(text string) error
}

func (o *Options) setDefaults() {
	if strings.TrimSpace(o.ConversationID) == "" {
		o.ConversationID = NewConversationID()
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Logger == nil {
		o.Logger = &logging.NoOpLogger{}
	}
	if o.Clipboard == nil {
		o.Clipboard = clipboard.WriteAll
	}
}

func (o Options) validate() error {
	if o.Gateway == nil {
		return errors.New("app: gateway is required")
	}
	if o.RequestTimeout < time.Second {
		return fmt.Errorf("app: request timeout %s is below one second", o.RequestTimeout)
	}
	return nil
}

// NewConversationID returns a fresh id in the tui-<uuid> form.
func NewConversationID() string {
	return "tui-" + uuid.NewString()
}
