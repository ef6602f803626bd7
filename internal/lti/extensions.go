package lti

// extensions.go routes message types this core does not implement to
// externally registered handlers.
//
// The registry is explicit: handlers are registered at startup and looked up
// synchronously, so a misconfigured deployment (two handlers claiming the
// same message type) fails loudly at request time without invoking either.

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ExtensionData is the request context passed to an extension handler.
type ExtensionData struct {
	MessageType string
	MessageID   string
	ConsumerKey string

	// Body is the raw signed request body; the handler does its own parsing.
	Body []byte
}

// ExtensionHandler processes one extended message type. On success the
// handler writes its own response to w. A returned error is rendered into a
// failure envelope by the registry.
type ExtensionHandler func(ctx context.Context, w http.ResponseWriter, data *ExtensionData) error

// ExtensionRegistry maps message types to registered handlers.
// Not safe for concurrent registration; populate at startup.
type ExtensionRegistry struct {
	handlers map[string][]ExtensionHandler

	// Debug appends the underlying error chain to failure descriptions.
	Debug bool
}

func NewExtensionRegistry() *ExtensionRegistry {
	return &ExtensionRegistry{handlers: make(map[string][]ExtensionHandler)}
}

// Register adds a handler for a message type. Registering two handlers for
// the same type is allowed here but rejected at dispatch time - mirroring a
// configuration problem, not a programming error.
func (reg *ExtensionRegistry) Register(messageType string, h ExtensionHandler) {
	reg.handlers[messageType] = append(reg.handlers[messageType], h)
}

// Dispatch routes a message to its registered handler.
//
// Returns handled=false when no handler is registered (the caller should
// treat the message type as unsupported). With more than one handler the
// dispatch fails with an ErrCodeConfiguration error before invoking any.
//
// When the handler itself fails, Dispatch emits an HTTP 400 failure envelope
// and reports handled=true so the caller performs no further framing.
func (reg *ExtensionRegistry) Dispatch(ctx context.Context, w http.ResponseWriter, data *ExtensionData) (bool, error) {
	handlers := reg.handlers[data.MessageType]

	if len(handlers) == 0 {
		return false, nil
	}
	if len(handlers) > 1 {
		return false, NewConfigurationError(fmt.Sprintf("more than one extension handler registered for %q", data.MessageType))
	}

	if err := handlers[0](ctx, w, data); err != nil {
		description := err.Error()
		if reg.Debug {
			description = fmt.Sprintf("%s (%+v)", description, err)
		}

		responseType := strings.ReplaceAll(data.MessageType, "Request", "Response")
		xmlBody, buildErr := NewResponseEnvelope(CodeMajorFailure, description, data.MessageID, responseType).XML()
		if buildErr != nil {
			return true, buildErr
		}

		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write(xmlBody)
	}

	return true, nil
}
