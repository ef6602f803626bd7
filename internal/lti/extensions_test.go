package lti

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtensionRegistryDispatch(t *testing.T) {
	data := &ExtensionData{
		MessageType: "customGradebookSyncRequest",
		MessageID:   "msg-9",
		ConsumerKey: "external-tool-key",
		Body:        []byte("<imsx_POXEnvelopeRequest/>"),
	}

	t.Run("no handler registered", func(t *testing.T) {
		reg := NewExtensionRegistry()
		w := httptest.NewRecorder()

		handled, err := reg.Dispatch(context.Background(), w, data)
		if err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if handled {
			t.Error("Dispatch() handled = true, want false")
		}
	})

	t.Run("handler writes its own response", func(t *testing.T) {
		reg := NewExtensionRegistry()
		reg.Register("customGradebookSyncRequest", func(ctx context.Context, w http.ResponseWriter, d *ExtensionData) error {
			if d.ConsumerKey != "external-tool-key" {
				t.Errorf("handler got consumer key %q", d.ConsumerKey)
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("handled"))
			return nil
		})

		w := httptest.NewRecorder()
		handled, err := reg.Dispatch(context.Background(), w, data)
		if err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if !handled {
			t.Fatal("Dispatch() handled = false, want true")
		}
		if w.Body.String() != "handled" {
			t.Errorf("body = %q, want handled", w.Body.String())
		}
	})

	t.Run("two handlers is a configuration error", func(t *testing.T) {
		reg := NewExtensionRegistry()
		invoked := false
		handler := func(ctx context.Context, w http.ResponseWriter, d *ExtensionData) error {
			invoked = true
			return nil
		}
		reg.Register("customGradebookSyncRequest", handler)
		reg.Register("customGradebookSyncRequest", handler)

		w := httptest.NewRecorder()
		handled, err := reg.Dispatch(context.Background(), w, data)
		if handled {
			t.Error("Dispatch() handled = true, want false")
		}
		assertErrorCode(t, err, ErrCodeConfiguration)
		if invoked {
			t.Error("no handler may be invoked when registration is ambiguous")
		}
	})

	t.Run("handler failure becomes a failure envelope with HTTP 400", func(t *testing.T) {
		reg := NewExtensionRegistry()
		reg.Register("customGradebookSyncRequest", func(ctx context.Context, w http.ResponseWriter, d *ExtensionData) error {
			return errors.New("sync backend unavailable")
		})

		w := httptest.NewRecorder()
		handled, err := reg.Dispatch(context.Background(), w, data)
		if err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if !handled {
			t.Fatal("Dispatch() handled = false, want true")
		}
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}

		body := w.Body.String()
		if !strings.Contains(body, "<imsx_codeMajor>failure</imsx_codeMajor>") {
			t.Errorf("expected failure envelope:\n%s", body)
		}
		if !strings.Contains(body, "sync backend unavailable") {
			t.Errorf("expected the handler error in the description:\n%s", body)
		}
		if !strings.Contains(body, "<customGradebookSyncResponse>") {
			t.Errorf("expected the response body tag for the message type:\n%s", body)
		}
	})
}
