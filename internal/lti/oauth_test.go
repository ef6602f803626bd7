package lti

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

const (
	testServiceURL  = "http://lms.example.com/service"
	testConsumerKey = "external-tool-key"
	testSecret      = "tool-shared-secret"
)

func TestAuthenticatorVerify(t *testing.T) {
	body := []byte("<imsx_POXEnvelopeRequest/>")
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	sign := func(secret string) string {
		t.Helper()
		header, err := SignRequest("POST", testServiceURL, testConsumerKey, secret, body, now)
		if err != nil {
			t.Fatalf("SignRequest() error = %v", err)
		}
		return header
	}

	newAuth := func() *Authenticator {
		auth := NewAuthenticator(0)
		auth.now = func() time.Time { return now }
		return auth
	}

	t.Run("sign then verify", func(t *testing.T) {
		req := httptest.NewRequest("POST", testServiceURL, bytes.NewReader(body))
		req.Header.Set("Authorization", sign(testSecret))

		secret, err := newAuth().Verify(req, body, testConsumerKey, []string{testSecret})
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if secret != testSecret {
			t.Errorf("Verify() secret = %q, want %q", secret, testSecret)
		}
	})

	t.Run("secret rotation matches the signing secret", func(t *testing.T) {
		req := httptest.NewRequest("POST", testServiceURL, bytes.NewReader(body))
		req.Header.Set("Authorization", sign("new-secret"))

		secret, err := newAuth().Verify(req, body, testConsumerKey, []string{"old-secret", "new-secret"})
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if secret != "new-secret" {
			t.Errorf("Verify() secret = %q, want new-secret", secret)
		}
	})

	t.Run("unlisted secret fails", func(t *testing.T) {
		req := httptest.NewRequest("POST", testServiceURL, bytes.NewReader(body))
		req.Header.Set("Authorization", sign("some-other-secret"))

		_, err := newAuth().Verify(req, body, testConsumerKey, []string{"old-secret", "new-secret"})
		assertErrorCode(t, err, ErrCodeSignatureInvalid)
	})

	t.Run("wrong consumer key", func(t *testing.T) {
		req := httptest.NewRequest("POST", testServiceURL, bytes.NewReader(body))
		req.Header.Set("Authorization", sign(testSecret))

		_, err := newAuth().Verify(req, body, "a-different-key", []string{testSecret})
		assertErrorCode(t, err, ErrCodeSignatureInvalid)
	})

	t.Run("tampered body", func(t *testing.T) {
		req := httptest.NewRequest("POST", testServiceURL, bytes.NewReader(body))
		req.Header.Set("Authorization", sign(testSecret))

		tampered := []byte("<imsx_POXEnvelopeRequest>tampered</imsx_POXEnvelopeRequest>")
		_, err := newAuth().Verify(req, tampered, testConsumerKey, []string{testSecret})
		assertErrorCode(t, err, ErrCodeSignatureInvalid)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		req := httptest.NewRequest("POST", testServiceURL, bytes.NewReader(body))
		req.Header.Set("Authorization", sign(testSecret))

		auth := NewAuthenticator(0)
		auth.now = func() time.Time { return now.Add(DefaultTimestampWindow + time.Minute) }

		_, err := auth.Verify(req, body, testConsumerKey, []string{testSecret})
		assertErrorCode(t, err, ErrCodeSignatureInvalid)
	})

	t.Run("missing authorization header", func(t *testing.T) {
		req := httptest.NewRequest("POST", testServiceURL, bytes.NewReader(body))

		_, err := newAuth().Verify(req, body, testConsumerKey, []string{testSecret})
		assertErrorCode(t, err, ErrCodeSignatureInvalid)
	})

	t.Run("no secrets configured", func(t *testing.T) {
		req := httptest.NewRequest("POST", testServiceURL, bytes.NewReader(body))
		req.Header.Set("Authorization", sign(testSecret))

		_, err := newAuth().Verify(req, body, testConsumerKey, nil)
		assertErrorCode(t, err, ErrCodeSignatureInvalid)
	})
}

func assertErrorCode(t *testing.T, err error, want ErrorCode) {
	t.Helper()

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var ltiErr *LTIError
	if !errors.As(err, &ltiErr) {
		t.Fatalf("error is not an LTIError: %v", err)
	}
	if ltiErr.Code() != want {
		t.Errorf("Code() = %q, want %q", ltiErr.Code(), want)
	}
}

func TestConsumerKey(t *testing.T) {
	body := []byte("x")
	header, err := SignRequest("POST", testServiceURL, testConsumerKey, testSecret, body, time.Now())
	if err != nil {
		t.Fatalf("SignRequest() error = %v", err)
	}

	req := httptest.NewRequest("POST", testServiceURL, bytes.NewReader(body))
	req.Header.Set("Authorization", header)

	if got := ConsumerKey(req); got != testConsumerKey {
		t.Errorf("ConsumerKey() = %q, want %q", got, testConsumerKey)
	}

	req.Header.Del("Authorization")
	if got := ConsumerKey(req); got != "" {
		t.Errorf("ConsumerKey() without header = %q, want empty", got)
	}
}

func TestPercentEncode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abcXYZ019-._~", "abcXYZ019-._~"},
		{"a b", "a%20b"},
		{"a+b", "a%2Bb"},
		{"key=value&other", "key%3Dvalue%26other"},
		{"100%", "100%25"},
	}

	for _, tt := range tests {
		if got := percentEncode(tt.in); got != tt.want {
			t.Errorf("percentEncode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBodyHash(t *testing.T) {
	// base64(SHA-1("hello world"))
	want := "Kq5sNclPz7QV2+lfQIuc6R7oRu0="
	if got := BodyHash([]byte("hello world")); got != want {
		t.Errorf("BodyHash() = %q, want %q", got, want)
	}
}
