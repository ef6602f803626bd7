package lti

// oauth.go implements OAuth 1.0 HMAC-SHA1 body signing as used by the LTI 1.1
// outcomes service: the POST body is covered by an oauth_body_hash parameter
// and the oauth_* parameters are covered by the request signature.
//
// Verification accepts an ordered list of candidate shared secrets so a
// consumer key can be rotated without breaking in-flight integrations: the
// first secret that validates wins, and old and new secrets can both be
// configured during the transition window.

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OAuthSignatureMethod is the only signature method the service accepts.
const OAuthSignatureMethod = "HMAC-SHA1"

// DefaultTimestampWindow bounds the allowed clock skew on oauth_timestamp
// when the Authenticator is constructed with a zero window.
const DefaultTimestampWindow = 5 * time.Minute

// Authenticator verifies OAuth body-signed requests.
type Authenticator struct {
	// TimestampWindow is the maximum age (in either direction) of the
	// oauth_timestamp on an inbound request.
	TimestampWindow time.Duration

	// now is overridable for tests
	now func() time.Time
}

// NewAuthenticator returns an Authenticator with the given timestamp window
// (zero means DefaultTimestampWindow).
func NewAuthenticator(window time.Duration) *Authenticator {
	if window <= 0 {
		window = DefaultTimestampWindow
	}
	return &Authenticator{TimestampWindow: window, now: time.Now}
}

// Verify checks the OAuth signature on r against each candidate secret in
// order and returns the secret that validated the request.
//
// All candidates exhausted, or any structural problem with the Authorization
// header, body hash or timestamp, yields an ErrCodeSignatureInvalid error.
// Verification is expected to succeed for at most one candidate, so the
// first match wins.
func (a *Authenticator) Verify(r *http.Request, body []byte, consumerKey string, secrets []string) (string, error) {
	params, err := parseOAuthHeader(r.Header.Get("Authorization"))
	if err != nil {
		return "", err
	}

	if params["oauth_consumer_key"] != consumerKey {
		return "", NewSignatureError(fmt.Sprintf("unexpected oauth_consumer_key %q", params["oauth_consumer_key"]))
	}
	if method := params["oauth_signature_method"]; method != OAuthSignatureMethod {
		return "", NewSignatureError(fmt.Sprintf("unsupported oauth_signature_method %q", method))
	}

	if err := a.checkTimestamp(params["oauth_timestamp"]); err != nil {
		return "", err
	}

	// The body hash ties the signed parameters to the actual POST body.
	if params["oauth_body_hash"] != BodyHash(body) {
		return "", NewSignatureError("oauth_body_hash does not match request body")
	}

	signature := params["oauth_signature"]
	if signature == "" {
		return "", NewSignatureError("request has no oauth_signature")
	}

	base := signatureBaseString(r.Method, requestURL(r), params, r.URL.Query())

	for _, secret := range secrets {
		expected := computeSignature(base, secret)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1 {
			return secret, nil
		}
	}

	return "", NewSignatureError("signature did not verify against any configured secret")
}

func (a *Authenticator) checkTimestamp(value string) error {
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return NewSignatureError(fmt.Sprintf("oauth_timestamp %q is not a unix timestamp", value))
	}

	skew := a.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > a.TimestampWindow {
		return NewSignatureError("oauth_timestamp outside the allowed window")
	}
	return nil
}

// SignRequest produces the Authorization header for a body-signed POST.
// Used by the client CLI and by tests; the parameters mirror what Verify
// expects.
func SignRequest(method, rawURL, consumerKey, secret string, body []byte, now time.Time) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", WrapValidationError(err, "invalid request URL")
	}

	params := map[string]string{
		"oauth_version":          "1.0",
		"oauth_nonce":            uuid.NewString(),
		"oauth_timestamp":        strconv.FormatInt(now.Unix(), 10),
		"oauth_consumer_key":     consumerKey,
		"oauth_body_hash":        BodyHash(body),
		"oauth_signature_method": OAuthSignatureMethod,
	}

	base := signatureBaseString(method, normalizeURL(u), params, u.Query())
	params["oauth_signature"] = computeSignature(base, secret)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(`OAuth realm=""`)
	for _, k := range keys {
		sb.WriteString(", ")
		sb.WriteString(k)
		sb.WriteString(`="`)
		sb.WriteString(percentEncode(params[k]))
		sb.WriteString(`"`)
	}
	return sb.String(), nil
}

// ConsumerKey extracts oauth_consumer_key from the Authorization header
// without verifying the request. Empty when the header is absent or
// malformed. Used to route extension messages before verification.
func ConsumerKey(r *http.Request) string {
	params, err := parseOAuthHeader(r.Header.Get("Authorization"))
	if err != nil {
		return ""
	}
	return params["oauth_consumer_key"]
}

// BodyHash returns the oauth_body_hash value for a request body:
// base64(SHA-1(body)), per the OAuth Request Body Hash extension.
func BodyHash(body []byte) string {
	sum := sha1.Sum(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// parseOAuthHeader splits an `OAuth k="v", ...` Authorization header into a
// parameter map, percent-decoding the values. The realm parameter is dropped
// (it is excluded from signing).
func parseOAuthHeader(header string) (map[string]string, error) {
	const scheme = "OAuth "

	if !strings.HasPrefix(header, scheme) {
		return nil, NewSignatureError("request has no OAuth authorization header")
	}

	params := make(map[string]string)
	for _, part := range strings.Split(header[len(scheme):], ",") {
		part = strings.TrimSpace(part)
		key, quoted, ok := strings.Cut(part, "=")
		if !ok {
			return nil, NewSignatureError(fmt.Sprintf("malformed OAuth header parameter %q", part))
		}

		value := strings.Trim(quoted, `"`)
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			return nil, WrapSignatureError(err, fmt.Sprintf("malformed OAuth header value for %q", key))
		}

		if key == "realm" {
			continue
		}
		params[key] = decoded
	}
	return params, nil
}

// signatureBaseString builds the OAuth 1.0 signature base string:
// METHOD & encoded-url & encoded-sorted-parameters. oauth_signature itself is
// excluded; query string parameters are included alongside the oauth_*
// parameters.
func signatureBaseString(method, baseURL string, oauthParams map[string]string, query url.Values) string {
	type pair struct{ k, v string }

	var pairs []pair
	for k, v := range oauthParams {
		if k == "oauth_signature" {
			continue
		}
		pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
	}
	for k, vs := range query {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	var sb strings.Builder
	for i, p := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(p.k)
		sb.WriteByte('=')
		sb.WriteString(p.v)
	}

	return strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(sb.String())
}

func computeSignature(baseString, secret string) string {
	key := percentEncode(secret) + "&"

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(baseString))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// requestURL reconstructs the signed base URL (scheme://host/path, default
// ports elided) from an inbound request.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	// honour the proxy header when the service sits behind a TLS terminator
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	host := r.Host
	if scheme == "http" {
		host = strings.TrimSuffix(host, ":80")
	} else if scheme == "https" {
		host = strings.TrimSuffix(host, ":443")
	}

	return scheme + "://" + host + r.URL.Path
}

func normalizeURL(u *url.URL) string {
	host := u.Host
	if u.Scheme == "http" {
		host = strings.TrimSuffix(host, ":80")
	} else if u.Scheme == "https" {
		host = strings.TrimSuffix(host, ":443")
	}
	return u.Scheme + "://" + host + u.Path
}

// percentEncode implements RFC 5849 percent encoding (unreserved characters
// only; space becomes %20, not +).
func percentEncode(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			sb.WriteByte(c)
		default:
			sb.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return sb.String()
}
