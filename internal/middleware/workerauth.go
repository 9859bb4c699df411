package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
)

// WorkerAuthOptions lists the trust anchors for the worker trigger endpoint.
// Any one of them is sufficient.
type WorkerAuthOptions struct {
	// OverrideToken is the operator's static bearer token.
	OverrideToken string
	// Secret is the shared bearer secret handed to schedulers.
	Secret string
	// PushQueueSecret keys the HMAC signature header set by the push queue.
	PushQueueSecret string
	// TrustSchedulerHeader accepts the scheduler marker header. Only safe
	// when a fronting proxy strips client-supplied copies, so callers enable
	// it in production deployments only.
	TrustSchedulerHeader bool
}

const (
	schedulerHeader = "X-Cloudscheduler"
	signatureHeader = "X-Queue-Signature"

	// maxSignedBody bounds how much body the signature check will buffer.
	maxSignedBody = 1 << 20
)

// WorkerAuth guards the trigger endpoint. Requests that present none of the
// recognized credentials get a 401 with no detail about which methods exist.
func WorkerAuth(opts WorkerAuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if secureEqual(token, opts.OverrideToken) || secureEqual(token, opts.Secret) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if opts.TrustSchedulerHeader && r.Header.Get(schedulerHeader) == "true" {
				next.ServeHTTP(w, r)
				return
			}

			if sig := r.Header.Get(signatureHeader); sig != "" && opts.PushQueueSecret != "" {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
				if err == nil && validSignature(opts.PushQueueSecret, body, sig) {
					r.Body = io.NopCloser(bytes.NewReader(body))
					next.ServeHTTP(w, r)
					return
				}
			}

			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func secureEqual(got, want string) bool {
	if want == "" {
		return false
	}
	return hmac.Equal([]byte(got), []byte(want))
}

func validSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
